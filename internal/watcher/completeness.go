package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"dropwatch/internal/fileutil"
	"dropwatch/internal/files"
	"dropwatch/internal/logging"
	"dropwatch/internal/metrics"
	"dropwatch/internal/tree"
)

// consider runs the completeness check for name and emits it once confirmed.
// Only one check per name runs at a time; a request that arrives while one
// is running marks it dirty so a failed check is repeated. It returns false
// when the file was neither emitted nor handed to a running check.
func (w *Watcher) consider(ctx context.Context, name string, onNewFile Callback) bool {
	if !w.beginCheck(name) {
		return true
	}
	for {
		entry, ok := w.awaitComplete(ctx, name)
		if ok {
			w.emit(ctx, entry, onNewFile)
			w.endCheck(name)
			return true
		}
		if ctx.Err() != nil || !w.retryCheck(name) {
			return false
		}
	}
}

func (w *Watcher) beginCheck(name string) bool {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	if _, running := w.inflight[name]; running {
		w.inflight[name] = true
		return false
	}
	w.inflight[name] = false
	return true
}

// retryCheck reports whether name was marked dirty during the last check,
// clearing the flag, or releases the name when it was not.
func (w *Watcher) retryCheck(name string) bool {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	if w.inflight[name] {
		w.inflight[name] = false
		return true
	}
	delete(w.inflight, name)
	return false
}

func (w *Watcher) endCheck(name string) {
	w.inflightMu.Lock()
	delete(w.inflight, name)
	w.inflightMu.Unlock()
}

// awaitComplete reads the size of name twice, checkDelay apart, and reports
// success when both reads agree on a non-zero size. It tries once plus
// checkRetries more times.
func (w *Watcher) awaitComplete(ctx context.Context, name string) (tree.Entry, bool) {
	logger := w.logger.With(logging.String(logging.FieldFileName, name))
	for attempt := 0; attempt <= w.checkRetries; attempt++ {
		if w.IsKnown(name) {
			return tree.Entry{}, false
		}
		first, err := w.stat(ctx, name)
		if err != nil {
			w.checkFailed(ctx, logger, err)
			return tree.Entry{}, false
		}
		if !sleep(ctx, w.checkDelay) {
			metrics.CompletenessChecksTotal.WithLabelValues("cancelled").Inc()
			return tree.Entry{}, false
		}
		second, err := w.stat(ctx, name)
		if err != nil {
			w.checkFailed(ctx, logger, err)
			return tree.Entry{}, false
		}
		if first.Size == second.Size && second.Size > 0 {
			metrics.CompletenessChecksTotal.WithLabelValues("complete").Inc()
			return second, true
		}
		logger.Debug("file still being written",
			logging.Int("attempt", attempt+1),
			logging.Int64("size_before", first.Size),
			logging.Int64("size_after", second.Size))
	}
	metrics.CompletenessChecksTotal.WithLabelValues("unstable").Inc()
	logger.Debug("completeness not confirmed; deferring to next pass",
		logging.Int("retries", w.checkRetries))
	return tree.Entry{}, false
}

func (w *Watcher) checkFailed(ctx context.Context, logger *slog.Logger, err error) {
	if ctx.Err() != nil {
		metrics.CompletenessChecksTotal.WithLabelValues("cancelled").Inc()
		return
	}
	metrics.CompletenessChecksTotal.WithLabelValues("error").Inc()
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("candidate vanished before completeness check finished")
		return
	}
	logger.Debug("completeness check stat failed", logging.Error(err))
}

// stat reads the current entry for name, directly for path targets and
// through the tree for handles.
func (w *Watcher) stat(ctx context.Context, name string) (tree.Entry, error) {
	if err := ctx.Err(); err != nil {
		return tree.Entry{}, err
	}
	if w.target.Kind() == files.KindPath {
		info, err := fileutil.StatWithRetry(w.target.Child(name).String(), fileutil.DefaultRetryConfig())
		if err != nil {
			return tree.Entry{}, err
		}
		if info.IsDir() {
			return tree.Entry{}, fs.ErrNotExist
		}
		return tree.Entry{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
	}
	entry, err := w.tree.Stat(ctx, name)
	if err != nil {
		return tree.Entry{}, err
	}
	if entry.IsDir {
		return tree.Entry{}, fs.ErrNotExist
	}
	return entry, nil
}

// emit claims the name in the known cache, persists it and hands the record
// to the callback. A name claimed concurrently by another check is skipped.
func (w *Watcher) emit(ctx context.Context, entry tree.Entry, onNewFile Callback) {
	if !w.claim(entry.Name) {
		return
	}
	w.store.AddKnownFile(context.WithoutCancel(ctx), entry.Name)

	record := files.NewRecord(w.target, entry.Name, entry.Size, entry.ModTime)
	record.IsIncremental = true
	w.logger.Debug("new file detected",
		logging.String(logging.FieldFileName, entry.Name),
		logging.Int64("size", entry.Size))
	onNewFile(record)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
