package watcher

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"dropwatch/internal/logging"
	"dropwatch/internal/metrics"
	"dropwatch/internal/tree"
)

// maxConcurrentChecks bounds completeness checks started by one pass.
const maxConcurrentChecks = 8

// startPoll subscribes to tree change notifications and starts the loop that
// re-lists the directory after each debounced notification and on every poll
// tick. A failed subscription leaves interval polling as the only trigger.
func (w *Watcher) startPoll(ctx context.Context, onNewFile Callback) error {
	notify, err := w.tree.Subscribe(ctx)
	if err != nil {
		metrics.WatcherErrors.Inc()
		logging.WarnWithContext(w.logger, "change notifications unavailable; polling only", "notify_subscribe_failed",
			logging.Error(err),
			logging.Duration("poll_interval", w.pollInterval),
			logging.String(logging.FieldImpact, "new files are detected at the poll interval"),
			logging.String(logging.FieldErrorHint, "check that the target directory is readable"))
		notify = nil
	}
	w.spawn(func() {
		w.pollLoop(ctx, notify, onNewFile)
	})
	return nil
}

func (w *Watcher) pollLoop(ctx context.Context, notify <-chan struct{}, onNewFile Callback) {
	interval := w.pollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		debounce  *time.Timer
		debounceC <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	w.pass(ctx, "startup", onNewFile)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(w.debounce)
			} else {
				debounce.Reset(w.debounce)
			}
			debounceC = debounce.C
		case <-debounceC:
			debounceC = nil
			w.pass(ctx, "notify", onNewFile)
		case <-ticker.C:
			w.pass(ctx, "poll", onNewFile)
		}
	}
}

// pass lists the directory and checks every filtered name that was absent
// from the previous listing and is not yet known. Names whose check fails
// are left out of the snapshot so the next pass reconsiders them.
func (w *Watcher) pass(ctx context.Context, trigger string, onNewFile Callback) {
	w.passMu.Lock()
	defer w.passMu.Unlock()

	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	current, method, err := w.list(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.WatcherErrors.Inc()
		logging.WarnWithContext(w.logger, "directory listing failed", "watch_list_failed",
			logging.String("trigger", trigger),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no new files are detected until listing succeeds"),
			logging.String(logging.FieldErrorHint, "check that the target directory still exists and is readable"))
		return
	}
	metrics.WatcherPassesTotal.WithLabelValues(trigger, method).Inc()

	var candidates []string
	for name := range current {
		if _, seen := w.lastSeen[name]; seen {
			continue
		}
		if w.IsKnown(name) {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) > 0 {
		w.logger.Debug("checking candidates",
			logging.String("trigger", trigger),
			logging.Int("candidates", len(candidates)))
	}

	dropped := make(chan string, len(candidates))
	var g errgroup.Group
	g.SetLimit(maxConcurrentChecks)
	for _, name := range candidates {
		g.Go(func() error {
			if !w.consider(ctx, name, onNewFile) {
				dropped <- name
			}
			return nil
		})
	}
	_ = g.Wait()
	close(dropped)

	for name := range dropped {
		delete(current, name)
	}
	w.lastSeen = current
}

// list returns the filtered names in the directory, preferring the batched
// query and falling back to a walk.
func (w *Watcher) list(ctx context.Context) (map[string]struct{}, string, error) {
	current := make(map[string]struct{})
	collect := func(e tree.Entry) {
		if !e.IsDir && w.filter.Match(e.Name) {
			current[e.Name] = struct{}{}
		}
	}

	err := w.tree.Query(ctx, w.batchSize, func(batch []tree.Entry) error {
		for _, e := range batch {
			collect(e)
		}
		return nil
	})
	if err == nil {
		return current, "query", nil
	}
	if ctx.Err() != nil {
		return nil, "query", ctx.Err()
	}
	w.logger.Debug("structured query failed; walking", logging.Error(err))

	clear(current)
	if err := w.tree.Walk(ctx, func(e tree.Entry) error {
		collect(e)
		return nil
	}); err != nil {
		return nil, "walk", err
	}
	return current, "walk", nil
}
