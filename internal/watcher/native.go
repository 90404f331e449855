package watcher

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"dropwatch/internal/logging"
	"dropwatch/internal/metrics"
)

// startNative registers an fsnotify watch on the target directory and runs a
// catch-up pass for files created between the baseline scan and the watch.
func (w *Watcher) startNative(ctx context.Context, onNewFile Callback) error {
	dir, ok := w.target.Path()
	if !ok {
		return fmt.Errorf("native events need a path target, got %s", w.target.Kind())
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.spawn(func() {
		defer func() {
			if err := fw.Close(); err != nil {
				w.logger.Debug("failed to close file watcher", logging.Error(err))
			}
		}()
		w.processEvents(ctx, fw, onNewFile)
	})
	w.spawn(func() {
		w.pass(ctx, "startup", onNewFile)
	})
	return nil
}

func (w *Watcher) processEvents(ctx context.Context, fw *fsnotify.Watcher, onNewFile Callback) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event, onNewFile)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			metrics.WatcherErrors.Inc()
			logging.WarnWithContext(w.logger, "file watcher error", "native_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "events may have been dropped until the next restart"),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_queued_events if this repeats"))
		}
	}
}

// handleEvent starts a completeness check for created and written files.
// Renames into the directory arrive as creates.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, onNewFile Callback) {
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	name := filepath.Base(event.Name)
	if !w.filter.Match(name) || w.IsKnown(name) {
		return
	}
	w.spawn(func() {
		w.consider(ctx, name, onNewFile)
	})
}

func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}
