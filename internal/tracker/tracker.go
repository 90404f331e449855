package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"dropwatch/internal/config"
	"dropwatch/internal/files"
	"dropwatch/internal/logging"
	"dropwatch/internal/metrics"
	"dropwatch/internal/scanner"
	"dropwatch/internal/store"
	"dropwatch/internal/tree"
	"dropwatch/internal/watcher"
)

// ErrNotStarted is returned when an operation needs a running session.
var ErrNotStarted = errors.New("tracker not started")

// Option customizes a Tracker.
type Option func(*Tracker)

// WithTree supplies the tree used by both the scanner and the watcher.
func WithTree(t tree.Tree) Option {
	return func(tr *Tracker) {
		tr.tree = t
	}
}

// WithClock overrides the clock used for persisted times.
func WithClock(now func() time.Time) Option {
	return func(tr *Tracker) {
		if now != nil {
			tr.now = now
		}
	}
}

// WithWatcherOptions passes options to every watcher the tracker creates.
func WithWatcherOptions(opts ...watcher.Option) Option {
	return func(tr *Tracker) {
		tr.watcherOpts = append(tr.watcherOpts, opts...)
	}
}

// Status is a point-in-time view of the tracker.
type Status struct {
	Running          bool   `json:"running"`
	SessionID        string `json:"session_id,omitempty"`
	Target           string `json:"target"`
	ColdScanComplete bool   `json:"cold_scan_complete"`
	ExistingCount    int    `json:"existing_count"`
	BaselineNew      int    `json:"baseline_new"`
	Strategy         string `json:"strategy,omitempty"`
	WatcherState     string `json:"watcher_state"`
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
}

// Tracker coordinates the store, the baseline scanner and the live watcher.
type Tracker struct {
	cfg         *config.Config
	store       store.Store
	base        *slog.Logger
	tree        tree.Tree
	now         func() time.Time
	watcherOpts []watcher.Option

	mu        sync.Mutex
	running   bool
	sessionID string
	logger    *slog.Logger
	existing  []files.Record
	baseline  int
	watcher   *watcher.Watcher
	cancel    context.CancelFunc
	coldDone  chan struct{}

	// sendMu orders sends on output against its close.
	sendMu sync.RWMutex
	output chan files.Record
	closed bool

	dropLog rate.Sometimes
	wg      sync.WaitGroup
}

// New returns a stopped tracker for cfg.Tracking.TargetDir. The store stays
// owned by the caller.
func New(cfg *config.Config, st store.Store, logger *slog.Logger, opts ...Option) (*Tracker, error) {
	if cfg == nil {
		return nil, errors.New("tracker: config is nil")
	}
	if st == nil {
		return nil, errors.New("tracker: store is nil")
	}
	if _, err := cfg.Tracking.Target(); err != nil {
		return nil, fmt.Errorf("tracker target: %w", err)
	}
	base := logging.NewComponentLogger(logger, "tracker")
	t := &Tracker{
		cfg:      cfg,
		store:    st,
		base:     base,
		logger:   base,
		now:      time.Now,
		coldDone: make(chan struct{}),
		dropLog:  rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start runs the baseline scan and starts live watching. It blocks until the
// baseline is classified and queued. Calling Start on a running tracker logs
// a warning and does nothing. Scan and watch failures are logged, not
// returned; they leave the session running with fewer detections.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		logger := t.logger
		t.mu.Unlock()
		logging.WarnWithContext(logger, "tracker already running; ignoring start", "tracker_double_start",
			logging.String(logging.FieldImpact, "none; the running session continues"),
			logging.String(logging.FieldErrorHint, "call Stop before starting a new session"))
		return nil
	}
	sessionID := uuid.NewString()
	logger := logging.WithSession(t.base, sessionID)
	runCtx, cancel := context.WithCancel(ctx)
	done := t.coldDone
	t.running = true
	t.sessionID = sessionID
	t.logger = logger
	t.cancel = cancel
	t.existing = nil
	t.baseline = 0
	out := t.openOutput(t.cfg.Tracking.MaxQueueSize)
	metrics.TrackerRunning.Set(1)
	t.mu.Unlock()

	var signalOnce sync.Once
	signal := func() { signalOnce.Do(func() { close(done) }) }
	defer signal()

	sc, w, err := t.components(logger)
	if err != nil {
		t.abort(sessionID, cancel, out)
		return err
	}
	if !t.setIfCurrent(sessionID, func() { t.watcher = w }) {
		return nil
	}

	logger.Info("tracking session starting",
		logging.String(logging.FieldTarget, sc.Target().String()))

	result := sc.Scan(runCtx)

	if !t.setIfCurrent(sessionID, func() {
		t.existing = result.Existing
		t.baseline = len(result.Incremental)
	}) {
		logger.Info("tracking session stopped during cold scan")
		return nil
	}

	for _, record := range result.Incremental {
		t.push(record, "baseline")
	}

	names := make([]string, 0, len(result.Existing)+len(result.Incremental))
	names = append(names, files.Names(result.Existing)...)
	names = append(names, files.Names(result.Incremental)...)
	w.UpdateKnownCache(names)

	if err := w.Start(runCtx, func(record files.Record) { t.push(record, "live") }); err != nil {
		metrics.WatcherErrors.Inc()
		logging.WarnWithContext(logger, "live watch unavailable", "live_watch_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "only the baseline scan is reported this session"),
			logging.String(logging.FieldErrorHint, "check that the target directory exists and is readable"))
	}

	signal()
	logger.Info("cold scan complete",
		logging.Int("existing", len(result.Existing)),
		logging.Int("incremental", len(result.Incremental)),
		logging.Int("removed", len(result.Removed)),
		logging.Duration("scan_duration", result.Duration))
	return nil
}

func (t *Tracker) components(logger *slog.Logger) (*scanner.Scanner, *watcher.Watcher, error) {
	var scanOpts []scanner.Option
	watchOpts := append([]watcher.Option(nil), t.watcherOpts...)
	if t.tree != nil {
		scanOpts = append(scanOpts, scanner.WithTree(t.tree))
		watchOpts = append(watchOpts, watcher.WithTree(t.tree))
	}
	scanOpts = append(scanOpts, scanner.WithClock(t.now))

	sc, err := scanner.New(t.cfg, t.store, logger, scanOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create scanner: %w", err)
	}
	w, err := watcher.New(t.cfg, t.store, logger, watchOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}
	return sc, w, nil
}

// setIfCurrent applies fn under the tracker lock if sessionID is still the
// running session.
func (t *Tracker) setIfCurrent(sessionID string, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.sessionID != sessionID {
		return false
	}
	fn()
	return true
}

// abort undoes a Start that failed before scanning.
func (t *Tracker) abort(sessionID string, cancel context.CancelFunc, out chan files.Record) {
	cancel()
	t.closeOutput(out)
	t.setIfCurrent(sessionID, func() {
		t.running = false
		t.cancel = nil
		t.sessionID = ""
		t.logger = t.base
		t.coldDone = make(chan struct{})
		metrics.TrackerRunning.Set(0)
	})
}

// AwaitColdScanComplete blocks until the current or next session has
// finished its baseline scan, or ctx ends.
func (t *Tracker) AwaitColdScanComplete(ctx context.Context) error {
	t.mu.Lock()
	done := t.coldDone
	t.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeExisting returns the files classified as existing by the baseline
// scan of the current session.
func (t *Tracker) ConsumeExisting() []files.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]files.Record(nil), t.existing...)
}

// ConsumeIncremental returns the queue of incremental records. The channel
// is closed by Stop.
func (t *Tracker) ConsumeIncremental() (<-chan files.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil, ErrNotStarted
	}
	t.sendMu.RLock()
	defer t.sendMu.RUnlock()
	return t.output, nil
}

// Stop stops the watcher, closes the incremental queue and records the exit
// time in the background.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return ErrNotStarted
	}
	w := t.watcher
	cancel := t.cancel
	logger := t.logger
	t.running = false
	t.watcher = nil
	t.cancel = nil
	t.existing = nil
	t.baseline = 0
	t.sessionID = ""
	t.logger = t.base
	t.coldDone = make(chan struct{})
	t.sendMu.RLock()
	out := t.output
	t.sendMu.RUnlock()
	metrics.TrackerRunning.Set(0)
	t.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	if cancel != nil {
		cancel()
	}
	t.closeOutput(out)

	exitAt := t.now()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.store.UpdateLastExit(context.Background(), exitAt)
	}()

	logger.Info("tracking session stopped")
	return nil
}

// Release stops any running session and waits for background writes.
func (t *Tracker) Release() {
	if err := t.Stop(); err != nil && !errors.Is(err, ErrNotStarted) {
		t.base.Warn("stop during release failed", logging.Error(err))
	}
	t.wg.Wait()
}

// MarkFileProcessed records name as known so it is never reported again.
// Names the store cannot hold are logged and ignored.
func (t *Tracker) MarkFileProcessed(ctx context.Context, name string) {
	t.mu.Lock()
	w := t.watcher
	logger := t.logger
	t.mu.Unlock()
	if !files.StorableName(name) {
		logging.WarnWithContext(logger, "ignoring processed mark for invalid file name", "invalid_file_name",
			logging.String(logging.FieldFileName, name),
			logging.String(logging.FieldImpact, "the name is not recorded as known"),
			logging.String(logging.FieldErrorHint, "pass a bare file name without slashes or line breaks"))
		return
	}
	if w != nil {
		w.AddToKnownCache(name)
	}
	t.store.AddKnownFile(ctx, name)
}

// IsFileKnown reports whether name has been reported or marked processed.
func (t *Tracker) IsFileKnown(ctx context.Context, name string) bool {
	t.mu.Lock()
	w := t.watcher
	t.mu.Unlock()
	if w != nil && w.IsKnown(name) {
		return true
	}
	_, ok := t.store.KnownFiles(ctx)[name]
	return ok
}

// ExistingCount returns the number of existing files in the current session.
func (t *Tracker) ExistingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.existing)
}

// ClearPersistentData discards the durable known-file set and metadata. The
// next Start classifies every present file as incremental.
func (t *Tracker) ClearPersistentData(ctx context.Context) {
	t.store.Clear(ctx)
	t.mu.Lock()
	logger := t.logger
	t.mu.Unlock()
	logger.Info("persistent tracking data cleared")
}

// Status returns a snapshot of the tracker.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	status := Status{
		Running:       t.running,
		SessionID:     t.sessionID,
		Target:        t.cfg.Tracking.TargetDir,
		ExistingCount: len(t.existing),
		BaselineNew:   t.baseline,
		WatcherState:  watcher.Stopped.String(),
	}
	select {
	case <-t.coldDone:
		status.ColdScanComplete = true
	default:
	}
	w := t.watcher
	t.mu.Unlock()

	if w != nil {
		state := w.State()
		status.WatcherState = state.String()
		if state == watcher.Watching {
			status.Strategy = w.Strategy().String()
		}
	}
	t.sendMu.RLock()
	if t.output != nil && !t.closed {
		status.QueueDepth = len(t.output)
		status.QueueCapacity = cap(t.output)
	}
	t.sendMu.RUnlock()
	return status
}

// openOutput replaces the queue. Callers hold t.mu.
func (t *Tracker) openOutput(size int) chan files.Record {
	if size <= 0 {
		size = 1
	}
	out := make(chan files.Record, size)
	t.sendMu.Lock()
	t.output = out
	t.closed = false
	t.sendMu.Unlock()
	metrics.QueueDepth.Set(0)
	return out
}

// closeOutput closes out if it is still the current queue; a queue opened
// by a later session is left alone.
func (t *Tracker) closeOutput(out chan files.Record) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if out != nil && t.output == out && !t.closed {
		close(t.output)
		t.closed = true
	}
}

// push enqueues record without blocking. A full queue drops the record.
func (t *Tracker) push(record files.Record, source string) {
	capacity, ok := t.send(record)
	if ok {
		metrics.FilesEmittedTotal.WithLabelValues(source).Inc()
		return
	}
	if capacity == 0 {
		return
	}
	metrics.QueueDroppedTotal.Inc()
	t.dropLog.Do(func() {
		t.mu.Lock()
		logger := t.logger
		t.mu.Unlock()
		logging.WarnWithContext(logger, "incremental queue full; dropping file", "queue_full",
			logging.String(logging.FieldFileName, record.FileName),
			logging.String("source", source),
			logging.Int("capacity", capacity),
			logging.String(logging.FieldImpact, "dropped files are reported after the next full rescan"),
			logging.String(logging.FieldErrorHint, "consume the queue faster or raise tracking.max_queue_size"))
	})
}

// send offers record to the open queue. It reports the queue capacity, zero
// when no queue is open, and whether the record was accepted. Lock order is
// t.mu before sendMu, so send never takes t.mu.
func (t *Tracker) send(record files.Record) (int, bool) {
	t.sendMu.RLock()
	defer t.sendMu.RUnlock()
	if t.output == nil || t.closed {
		return 0, false
	}
	select {
	case t.output <- record:
		metrics.QueueDepth.Set(float64(len(t.output)))
		return cap(t.output), true
	default:
		return cap(t.output), false
	}
}
