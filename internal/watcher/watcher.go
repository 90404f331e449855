package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dropwatch/internal/config"
	"dropwatch/internal/fileutil"
	"dropwatch/internal/files"
	"dropwatch/internal/logging"
	"dropwatch/internal/metrics"
	"dropwatch/internal/store"
	"dropwatch/internal/tree"
)

// State is the watcher lifecycle state.
type State int

const (
	Stopped State = iota
	Starting
	Watching
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Watching:
		return "watching"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Callback receives each confirmed new file. It runs on a watcher goroutine
// and should return quickly.
type Callback func(files.Record)

var (
	// ErrAlreadyRunning is returned by Start when the watcher is not stopped.
	ErrAlreadyRunning = errors.New("watcher already running")
	errNilCallback    = errors.New("watcher: callback is nil")
)

// Option customizes a Watcher.
type Option func(*Watcher)

// WithTree supplies the tree used for listing and change notifications.
func WithTree(t tree.Tree) Option {
	return func(w *Watcher) {
		w.tree = t
	}
}

// WithFilesystemProbe overrides filesystem detection for auto mode.
func WithFilesystemProbe(probe func(string) (fileutil.Filesystem, error)) Option {
	return func(w *Watcher) {
		if probe != nil {
			w.detectFS = probe
		}
	}
}

// Watcher emits files that appear in the target after Start.
type Watcher struct {
	target        files.Locator
	filter        *files.Filter
	store         store.Store
	logger        *slog.Logger
	mode          string
	checkDelay    time.Duration
	checkRetries  int
	pollInterval  time.Duration
	debounce      time.Duration
	probeInterval time.Duration
	batchSize     int
	limiter       *rate.Limiter
	detectFS      func(string) (fileutil.Filesystem, error)

	tree tree.Tree

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu       sync.Mutex
	state    State
	strategy Strategy
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	knownMu sync.RWMutex
	known   map[string]struct{}

	inflightMu sync.Mutex
	inflight   map[string]bool

	passMu   sync.Mutex
	lastSeen map[string]struct{}
}

// New builds a stopped watcher for cfg.Tracking.TargetDir.
func New(cfg *config.Config, st store.Store, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if cfg == nil {
		return nil, errors.New("watcher: config is nil")
	}
	if st == nil {
		return nil, errors.New("watcher: store is nil")
	}
	target, err := cfg.Tracking.Target()
	if err != nil {
		return nil, fmt.Errorf("watcher target: %w", err)
	}

	perMinute := cfg.Watch.MaxRescansPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	w := &Watcher{
		target:        target,
		filter:        cfg.Tracking.Filter(),
		store:         st,
		logger:        logging.NewComponentLogger(logger, "watcher"),
		mode:          cfg.Watch.Mode,
		checkDelay:    cfg.Tracking.CompletenessCheckDelay(),
		checkRetries:  cfg.Tracking.CompletenessCheckMaxRetries,
		pollInterval:  cfg.Watch.PollInterval(),
		debounce:      cfg.Watch.NotifyDebounce(),
		probeInterval: cfg.Watch.ChangeProbe(),
		batchSize:     cfg.Tracking.BatchSize,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		detectFS:      fileutil.DetectFilesystem,
		known:         make(map[string]struct{}),
		inflight:      make(map[string]bool),
		lastSeen:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Strategy returns the strategy chosen by the last Start.
func (w *Watcher) Strategy() Strategy {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.strategy
}

// Start chooses a strategy and begins watching in the background. The
// watcher runs until Stop is called or ctx ends.
func (w *Watcher) Start(ctx context.Context, onNewFile Callback) error {
	if onNewFile == nil {
		return errNilCallback
	}

	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	if w.state != Stopped {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.state = Starting
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	strategy, err := w.launch(runCtx, onNewFile)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		cancel()
		w.cancel = nil
		w.state = Stopped
		return err
	}
	if runCtx.Err() != nil {
		// Parent context ended while starting.
		w.cancel = nil
		w.state = Stopped
		return nil
	}
	w.state = Watching
	w.strategy = strategy
	metrics.SetStrategy(strategy.String())
	w.logger.Info("live watch started",
		logging.String(logging.FieldTarget, w.target.String()),
		logging.String(logging.FieldStrategy, strategy.String()))
	return nil
}

func (w *Watcher) launch(ctx context.Context, onNewFile Callback) (Strategy, error) {
	if w.tree == nil {
		t, err := tree.Open(w.target, w.probeInterval, w.logger)
		if err != nil {
			return StrategyPoll, fmt.Errorf("open watch target: %w", err)
		}
		w.tree = t
	}

	strategy := w.chooseStrategy()
	if strategy == StrategyNative {
		err := w.startNative(ctx, onNewFile)
		if err == nil {
			return StrategyNative, nil
		}
		metrics.WatcherErrors.Inc()
		logging.WarnWithContext(w.logger, "native events unavailable; falling back to polling", "native_watch_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "new files are detected with polling latency"),
			logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches or set watch.mode = \"poll\""))
	}
	if err := w.startPoll(ctx, onNewFile); err != nil {
		return StrategyPoll, err
	}
	return StrategyPoll, nil
}

func (w *Watcher) chooseStrategy() Strategy {
	fsys := fileutil.Unknown
	if dir, ok := w.target.Path(); ok && w.mode != config.WatchModeNative && w.mode != config.WatchModePoll {
		detected, err := w.detectFS(dir)
		if err != nil {
			w.logger.Debug("filesystem detection failed", logging.Error(err))
		} else {
			fsys = detected
		}
	}
	strategy := ChooseStrategy(w.mode, w.target, fsys)
	w.logger.Debug("watch strategy selected",
		logging.String(logging.FieldStrategy, strategy.String()),
		logging.String("mode", w.mode),
		logging.String("filesystem", fsys.Name))
	return strategy
}

// Stop cancels all background work and waits for it to exit. In-flight
// completeness checks are abandoned. Stop is safe to call in any state.
func (w *Watcher) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	wasRunning := w.state != Stopped
	w.state = Stopped
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	w.passMu.Lock()
	clear(w.lastSeen)
	w.passMu.Unlock()

	if wasRunning {
		metrics.SetStrategy("")
		w.logger.Info("live watch stopped")
	}
}

// UpdateKnownCache merges names into the in-memory known-file cache.
func (w *Watcher) UpdateKnownCache(names []string) {
	w.knownMu.Lock()
	defer w.knownMu.Unlock()
	for _, name := range names {
		w.known[name] = struct{}{}
	}
}

// AddToKnownCache marks one name as known.
func (w *Watcher) AddToKnownCache(name string) {
	w.knownMu.Lock()
	w.known[name] = struct{}{}
	w.knownMu.Unlock()
}

// ResetKnownCache empties the in-memory known-file cache.
func (w *Watcher) ResetKnownCache() {
	w.knownMu.Lock()
	clear(w.known)
	w.knownMu.Unlock()
}

// IsKnown reports whether name is in the in-memory cache.
func (w *Watcher) IsKnown(name string) bool {
	w.knownMu.RLock()
	defer w.knownMu.RUnlock()
	_, ok := w.known[name]
	return ok
}

// claim adds name to the known cache and reports whether it was new.
func (w *Watcher) claim(name string) bool {
	w.knownMu.Lock()
	defer w.knownMu.Unlock()
	if _, ok := w.known[name]; ok {
		return false
	}
	w.known[name] = struct{}{}
	return true
}

func (w *Watcher) spawn(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}
