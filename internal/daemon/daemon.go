package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"dropwatch/internal/config"
	"dropwatch/internal/files"
	"dropwatch/internal/logging"
	"dropwatch/internal/store"
	"dropwatch/internal/tracker"
	"dropwatch/internal/tree"
)

// ErrAlreadyRunning is returned when another process holds the state lock.
var ErrAlreadyRunning = errors.New("another dropwatch instance is already tracking this state directory")

// Daemon coordinates the tracker and the status API and enforces
// single-instance execution per state directory.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	tracker *tracker.Tracker

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	api     *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	StorePath    string
	StoreBackend string
	Tracker      tracker.Status
}

// New constructs a daemon around st. The daemon owns st and closes it in
// Close.
func New(cfg *config.Config, st store.Store, logger *slog.Logger, opts ...tracker.Option) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	tr, err := tracker.New(cfg, st, logger, opts...)
	if err != nil {
		return nil, err
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		tracker:  tr,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, starts tracking and waits for the cold
// scan for at most tracking.cold_scan_timeout_seconds. A scan that outlives
// the timeout keeps running; the daemon starts without waiting for it.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.startTracker(runCtx); err != nil {
		cancel()
		d.tracker.Release()
		_ = d.lock.Unlock()
		return err
	}

	if d.cfg.API.Enabled {
		srv := newAPIServer(d.cfg, d, d.logger)
		if err := srv.start(runCtx); err != nil {
			cancel()
			d.tracker.Release()
			_ = d.lock.Unlock()
			return err
		}
		d.api = srv
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("dropwatch daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldTarget, d.cfg.Tracking.TargetDir))
	return nil
}

func (d *Daemon) startTracker(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.tracker.Start(ctx)
	}()

	waitCtx, cancelWait := context.WithTimeout(ctx, d.cfg.Tracking.ColdScanTimeout())
	waitErr := d.tracker.AwaitColdScanComplete(waitCtx)
	cancelWait()

	switch {
	case waitErr == nil:
		if err := <-errCh; err != nil {
			return fmt.Errorf("start tracker: %w", err)
		}
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		logging.WarnWithContext(d.logger, "cold scan still running; starting without it", "cold_scan_timeout",
			logging.Duration("timeout", d.cfg.Tracking.ColdScanTimeout()),
			logging.String(logging.FieldImpact, "existing files are reported once the scan completes"),
			logging.String(logging.FieldErrorHint, "raise tracking.cold_scan_timeout_seconds for very large directories"))
		go func() {
			if err := <-errCh; err != nil {
				logging.ErrorWithContext(d.logger, "tracker start failed after cold scan timeout", "tracker_start_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "run `dropwatch check` and restart"))
			}
		}()
		return nil
	}
}

// Stop stops tracking, shuts down the API and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.api = nil
	d.tracker.Release()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("dropwatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Incremental returns the incremental queue of the running session.
func (d *Daemon) Incremental() (<-chan files.Record, error) {
	return d.tracker.ConsumeIncremental()
}

// Existing returns the files classified as existing this session.
func (d *Daemon) Existing() []files.Record {
	return d.tracker.ConsumeExisting()
}

// MarkProcessed records name as handled so it is never reported again.
func (d *Daemon) MarkProcessed(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	d.tracker.MarkFileProcessed(ctx, name)
	return nil
}

// IsKnown reports whether name has been reported or marked processed.
func (d *Daemon) IsKnown(ctx context.Context, name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	return d.tracker.IsFileKnown(ctx, name), nil
}

// LockPath returns the single-instance lock location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// APIAddress returns the bound API address, or "" when the API is off.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		StorePath:    d.cfg.StorePath(),
		StoreBackend: d.cfg.Store.Backend,
		Tracker:      d.tracker.Status(),
	}
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || !fs.ValidPath(name) || name == "." {
		return fmt.Errorf("%w: %q", tree.ErrInvalidName, name)
	}
	return nil
}
