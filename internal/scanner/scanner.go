package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"dropwatch/internal/config"
	"dropwatch/internal/files"
	"dropwatch/internal/logging"
	"dropwatch/internal/metrics"
	"dropwatch/internal/store"
	"dropwatch/internal/tree"
)

// Result is the outcome of one baseline scan.
type Result struct {
	Existing    []files.Record
	Incremental []files.Record
	Removed     map[string]struct{}
	Duration    time.Duration
	// Forced reports that the known-file set was discarded before listing.
	Forced bool
}

// Empty reports whether the scan found nothing to classify.
func (r Result) Empty() bool {
	return len(r.Existing) == 0 && len(r.Incremental) == 0 && len(r.Removed) == 0
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithTree supplies the tree used for handle locators.
func WithTree(t tree.Tree) Option {
	return func(s *Scanner) {
		s.tree = t
	}
}

// WithClock overrides the clock used for persisted scan times.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// Scanner classifies the current directory contents against the store.
type Scanner struct {
	target         files.Locator
	filter         *files.Filter
	store          store.Store
	tree           tree.Tree
	batchSize      int
	rescanInterval time.Duration
	probeInterval  time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// New builds a scanner for cfg.Tracking.TargetDir. Handle locators are
// listed through a tree, opened from the locator on first use when WithTree
// is not given.
func New(cfg *config.Config, st store.Store, logger *slog.Logger, opts ...Option) (*Scanner, error) {
	if cfg == nil {
		return nil, errors.New("scanner: config is nil")
	}
	if st == nil {
		return nil, errors.New("scanner: store is nil")
	}
	target, err := cfg.Tracking.Target()
	if err != nil {
		return nil, fmt.Errorf("scanner target: %w", err)
	}

	s := &Scanner{
		target:         target,
		filter:         cfg.Tracking.Filter(),
		store:          st,
		batchSize:      cfg.Tracking.BatchSize,
		rescanInterval: cfg.Tracking.FullRescanInterval(),
		probeInterval:  cfg.Watch.ChangeProbe(),
		logger:         logging.NewComponentLogger(logger, "scanner"),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Target returns the scanned directory.
func (s *Scanner) Target() files.Locator { return s.target }

// Scan lists the directory and classifies its contents. It never returns an
// error; an unreadable directory yields an empty result and leaves the store
// untouched.
func (s *Scanner) Scan(ctx context.Context) Result {
	start := time.Now()
	logger := s.logger.With(logging.String(logging.FieldTarget, s.target.String()))

	forced := s.store.NeedsFullRescan(ctx, s.rescanInterval)
	if forced {
		logger.Info("known-file set is stale; forcing full rescan",
			logging.Duration("interval", s.rescanInterval))
		s.store.Clear(ctx)
	}

	current, method, err := s.enumerate(ctx)
	if err != nil {
		metrics.ColdScansTotal.WithLabelValues("failed", strconv.FormatBool(forced)).Inc()
		logging.WarnWithContext(logger, "baseline scan failed; continuing with empty result", "cold_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the target directory exists and is readable"),
			logging.String(logging.FieldImpact, "files already present are not reported until the next scan"))
		return Result{Removed: map[string]struct{}{}, Duration: time.Since(start), Forced: forced}
	}

	known := s.store.KnownFiles(ctx)
	result := classify(current, known)
	result.Forced = forced

	names := make(map[string]struct{}, len(current))
	for name := range current {
		names[name] = struct{}{}
	}
	now := s.now().UnixMilli()
	s.store.Update(ctx, store.Metadata{
		LastExit:             now,
		LastFullScanComplete: now,
		KnownFileCount:       len(names),
	}, names)

	result.Duration = time.Since(start)
	metrics.ColdScansTotal.WithLabelValues("ok", strconv.FormatBool(forced)).Inc()
	metrics.ColdScanDuration.Observe(result.Duration.Seconds())
	metrics.ColdScanFiles.WithLabelValues("existing").Set(float64(len(result.Existing)))
	metrics.ColdScanFiles.WithLabelValues("incremental").Set(float64(len(result.Incremental)))
	metrics.ColdScanFiles.WithLabelValues("removed").Set(float64(len(result.Removed)))

	logger.Info("baseline scan complete",
		logging.Int("existing", len(result.Existing)),
		logging.Int("incremental", len(result.Incremental)),
		logging.Int("removed", len(result.Removed)),
		logging.Bool("forced", forced),
		logging.String("method", method),
		logging.Duration("duration", result.Duration))
	return result
}

// classify partitions current by membership in known. Records are returned in
// name order.
func classify(current map[string]files.Record, known map[string]struct{}) Result {
	result := Result{Removed: make(map[string]struct{})}
	for name, record := range current {
		if _, ok := known[name]; ok {
			record.IsIncremental = false
			result.Existing = append(result.Existing, record)
			continue
		}
		record.IsIncremental = true
		result.Incremental = append(result.Incremental, record)
	}
	for name := range known {
		if _, ok := current[name]; !ok {
			result.Removed[name] = struct{}{}
		}
	}
	sortRecords(result.Existing)
	sortRecords(result.Incremental)
	return result
}

func sortRecords(records []files.Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].FileName < records[j].FileName })
}
