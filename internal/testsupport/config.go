package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dropwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The target directory exists and is empty; timings are shortened so watcher
// tests settle in milliseconds.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Tracking.TargetDir = filepath.Join(base, "incoming")
	cfgVal.Tracking.CompletenessCheckDelayMs = 10
	cfgVal.Watch.NotifyDebounceMs = 10
	cfgVal.Watch.ChangeProbeMs = 10
	cfgVal.Watch.PollIntervalSeconds = 1
	cfgVal.Watch.MaxRescansPerMinute = 6000

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(TargetDir(builder.cfg), 0o755); err != nil {
		t.Fatalf("mkdir target: %v", err)
	}
	return builder.cfg
}

// WithStoreBackend selects the durable store backend.
func WithStoreBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = backend
	}
}

// WithWatchMode selects the live watch strategy.
func WithWatchMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watch.Mode = mode
	}
}

// WithMountTarget addresses the target directory through a mount:// handle
// instead of a plain path.
func WithMountTarget() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tracking.TargetDir = "mount://" + filepath.ToSlash(filepath.Join(b.baseDir, "incoming"))
	}
}

// WithQueueSize overrides the output buffer capacity.
func WithQueueSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tracking.MaxQueueSize = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// TargetDir returns the filesystem directory behind the configured target,
// whether it is addressed by path or by handle.
func TargetDir(cfg *config.Config) string {
	return filepath.Join(BaseDir(cfg), "incoming")
}
