package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dropwatch/internal/config"
	"dropwatch/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	targetDir  string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	t.Setenv(config.TargetDirEnv, "")
	t.Setenv(config.APITokenEnv, "")
	cfg := testsupport.NewConfig(t, opts...)

	configPath := filepath.Join(homeDir, ".config", "dropwatch", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		targetDir:  testsupport.TargetDir(cfg),
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q
api_bind = %q

[tracking]
target_dir = %q
completeness_check_delay_ms = %d

[watch]
mode = %q
poll_interval_seconds = %d
notify_debounce_ms = %d
change_probe_ms = %d
max_rescans_per_minute = %d

[store]
backend = %q

[logging]
level = "warn"

[api]
enabled = %t
token = %q
`,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Tracking.TargetDir,
		cfg.Tracking.CompletenessCheckDelayMs,
		cfg.Watch.Mode,
		cfg.Watch.PollIntervalSeconds,
		cfg.Watch.NotifyDebounceMs,
		cfg.Watch.ChangeProbeMs,
		cfg.Watch.MaxRescansPerMinute,
		cfg.Store.Backend,
		cfg.API.Enabled,
		cfg.API.Token,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args, configPath, &bytes.Buffer{})
}

// runCLIContext executes the command tree with ctx. stdout may be shared
// with a concurrent reader through a syncBuffer.
func runCLIContext(t *testing.T, ctx context.Context, args []string, configPath string, stdout interface {
	Write([]byte) (int, error)
	String() string
}) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stderr bytes.Buffer
	cmd.SetOut(stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
