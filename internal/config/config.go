package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dropwatch/internal/files"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
}

// Tracking contains the knobs of the change-tracking engine. They are read
// once when tracking starts and never change during a session.
type Tracking struct {
	TargetDir                   string   `toml:"target_dir"`
	AllowedExtensions           []string `toml:"allowed_extensions"`
	IncompleteSuffixes          []string `toml:"incomplete_suffixes"`
	ColdScanTimeoutSeconds      int      `toml:"cold_scan_timeout_seconds"`
	FullRescanIntervalHours     int      `toml:"full_rescan_interval_hours"`
	MaxQueueSize                int      `toml:"max_queue_size"`
	BatchSize                   int      `toml:"batch_size"`
	CompletenessCheckDelayMs    int      `toml:"completeness_check_delay_ms"`
	CompletenessCheckMaxRetries int      `toml:"completeness_check_max_retries"`
}

// Watch contains live watcher tuning.
type Watch struct {
	// Mode selects the live strategy: "auto", "native" or "poll".
	Mode                string `toml:"mode"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	NotifyDebounceMs    int    `toml:"notify_debounce_ms"`
	ChangeProbeMs       int    `toml:"change_probe_ms"`
	MaxRescansPerMinute int    `toml:"max_rescans_per_minute"`
}

// Store selects and locates the durable known-file store.
type Store struct {
	// Backend is "file" (line-oriented text) or "sqlite".
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// API contains the optional status HTTP server settings.
type API struct {
	Enabled bool `toml:"enabled"`
	// Token, when set, is required as a bearer token on every request
	// except the health probes.
	Token string `toml:"token"`
}

// Notify contains the optional ntfy notification settings.
type Notify struct {
	// NtfyTopic is the full topic URL, e.g. https://ntfy.sh/my-drops. Empty
	// disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	// MaxPerMinute caps new-file notifications; the excess is summarized in
	// the next notification sent.
	MaxPerMinute int `toml:"max_per_minute"`
}

// RequestTimeout bounds a single notification request.
func (n Notify) RequestTimeout() time.Duration {
	return time.Duration(n.RequestTimeoutSeconds) * time.Second
}

// Config encapsulates all configuration values for dropwatch.
//
// Configuration sections by subsystem:
//   - Paths: state/log directories and API bind address
//   - Tracking: target directory, filter and debounce knobs
//   - Watch: live watcher strategy and polling cadence
//   - Store: known-file store backend
//   - Logging: log format and level
//   - API: status server toggle
//   - Notify: ntfy notifications for new files
type Config struct {
	Paths    Paths    `toml:"paths"`
	Tracking Tracking `toml:"tracking"`
	Watch    Watch    `toml:"watch"`
	Store    Store    `toml:"store"`
	Logging  Logging  `toml:"logging"`
	API      API      `toml:"api"`
	Notify   Notify   `toml:"notify"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("dropwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.StorePath())} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the durable store location, deriving it from the state
// directory and backend when not set explicitly.
func (c *Config) StorePath() string {
	if p := strings.TrimSpace(c.Store.Path); p != "" {
		return p
	}
	name := defaultFileStoreName
	if c.Store.Backend == StoreBackendSQLite {
		name = defaultSQLiteStoreName
	}
	return filepath.Join(c.Paths.StateDir, name)
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "dropwatch.lock")
}

// ColdScanTimeout bounds how long callers wait on the cold-scan barrier.
func (t Tracking) ColdScanTimeout() time.Duration {
	return time.Duration(t.ColdScanTimeoutSeconds) * time.Second
}

// FullRescanInterval is the age after which the known-file set is discarded.
func (t Tracking) FullRescanInterval() time.Duration {
	return time.Duration(t.FullRescanIntervalHours) * time.Hour
}

// Target parses TargetDir into a locator.
func (t Tracking) Target() (files.Locator, error) {
	return files.ParseLocator(t.TargetDir)
}

// Filter builds the filename filter shared by the scanner and watcher.
func (t Tracking) Filter() *files.Filter {
	return files.NewFilter(t.AllowedExtensions, t.IncompleteSuffixes)
}

// CompletenessCheckDelay is the wait between the two size reads.
func (t Tracking) CompletenessCheckDelay() time.Duration {
	return time.Duration(t.CompletenessCheckDelayMs) * time.Millisecond
}

func (w Watch) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

func (w Watch) NotifyDebounce() time.Duration {
	return time.Duration(w.NotifyDebounceMs) * time.Millisecond
}

func (w Watch) ChangeProbe() time.Duration {
	return time.Duration(w.ChangeProbeMs) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// Sample renders the sample configuration. A non-empty targetDir replaces
// the placeholder tracking.target_dir value.
func Sample(targetDir string) ([]byte, error) {
	targetDir = strings.TrimSpace(targetDir)
	if targetDir == "" {
		return []byte(sampleConfig), nil
	}
	line, err := toml.Marshal(map[string]string{"target_dir": targetDir})
	if err != nil {
		return nil, fmt.Errorf("encode target_dir: %w", err)
	}
	const placeholder = `target_dir = ""`
	if !strings.Contains(sampleConfig, placeholder) {
		return nil, errors.New("sample config has no target_dir placeholder")
	}
	return []byte(strings.Replace(sampleConfig, placeholder, strings.TrimSpace(string(line)), 1)), nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path, targetDir string) error {
	content, err := Sample(targetDir)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
