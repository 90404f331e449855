package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"dropwatch/internal/files"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if c.API.Enabled {
		if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
			return fmt.Errorf("paths.api_bind: %w", err)
		}
	}
	return nil
}

func (c *Config) validateTracking() error {
	if c.Tracking.TargetDir == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("tracking.target_dir is required. Set %s or edit %s (create with 'dropwatch config init')", TargetDirEnv, defaultPath)
	}
	if _, err := files.ParseLocator(c.Tracking.TargetDir); err != nil {
		return fmt.Errorf("tracking.target_dir: %w", err)
	}
	if err := ensurePositiveMap(map[string]int{
		"tracking.cold_scan_timeout_seconds":   c.Tracking.ColdScanTimeoutSeconds,
		"tracking.full_rescan_interval_hours":  c.Tracking.FullRescanIntervalHours,
		"tracking.max_queue_size":              c.Tracking.MaxQueueSize,
		"tracking.batch_size":                  c.Tracking.BatchSize,
		"tracking.completeness_check_delay_ms": c.Tracking.CompletenessCheckDelayMs,
	}); err != nil {
		return err
	}
	if c.Tracking.CompletenessCheckMaxRetries < 0 {
		return errors.New("tracking.completeness_check_max_retries must not be negative")
	}
	return nil
}

func (c *Config) validateWatch() error {
	switch c.Watch.Mode {
	case WatchModeAuto, WatchModeNative, WatchModePoll:
	default:
		return fmt.Errorf("watch.mode: unsupported value %q (use auto, native or poll)", c.Watch.Mode)
	}
	return ensurePositiveMap(map[string]int{
		"watch.poll_interval_seconds":  c.Watch.PollIntervalSeconds,
		"watch.notify_debounce_ms":     c.Watch.NotifyDebounceMs,
		"watch.change_probe_ms":        c.Watch.ChangeProbeMs,
		"watch.max_rescans_per_minute": c.Watch.MaxRescansPerMinute,
	})
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendFile, StoreBackendSQLite:
		return nil
	default:
		return fmt.Errorf("store.backend: unsupported value %q (use file or sqlite)", c.Store.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func (c *Config) validateNotify() error {
	if c.Notify.NtfyTopic == "" {
		return nil
	}
	u, err := url.Parse(c.Notify.NtfyTopic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notify.ntfy_topic: %q is not an http(s) topic URL", c.Notify.NtfyTopic)
	}
	return ensurePositiveMap(map[string]int{
		"notify.request_timeout_seconds": c.Notify.RequestTimeoutSeconds,
		"notify.max_per_minute":          c.Notify.MaxPerMinute,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
