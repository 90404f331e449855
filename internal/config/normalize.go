package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTracking(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.Watch.Mode = strings.ToLower(strings.TrimSpace(c.Watch.Mode))
	if c.Watch.Mode == "" {
		c.Watch.Mode = WatchModeAuto
	}
	c.normalizeLogging()
	c.Notify.NtfyTopic = strings.TrimSpace(c.Notify.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv(APITokenEnv); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeTracking() error {
	target := strings.TrimSpace(c.Tracking.TargetDir)
	if target == "" {
		if value, ok := os.LookupEnv(TargetDirEnv); ok {
			target = strings.TrimSpace(value)
		}
	}
	// URIs are resolved by the files package; only bare paths get ~ expansion.
	if target != "" && !strings.Contains(target, "://") {
		expanded, err := expandPath(target)
		if err != nil {
			return fmt.Errorf("tracking.target_dir: %w", err)
		}
		target = expanded
	}
	c.Tracking.TargetDir = target

	c.Tracking.AllowedExtensions = normalizeList(c.Tracking.AllowedExtensions, func(v string) string {
		return strings.TrimPrefix(strings.ToLower(v), ".")
	})
	if len(c.Tracking.AllowedExtensions) == 0 {
		c.Tracking.AllowedExtensions = defaultAllowedExtensions()
	}
	c.Tracking.IncompleteSuffixes = normalizeList(c.Tracking.IncompleteSuffixes, strings.ToLower)
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendFile
	}
	path := strings.TrimSpace(c.Store.Path)
	if path == "" {
		c.Store.Path = ""
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	c.Store.Path = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeList(values []string, transform func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = transform(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
