package config

const (
	defaultConfigPath                  = "~/.config/dropwatch/config.toml"
	defaultStateDir                    = "~/.local/share/dropwatch"
	defaultLogDir                      = "~/.local/share/dropwatch/logs"
	defaultAPIBind                     = "127.0.0.1:7391"
	defaultLogFormat                   = "console"
	defaultLogLevel                    = "info"
	defaultFileStoreName               = "known_files.txt"
	defaultSQLiteStoreName             = "known_files.db"
	defaultColdScanTimeoutSeconds      = 60
	defaultFullRescanIntervalHours     = 24
	defaultMaxQueueSize                = 1000
	defaultBatchSize                   = 500
	defaultCompletenessCheckDelayMs    = 200
	defaultCompletenessCheckMaxRetries = 5
	defaultPollIntervalSeconds         = 10
	defaultNotifyDebounceMs            = 500
	defaultChangeProbeMs               = 1000
	defaultMaxRescansPerMinute         = 60
	defaultNotifyTimeoutSeconds        = 10
	defaultNotifyMaxPerMinute          = 30

	// TargetDirEnv supplies tracking.target_dir when the config file leaves it empty.
	TargetDirEnv = "DROPWATCH_TARGET_DIR"
	// APITokenEnv supplies api.token when the config file leaves it empty.
	APITokenEnv = "DROPWATCH_API_TOKEN"
)

// Store backends.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

// Watch modes.
const (
	WatchModeAuto   = "auto"
	WatchModeNative = "native"
	WatchModePoll   = "poll"
)

func defaultAllowedExtensions() []string {
	return []string{"jpg", "jpeg", "png", "webp"}
}

func defaultIncompleteSuffixes() []string {
	return []string{".tmp", ".download", ".part", ".crdownload"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Tracking: Tracking{
			AllowedExtensions:           defaultAllowedExtensions(),
			IncompleteSuffixes:          defaultIncompleteSuffixes(),
			ColdScanTimeoutSeconds:      defaultColdScanTimeoutSeconds,
			FullRescanIntervalHours:     defaultFullRescanIntervalHours,
			MaxQueueSize:                defaultMaxQueueSize,
			BatchSize:                   defaultBatchSize,
			CompletenessCheckDelayMs:    defaultCompletenessCheckDelayMs,
			CompletenessCheckMaxRetries: defaultCompletenessCheckMaxRetries,
		},
		Watch: Watch{
			Mode:                WatchModeAuto,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			NotifyDebounceMs:    defaultNotifyDebounceMs,
			ChangeProbeMs:       defaultChangeProbeMs,
			MaxRescansPerMinute: defaultMaxRescansPerMinute,
		},
		Store: Store{
			Backend: StoreBackendFile,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notify: Notify{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
			MaxPerMinute:          defaultNotifyMaxPerMinute,
		},
	}
}
