package config

const (
	defaultDatabasePath           = "~/.local/share/winnow/winnow.db"
	defaultLogDir                 = "~/.local/share/winnow/logs"
	defaultLogRetentionDays       = 60
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultGracePeriodDays        = 7
	defaultReconcileIntervalHours = 1
	defaultWatcherQueueSize       = 100
	defaultNtfyServer             = "https://ntfy.sh"
	defaultNotifyRequestTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Database: Database{
			Path: defaultDatabasePath,
		},
		Lifecycle: Lifecycle{
			GracePeriodDays:        defaultGracePeriodDays,
			ReconcileIntervalHours: defaultReconcileIntervalHours,
		},
		Watcher: Watcher{
			Enabled:   true,
			QueueSize: defaultWatcherQueueSize,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			Dir:           defaultLogDir,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			NtfyServer:     defaultNtfyServer,
			RequestTimeout: defaultNotifyRequestTimeout,
			Trashed:        true,
			Purged:         true,
			Rescued:        true,
			Errors:         true,
		},
	}
}
