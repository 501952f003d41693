package config

const (
	defaultStateDir           = "~/.local/share/vodsync"
	defaultOutputDir          = "~/videos"
	defaultPeriodDays         = 30
	defaultQuality            = "bestvideo[height<=1080]+bestaudio/best[height<=720]/best"
	defaultDownloadTimeout    = 3600
	defaultConcurrency        = 1
	defaultYtdlpBinary        = "yt-dlp"
	defaultSyncIntervalHours  = 6
	defaultFirstRunTime       = "08:00"
	defaultSchedulerTick      = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			OutputDir: defaultOutputDir,
		},
		Download: Download{
			DefaultPeriodDays: defaultPeriodDays,
			Quality:           defaultQuality,
			TimeoutSeconds:    defaultDownloadTimeout,
			Concurrency:       defaultConcurrency,
			YtdlpBinary:       defaultYtdlpBinary,
		},
		Scheduler: Scheduler{
			SyncIntervalHours: defaultSyncIntervalHours,
			FirstRunTime:      defaultFirstRunTime,
			TickSeconds:       defaultSchedulerTick,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
