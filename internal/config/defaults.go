package config

import "interviewscope/internal/progress"

const (
	defaultConfigPath        = "~/.config/interviewscope/config.toml"
	projectConfigName        = "interviewscope.toml"
	defaultAPIBaseURL        = "http://127.0.0.1:8000"
	defaultAPITimeoutSeconds = 30
	defaultUserAgent         = "interviewscope/dev"
	defaultPollIntervalMs    = 1000
	minPollIntervalMs        = 100
	defaultDownloadDir       = "."
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"

	envAPIURL   = "INTERVIEWSCOPE_API_URL"
	envLogLevel = "INTERVIEWSCOPE_LOG_LEVEL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	steps := make([]string, len(progress.DefaultSteps))
	copy(steps, progress.DefaultSteps)
	return Config{
		API: API{
			BaseURL:        defaultAPIBaseURL,
			TimeoutSeconds: defaultAPITimeoutSeconds,
			UserAgent:      defaultUserAgent,
		},
		Polling: Polling{
			IntervalMillis: defaultPollIntervalMs,
		},
		Progress: Progress{
			Steps: steps,
		},
		Video: Video{
			DownloadDir: defaultDownloadDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
