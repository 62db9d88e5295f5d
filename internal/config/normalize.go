package config

import (
	"fmt"
	"os"
	"strings"

	"interviewscope/internal/progress"
)

func (c *Config) normalize() error {
	c.normalizeAPI()
	c.normalizePolling()
	c.normalizeProgress()
	if err := c.normalizeVideo(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeAPI() {
	if value, ok := os.LookupEnv(envAPIURL); ok && strings.TrimSpace(value) != "" {
		c.API.BaseURL = value
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	c.API.UserAgent = strings.TrimSpace(c.API.UserAgent)
	if c.API.UserAgent == "" {
		c.API.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizePolling() {
	if c.Polling.IntervalMillis == 0 {
		c.Polling.IntervalMillis = defaultPollIntervalMs
	}
}

func (c *Config) normalizeProgress() {
	steps := make([]string, 0, len(c.Progress.Steps))
	seen := make(map[string]struct{}, len(c.Progress.Steps))
	for _, step := range c.Progress.Steps {
		normalized := progress.NormalizeStep(step)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		steps = append(steps, normalized)
	}
	if len(steps) == 0 {
		steps = append(steps, progress.DefaultSteps...)
	}
	c.Progress.Steps = steps
}

func (c *Config) normalizeVideo() error {
	if strings.TrimSpace(c.Video.DownloadDir) == "" {
		c.Video.DownloadDir = defaultDownloadDir
	}
	var err error
	if c.Video.DownloadDir, err = expandPath(c.Video.DownloadDir); err != nil {
		return fmt.Errorf("video.download_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.Dir) != "" {
		var err error
		if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
	}
	return nil
}
