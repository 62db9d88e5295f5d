package testsupport

import (
	"path/filepath"
	"testing"

	"interviewscope/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.API.BaseURL = "http://127.0.0.1:0"
	cfgVal.API.TimeoutSeconds = 5
	cfgVal.Polling.IntervalMillis = 100
	cfgVal.Video.DownloadDir = filepath.Join(base, "videos")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackend points the test config at a backend base URL.
func WithBackend(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.BaseURL = url
	}
}

// WithPollInterval overrides the polling cadence in milliseconds.
func WithPollInterval(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Polling.IntervalMillis = ms
	}
}

// WithSteps replaces the known progress steps.
func WithSteps(steps ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Progress.Steps = append([]string(nil), steps...)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Video.DownloadDir)
}
