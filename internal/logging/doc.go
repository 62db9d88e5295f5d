// Package logging assembles structured slog loggers and formatting helpers used
// across interviewscope.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so coordinator and gateway code
// can tag log lines with backend job IDs and per-request correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail, and a sampler that keeps progress logging quiet between meaningful
// changes.
package logging
