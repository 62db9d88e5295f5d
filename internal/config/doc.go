// Package config loads, normalizes, and validates interviewscope
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// INTERVIEWSCOPE_API_URL. The Config type centralizes every knob the CLI
// needs: where the analysis backend lives, how often a live job is polled,
// which step labels drive progress estimation, and how logs are written.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs, canonical log formats, and clear validation errors.
package config
