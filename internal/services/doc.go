// Package services defines shared utilities consumed by the job coordinator
// and the backend integration.
//
// Key responsibilities:
//   - Context helpers that stamp backend job IDs and correlation identifiers
//     for logging and request tracing.
//   - Structured error markers plus the Wrap helper that tag failures with
//     their class (submission, transient poll, job failure, result
//     retrieval) so callers can render and exit on them consistently.
//
// Use these helpers when wiring new integration code so operational behaviour
// (error classes, observability) stays uniform across the client.
package services
