// Package main hosts the interviewscope CLI entrypoint and command graph.
//
// The Cobra-based command tree uploads interview videos to the analysis
// backend, follows each job through the lifecycle coordinator, and renders
// the status panel, video preview, and results views in the terminal. It
// centralizes configuration resolution, backend client construction, and
// structured logging setup so subcommands can focus on presentation.
//
// Keep this package lean: job semantics live in internal/jobs and the wire
// contract in internal/services/analysisapi; commands here only render
// their output.
package main
