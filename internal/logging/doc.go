// Package logging assembles structured slog loggers and formatting helpers
// used across qupload.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so scheduler and transport code
// automatically tag log lines with task and request identifiers. A no-op
// logger is provided for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
