// Package logging assembles structured slog loggers and formatting helpers used
// across the captioner.
//
// It owns the configurable console/JSON handlers, rotates file outputs, and
// exposes context-aware helpers so stage code automatically tags log lines
// with job IDs, stages, and correlation IDs. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
