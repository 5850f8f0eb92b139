// Package logging assembles structured slog loggers and formatting helpers
// used across tryon components.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes typed attribute helpers so components emit data with the same
// shape. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
package logging
