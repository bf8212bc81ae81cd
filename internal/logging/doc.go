// Package logging configures the process-wide slog logger. Records go to
// stderr, and optionally to a size-rotated JSON log file that the logs
// command can tail.
package logging
