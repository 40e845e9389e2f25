// Package logger configures the process-wide slog JSON logger and provides
// helpers for carrying a request-scoped logger through context.
package logger
