package errors

import (
	"context"
	"log/slog"
)

// CLIErrorAdapter renders errors on stderr and picks the process exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor returns 0 for nil and 1 for unclassified errors.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if k, ok := kindOf(err); ok {
		return k.exitCode
	}
	return 1
}

// FormatError renders err for a terminal. Verbose output keeps the classification
// prefix.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	c, ok := AsClassified(err)
	switch {
	case !ok:
		return "Error: " + err.Error()
	case a.verbose:
		return c.Error()
	case c.cause != nil:
		return "Error: " + c.message + ": " + c.cause.Error()
	default:
		return "Error: " + c.message
	}
}

// Report logs err at its severity and returns the exit code.
func (a *CLIErrorAdapter) Report(err error) int {
	if err == nil {
		return 0
	}
	c, ok := AsClassified(err)
	if !ok {
		a.logger.Error("command failed", slog.String("error", err.Error()))
		return a.ExitCodeFor(err)
	}

	attrs := make([]slog.Attr, 0, len(c.context)+2)
	attrs = append(attrs, slog.String("category", string(c.category)))
	for k, v := range c.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if c.cause != nil {
		attrs = append(attrs, slog.String("error", c.cause.Error()))
	}
	a.logger.LogAttrs(context.Background(), levelFor(c.severity), c.message, attrs...)
	return a.ExitCodeFor(err)
}

func levelFor(severity ErrorSeverity) slog.Level {
	if severity == SeverityWarning {
		return slog.LevelWarn
	}
	return slog.LevelError
}
