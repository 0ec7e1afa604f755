package exec

import "log/slog"

// Logger is the context's log sink (§3, §4.6 "log"): every action, error,
// and trace record passes through here. Grounded on the teacher's
// runtime/app.go, which wires slog.NewJSONHandler for structured JSON
// logging; this runtime keeps that choice rather than introducing a
// separate logging library.
type Logger interface {
	Log(level, message string, fields map[string]any)
}

// SlogLogger adapts Logger onto *slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps an slog.Logger, e.g. one built with
// slog.NewJSONHandler(os.Stdout, nil) as the teacher's app.go does.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

func (s *SlogLogger) Log(level, message string, fields map[string]any) {
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	switch level {
	case "debug":
		s.logger.Debug(message, attrs...)
	case "warn", "warning":
		s.logger.Warn(message, attrs...)
	case "error":
		s.logger.Error(message, attrs...)
	default:
		s.logger.Info(message, attrs...)
	}
}
