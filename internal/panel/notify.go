package panel

import "log/slog"

// Notifier receives exactly one user-visible notification per terminal
// outcome of a panel action. The visual form is the caller's concern.
type Notifier interface {
	Success(message string)
	Info(message string)
	Error(message string)
}

// LogNotifier writes notifications to the structured log. Used when the
// panel runs headless and in tests that don't care about notifications.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Success logs a success notification.
func (n LogNotifier) Success(message string) {
	n.logger().Info("notify", slog.String("kind", "success"), slog.String("message", message))
}

// Info logs an informational notification.
func (n LogNotifier) Info(message string) {
	n.logger().Info("notify", slog.String("kind", "info"), slog.String("message", message))
}

// Error logs a failure notification.
func (n LogNotifier) Error(message string) {
	n.logger().Warn("notify", slog.String("kind", "error"), slog.String("message", message))
}
