// Package alert handles sending notifications.
package alert

import (
	"go.uber.org/zap"

	"github.com/your-org/iris-knn/internal/config"
)

// Notifier is the interface for sending alert messages.
type Notifier interface {
	Send(message string) error
	Close() error
}

// NewNotifier returns a LogNotifier when alerts are enabled and a
// NoOpNotifier otherwise.
func NewNotifier(cfg config.AlertConfig, logger *zap.Logger) Notifier {
	if !bool(cfg.Enabled) {
		return NewNoOpNotifier()
	}
	return NewLogNotifier(logger)
}

// NoOpNotifier is a notifier that does nothing. It is used when alerting is disabled.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Send does nothing and returns nil.
func (n *NoOpNotifier) Send(message string) error {
	return nil
}

// Close does nothing and returns nil.
func (n *NoOpNotifier) Close() error {
	return nil
}

// LogNotifier writes every alert as a warning-level log entry.
type LogNotifier struct {
	logger *zap.Logger
	sent   int
}

// NewLogNotifier creates a LogNotifier. A nil logger discards alerts.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("alert")}
}

// Send logs message.
func (n *LogNotifier) Send(message string) error {
	n.sent++
	n.logger.Warn(message)
	return nil
}

// Close logs how many alerts were sent.
func (n *LogNotifier) Close() error {
	n.logger.Debug("Notifier closed", zap.Int("sent", n.sent))
	return nil
}
