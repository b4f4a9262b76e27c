package event

import (
	"context"

	"go.uber.org/zap"
)

// NoopNotifier logs events instead of persisting them. Used when the
// service runs without an event store, and in tests.
type NoopNotifier struct {
	logger *zap.Logger
}

// NewNoopNotifier creates a NoopNotifier.
func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

// LogEvent records the event in the application log only.
func (n *NoopNotifier) LogEvent(_ context.Context, ev Event) error {
	n.logger.Info("wallet event (noop sink)",
		zap.String("wallet_id", ev.WalletID.String()),
		zap.String("type", string(ev.Type)),
	)
	return nil
}
