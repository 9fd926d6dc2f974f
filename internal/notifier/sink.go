package notifier

import (
	"context"

	"go-event-admission/internal/model"
	"go-event-admission/pkg/logger"

	"go.uber.org/zap"
)

// Sink is the outbound delivery boundary (email in production). Delivery is
// best effort; callers must never let a Send failure affect booking state.
type Sink interface {
	Send(ctx context.Context, n *model.Notification) error
}

// LogSink writes notifications to the log instead of delivering them. Used
// in development and as the default when no mail provider is configured.
type LogSink struct{}

func NewLogSink() Sink {
	return &LogSink{}
}

func (s *LogSink) Send(ctx context.Context, n *model.Notification) error {
	logger.WithComponent("notifier").Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("recipient", n.Recipient),
		zap.String("payload", n.Payload),
	)
	return nil
}
