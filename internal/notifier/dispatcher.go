package notifier

import (
	"context"
	"time"

	"go-event-admission/internal/model"
	"go-event-admission/internal/queue"
	"go-event-admission/pkg/logger"

	"go.uber.org/zap"
)

// Dispatcher hands committed booking outcomes to the notification queue.
// A publish failure degrades to a durable retry record; it never propagates
// to the caller.
type Dispatcher struct {
	queue          queue.NotificationQueue
	store          RetryStore
	initialBackoff time.Duration
}

func NewDispatcher(q queue.NotificationQueue, store RetryStore, initialBackoff time.Duration) *Dispatcher {
	if initialBackoff <= 0 {
		initialBackoff = time.Minute
	}
	return &Dispatcher{
		queue:          q,
		store:          store,
		initialBackoff: initialBackoff,
	}
}

// Dispatch is best effort by contract. Callers pass context.Background() so
// a departed client cannot drop a committed outcome's notification.
func (d *Dispatcher) Dispatch(ctx context.Context, n *model.Notification) {
	log := logger.WithComponent("notifier")

	if err := d.queue.Publish(ctx, n); err != nil {
		log.Warn("publish notification failed, recording for retry",
			zap.String("kind", string(n.Kind)),
			zap.String("recipient", n.Recipient),
			zap.Error(err),
		)
		nextAttemptAt := time.Now().UTC().Add(d.initialBackoff)
		if err := d.store.Record(ctx, n, err, nextAttemptAt); err != nil {
			log.Error("record notification retry failed",
				zap.String("kind", string(n.Kind)),
				zap.String("recipient", n.Recipient),
				zap.Error(err),
			)
		}
	}
}
