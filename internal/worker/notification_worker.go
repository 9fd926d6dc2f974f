package worker

import (
	"context"
	"time"

	"go-event-admission/internal/notifier"
	"go-event-admission/internal/queue"
	"go-event-admission/pkg/logger"

	"go.uber.org/zap"
)

type NotificationWorker interface {
	Start(ctx context.Context) error
}

// NotificationWorkerImpl drains the dispatch queue and attempts one delivery
// per message. Failures move to the durable retry store and the message is
// acked; the sweeper owns redelivery from then on, so the stream never
// double-sends.
type NotificationWorkerImpl struct {
	queue          queue.NotificationQueue
	sink           notifier.Sink
	store          notifier.RetryStore
	initialBackoff time.Duration
}

func NewNotificationWorker(q queue.NotificationQueue, sink notifier.Sink, store notifier.RetryStore, initialBackoff time.Duration) NotificationWorker {
	if initialBackoff <= 0 {
		initialBackoff = time.Minute
	}
	return &NotificationWorkerImpl{
		queue:          q,
		sink:           sink,
		store:          store,
		initialBackoff: initialBackoff,
	}
}

func (w *NotificationWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			sendErr := w.sink.Send(ctx, msg.Data)
			if sendErr == nil {
				msg.Ack()
				continue
			}

			logger.WithComponent("worker").Warn("notification delivery failed, queuing for retry",
				zap.String("kind", string(msg.Data.Kind)),
				zap.String("recipient", msg.Data.Recipient),
				zap.Error(sendErr),
			)

			nextAttemptAt := time.Now().UTC().Add(w.initialBackoff)
			if err := w.store.Record(ctx, msg.Data, sendErr, nextAttemptAt); err != nil {
				logger.WithComponent("worker").Error("record retry failed, leaving message for reclaim",
					zap.String("recipient", msg.Data.Recipient),
					zap.Error(err),
				)
				msg.Nack(true)
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}
