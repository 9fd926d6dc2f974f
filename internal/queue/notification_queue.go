package queue

import (
	"context"

	"go-event-admission/internal/model"
)

type Delivery struct {
	Data *model.Notification
	Ack  func()
	Nack func(requeue bool)
}

// NotificationQueue decouples committed booking decisions from outbound
// delivery. Publishing happens after commit; subscribers do the sending.
type NotificationQueue interface {
	Publish(ctx context.Context, n *model.Notification) error
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

// MemoryNotificationQueue is a channel-backed queue for single-process
// deployments and tests.
type MemoryNotificationQueue struct {
	ch chan *model.Notification
}

func NewMemoryNotificationQueue(bufferSize int) NotificationQueue {
	return &MemoryNotificationQueue{
		ch: make(chan *model.Notification, bufferSize),
	}
}

func (q *MemoryNotificationQueue) Publish(ctx context.Context, n *model.Notification) error {
	select {
	case q.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryNotificationQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-q.ch:
				if !ok {
					return
				}

				d := Delivery{
					Data: n,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if !requeue {
							return
						}
						select {
						case q.ch <- n:
						case <-ctx.Done():
						}
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
