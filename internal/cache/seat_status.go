package cache

import (
	"context"
	"fmt"
	"strconv"

	"go-event-admission/internal/model"
	apperrors "go-event-admission/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SeatStatusCache is the fast read path for seat availability. It is
// refreshed best-effort after each committed admission decision and is never
// consulted for admission itself.
type SeatStatusCache interface {
	Refresh(ctx context.Context, status *model.SeatStatus) error
	Get(ctx context.Context, sessionID uuid.UUID) (*model.SeatStatus, error)
	Invalidate(ctx context.Context, sessionID uuid.UUID) error
}

type RedisSeatStatusCacheImpl struct {
	client *redis.Client
}

func NewRedisSeatStatusCache(client *redis.Client) SeatStatusCache {
	return &RedisSeatStatusCacheImpl{
		client: client,
	}
}

func (c *RedisSeatStatusCacheImpl) getStatusKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:seats", sessionID)
}

func (c *RedisSeatStatusCacheImpl) Refresh(ctx context.Context, status *model.SeatStatus) error {
	key := c.getStatusKey(status.SessionID)
	return c.client.HSet(ctx, key, map[string]interface{}{
		"capacity": status.Capacity,
		"booked":   status.BookedCount,
		"waitlist": status.WaitlistLength,
	}).Err()
}

func (c *RedisSeatStatusCacheImpl) Get(ctx context.Context, sessionID uuid.UUID) (*model.SeatStatus, error) {
	key := c.getStatusKey(sessionID)
	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, apperrors.ErrSessionNotFound
	}

	capacity, err := strconv.Atoi(result["capacity"])
	if err != nil {
		return nil, fmt.Errorf("invalid capacity: %v", err)
	}

	booked, err := strconv.Atoi(result["booked"])
	if err != nil {
		return nil, fmt.Errorf("invalid booked count: %v", err)
	}

	waitlist, err := strconv.Atoi(result["waitlist"])
	if err != nil {
		return nil, fmt.Errorf("invalid waitlist length: %v", err)
	}

	return &model.SeatStatus{
		SessionID:      sessionID,
		Capacity:       capacity,
		BookedCount:    booked,
		WaitlistLength: waitlist,
	}, nil
}

func (c *RedisSeatStatusCacheImpl) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	return c.client.Del(ctx, c.getStatusKey(sessionID)).Err()
}
