package notifier

import (
	"context"
	"time"

	"go-event-admission/internal/model"
	"go-event-admission/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const claimBatchSize = 50

// SweeperConfig holds injectable intervals and limits; zero values fall back
// to defaults.
type SweeperConfig struct {
	SweepInterval  time.Duration
	InitialBackoff time.Duration
	MaxAttempts    int
}

func defaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		SweepInterval:  30 * time.Second,
		InitialBackoff: time.Minute,
		MaxAttempts:    5,
	}
}

// RetrySweeper periodically redelivers failed notifications with exponential
// backoff, marking entries permanently failed past the attempt limit.
type RetrySweeper struct {
	pool  *pgxpool.Pool
	store RetryStore
	sink  Sink
	cfg   SweeperConfig
}

func NewRetrySweeper(pool *pgxpool.Pool, store RetryStore, sink Sink, config *SweeperConfig) *RetrySweeper {
	cfg := defaultSweeperConfig()
	if config != nil {
		if config.SweepInterval > 0 {
			cfg.SweepInterval = config.SweepInterval
		}
		if config.InitialBackoff > 0 {
			cfg.InitialBackoff = config.InitialBackoff
		}
		if config.MaxAttempts > 0 {
			cfg.MaxAttempts = config.MaxAttempts
		}
	}
	return &RetrySweeper{
		pool:  pool,
		store: store,
		sink:  sink,
		cfg:   cfg,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *RetrySweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// SweepOnce retries every due entry a single time. The claim and the
// per-entry resolution share one transaction, so the claimed rows stay locked
// until commit and a second sweeper skips them instead of double-sending.
func (s *RetrySweeper) SweepOnce(ctx context.Context) {
	log := logger.WithComponent("notifier")

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Error("begin sweep transaction failed", zap.Error(err))
		return
	}
	defer tx.Rollback(ctx)

	entries, err := s.store.ClaimDue(ctx, tx, time.Now().UTC(), claimBatchSize)
	if err != nil {
		log.Error("claim due retries failed", zap.Error(err))
		return
	}

	for _, entry := range entries {
		n := &model.Notification{
			Kind:      entry.Kind,
			Recipient: entry.Recipient,
			Payload:   entry.Payload,
		}

		sendErr := s.sink.Send(ctx, n)
		if sendErr == nil {
			if err := s.store.Delete(ctx, tx, entry.ID); err != nil {
				log.Error("delete retried notification failed", zap.Int("id", entry.ID), zap.Error(err))
			}
			continue
		}

		attempts := entry.Attempts + 1
		failed := attempts >= s.cfg.MaxAttempts
		nextAttemptAt := time.Now().UTC().Add(s.Backoff(attempts))

		if failed {
			log.Warn("notification permanently failed",
				zap.Int("id", entry.ID),
				zap.Int("attempts", attempts),
				zap.String("recipient", entry.Recipient),
				zap.Error(sendErr),
			)
		}

		if err := s.store.MarkRetried(ctx, tx, entry.ID, sendErr, nextAttemptAt, failed); err != nil {
			log.Error("mark retried failed", zap.Int("id", entry.ID), zap.Error(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error("commit sweep transaction failed", zap.Error(err))
	}
}

// Backoff returns the delay before the given attempt number: the initial
// interval doubled per completed attempt.
func (s *RetrySweeper) Backoff(attempts int) time.Duration {
	backoff := s.cfg.InitialBackoff
	for i := 1; i < attempts; i++ {
		backoff *= 2
	}
	return backoff
}
