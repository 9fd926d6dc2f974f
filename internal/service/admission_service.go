package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-event-admission/internal/cache"
	"go-event-admission/internal/model"
	"go-event-admission/internal/notifier"
	"go-event-admission/internal/repository"
	apperrors "go-event-admission/pkg/app_errors"
	"go-event-admission/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AdmissionService is the single owner of every mutating path through
// sessions, registrations and waitlist entries. Register and Cancel
// serialize on the session row; the snapshot reads never do.
type AdmissionService interface {
	Register(ctx context.Context, sessionID uuid.UUID, req model.RegisterRequest) (*model.RegistrationOutcome, error)
	Cancel(ctx context.Context, registrationID uuid.UUID) (*model.CancelResult, error)
	SeatStatus(ctx context.Context, sessionID uuid.UUID) (*model.SeatStatus, error)
	WaitlistSnapshot(ctx context.Context, sessionID uuid.UUID) ([]*model.WaitlistEntry, error)
}

type AdmissionServiceImpl struct {
	pool          *pgxpool.Pool
	sessions      repository.SessionRepository
	registrations repository.RegistrationRepository
	waitlist      repository.WaitlistRepository
	issuer        CredentialIssuer
	dispatcher    *notifier.Dispatcher
	seatCache     cache.SeatStatusCache
}

func NewAdmissionService(
	pool *pgxpool.Pool,
	sessions repository.SessionRepository,
	registrations repository.RegistrationRepository,
	waitlist repository.WaitlistRepository,
	issuer CredentialIssuer,
	dispatcher *notifier.Dispatcher,
	seatCache cache.SeatStatusCache,
) AdmissionService {
	return &AdmissionServiceImpl{
		pool:          pool,
		sessions:      sessions,
		registrations: registrations,
		waitlist:      waitlist,
		issuer:        issuer,
		dispatcher:    dispatcher,
		seatCache:     seatCache,
	}
}

// NormalizeEmail canonicalizes a registrant address before any lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register decides CONFIRMED vs WAITLISTED for one registrant. The decision
// recounts confirmed registrations under the session row lock; the cached
// booked_count is written in the same transaction but never read for the
// decision.
func (s *AdmissionServiceImpl) Register(ctx context.Context, sessionID uuid.UUID, req model.RegisterRequest) (*model.RegistrationOutcome, error) {
	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, apperrors.ErrInvalidInput
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, repository.MapStoreError(err)
	}
	defer tx.Rollback(ctx)

	session, err := s.sessions.FindBySessionIDWithLock(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !session.AcceptsRegistrations(now) {
		return nil, apperrors.ErrRegistrationClosed
	}

	_, err = s.registrations.FindActiveBySessionAndEmail(ctx, tx, session.ID, email)
	if err == nil {
		return nil, apperrors.ErrDuplicateRegistration
	}
	if !errors.Is(err, apperrors.ErrRegistrationNotFound) {
		return nil, err
	}

	conflict, err := s.registrations.HasScheduleConflict(ctx, tx, email, session.ID, session.StartsAt, session.EndsAt)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, apperrors.ErrScheduleConflict
	}

	confirmedCount, err := s.registrations.CountConfirmed(ctx, tx, session.ID)
	if err != nil {
		return nil, err
	}
	if confirmedCount > session.Capacity {
		return nil, fmt.Errorf("%w: %d confirmed for capacity %d",
			apperrors.ErrCapacityInvariant, confirmedCount, session.Capacity)
	}

	outcome := &model.RegistrationOutcome{}

	if confirmedCount < session.Capacity {
		registrationID := uuid.New()
		credential := s.issuer.Issue(registrationID, session.SessionID)

		_, err := s.registrations.Create(ctx, tx, &model.Registration{
			RegistrationID: registrationID,
			SessionID:      session.ID,
			Email:          email,
			Status:         model.RegistrationStatusConfirmed,
			Credential:     &credential,
		})
		if err != nil {
			return nil, err
		}

		if err := s.sessions.SetBookedCount(ctx, tx, session.ID, confirmedCount+1); err != nil {
			return nil, err
		}

		outcome.RegistrationID = registrationID
		outcome.Status = model.RegistrationStatusConfirmed
		outcome.Credential = &credential
	} else {
		created, err := s.registrations.Create(ctx, tx, &model.Registration{
			RegistrationID: uuid.New(),
			SessionID:      session.ID,
			Email:          email,
			Status:         model.RegistrationStatusWaitlisted,
		})
		if err != nil {
			return nil, err
		}

		entry, err := s.waitlist.Append(ctx, tx, session.ID, email)
		if err != nil {
			return nil, err
		}

		outcome.RegistrationID = created.RegistrationID
		outcome.Status = model.RegistrationStatusWaitlisted
		outcome.WaitlistPosition = &entry.Position
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, repository.MapStoreError(err)
	}

	s.notifyOutcome(session, email, outcome)
	s.refreshSeatCache(session.SessionID)

	return outcome, nil
}

// Cancel releases a confirmed seat and fills it from the waitlist while the
// waitlist is still open. The registration is only known by its own ID, so
// the session is resolved with an unlocked pre-read, then everything is
// re-read under the session row lock.
func (s *AdmissionServiceImpl) Cancel(ctx context.Context, registrationID uuid.UUID) (*model.CancelResult, error) {
	preRead, err := s.registrations.FindByRegistrationID(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, repository.MapStoreError(err)
	}
	defer tx.Rollback(ctx)

	session, err := s.sessions.FindByIDWithLock(ctx, tx, preRead.SessionID)
	if err != nil {
		return nil, err
	}

	reg, err := s.registrations.FindByRegistrationIDWithLock(ctx, tx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Status != model.RegistrationStatusConfirmed {
		return nil, apperrors.ErrInvalidState
	}

	if _, err := s.registrations.UpdateStatus(ctx, tx, reg.ID, model.RegistrationStatusCancelled, nil); err != nil {
		return nil, err
	}

	confirmedCount, err := s.registrations.CountConfirmed(ctx, tx, session.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetBookedCount(ctx, tx, session.ID, confirmedCount); err != nil {
		return nil, err
	}

	var promoted *model.PromotedRef
	var freshPromotion bool
	if session.WaitlistOpen(time.Now().UTC()) {
		promoted, freshPromotion, err = s.promoteLocked(ctx, tx, session)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, repository.MapStoreError(err)
	}

	s.notifyCancellation(session, reg.Email, promoted, freshPromotion)
	s.refreshSeatCache(session.SessionID)

	return &model.CancelResult{
		RegistrationID: registrationID,
		Promoted:       promoted,
	}, nil
}

// promoteLocked moves the head of the waitlist into the freed seat. Runs on
// the cancellation's transaction with the session row already locked, so no
// concurrent registration can take the seat first. At most one entry is
// promoted per call. The second return value is false when the registrant
// was already confirmed and only the stale entry was cleaned up; callers use
// it to avoid re-sending the promotion notification.
func (s *AdmissionServiceImpl) promoteLocked(ctx context.Context, tx pgx.Tx, session *model.Session) (*model.PromotedRef, bool, error) {
	confirmedCount, err := s.registrations.CountConfirmed(ctx, tx, session.ID)
	if err != nil {
		return nil, false, err
	}
	if confirmedCount >= session.Capacity {
		// capacity may have been reduced since the seat freed; not an error
		return nil, false, nil
	}

	entry, err := s.waitlist.FirstWithLock(ctx, tx, session.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrWaitlistEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	// idempotency guard: a retried promotion may find the registrant already
	// confirmed; then only the stale waitlist entry needs cleaning up
	existing, err := s.registrations.FindBySessionEmailStatus(ctx, tx, session.ID, entry.Email, model.RegistrationStatusConfirmed)
	if err == nil {
		if err := s.waitlist.RemoveAndCompact(ctx, tx, entry); err != nil {
			return nil, false, err
		}
		return &model.PromotedRef{
			RegistrationID: existing.RegistrationID,
			Email:          existing.Email,
		}, false, nil
	}
	if !errors.Is(err, apperrors.ErrRegistrationNotFound) {
		return nil, false, err
	}

	waitlisted, err := s.registrations.FindBySessionEmailStatus(ctx, tx, session.ID, entry.Email, model.RegistrationStatusWaitlisted)
	if err != nil {
		if errors.Is(err, apperrors.ErrRegistrationNotFound) {
			// orphaned entry with no registration row; drop it, promote nobody
			logger.WithComponent("service").Warn("orphaned waitlist entry removed",
				zap.Int("session_id", session.ID),
				zap.String("email", entry.Email),
			)
			if err := s.waitlist.RemoveAndCompact(ctx, tx, entry); err != nil {
				return nil, false, err
			}
			return nil, false, nil
		}
		return nil, false, err
	}

	credential := s.issuer.Issue(waitlisted.RegistrationID, session.SessionID)
	if _, err := s.registrations.UpdateStatus(ctx, tx, waitlisted.ID, model.RegistrationStatusConfirmed, &credential); err != nil {
		return nil, false, err
	}

	newCount := confirmedCount + 1
	if newCount > session.Capacity {
		return nil, false, fmt.Errorf("%w: %d confirmed for capacity %d",
			apperrors.ErrCapacityInvariant, newCount, session.Capacity)
	}
	if err := s.sessions.SetBookedCount(ctx, tx, session.ID, newCount); err != nil {
		return nil, false, err
	}

	if err := s.waitlist.RemoveAndCompact(ctx, tx, entry); err != nil {
		return nil, false, err
	}

	return &model.PromotedRef{
		RegistrationID: waitlisted.RegistrationID,
		Email:          waitlisted.Email,
	}, true, nil
}

// SeatStatus is a lock-free snapshot: cache first, database fallback.
func (s *AdmissionServiceImpl) SeatStatus(ctx context.Context, sessionID uuid.UUID) (*model.SeatStatus, error) {
	if status, err := s.seatCache.Get(ctx, sessionID); err == nil {
		return status, nil
	}

	status, err := s.loadSeatStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.seatCache.Refresh(ctx, status); err != nil {
		logger.WithComponent("service").Warn("seat status cache refresh failed",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	}

	return status, nil
}

// WaitlistSnapshot is a lock-free, arrival-ordered read of the queue.
func (s *AdmissionServiceImpl) WaitlistSnapshot(ctx context.Context, sessionID uuid.UUID) ([]*model.WaitlistEntry, error) {
	session, err := s.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.waitlist.ListBySession(ctx, session.ID)
}

func (s *AdmissionServiceImpl) loadSeatStatus(ctx context.Context, sessionID uuid.UUID) (*model.SeatStatus, error) {
	session, err := s.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	waitlistLength, err := s.waitlist.CountBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	return &model.SeatStatus{
		SessionID:      session.SessionID,
		Capacity:       session.Capacity,
		BookedCount:    session.BookedCount,
		WaitlistLength: waitlistLength,
	}, nil
}

func (s *AdmissionServiceImpl) notifyOutcome(session *model.Session, email string, outcome *model.RegistrationOutcome) {
	kind := model.NotificationConfirmation
	if outcome.Status == model.RegistrationStatusWaitlisted {
		kind = model.NotificationWaitlisted
	}
	s.dispatch(kind, email, map[string]interface{}{
		"session_id":      session.SessionID,
		"session_name":    session.Name,
		"registration_id": outcome.RegistrationID,
		"status":          outcome.Status,
	})
}

func (s *AdmissionServiceImpl) notifyCancellation(session *model.Session, email string, promoted *model.PromotedRef, freshPromotion bool) {
	s.dispatch(model.NotificationCancellation, email, map[string]interface{}{
		"session_id":   session.SessionID,
		"session_name": session.Name,
	})

	if promoted != nil && freshPromotion {
		s.dispatch(model.NotificationPromotion, promoted.Email, map[string]interface{}{
			"session_id":      session.SessionID,
			"session_name":    session.Name,
			"registration_id": promoted.RegistrationID,
		})
	}
}

// dispatch runs after commit with context.Background() so a cancelled request
// context cannot drop a notification for an already-committed decision.
func (s *AdmissionServiceImpl) dispatch(kind model.NotificationKind, recipient string, payload map[string]interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.WithComponent("service").Error("marshal notification payload failed", zap.Error(err))
		return
	}
	s.dispatcher.Dispatch(context.Background(), &model.Notification{
		Kind:      kind,
		Recipient: recipient,
		Payload:   string(body),
	})
}

// refreshSeatCache updates the display cache after a committed mutation.
// Best effort; the database remains the source of truth.
func (s *AdmissionServiceImpl) refreshSeatCache(sessionID uuid.UUID) {
	ctx := context.Background()
	status, err := s.loadSeatStatus(ctx, sessionID)
	if err != nil {
		logger.WithComponent("service").Warn("seat status reload failed",
			zap.String("session_id", sessionID.String()), zap.Error(err))
		// drop the stale entry so readers fall back to the database
		if err := s.seatCache.Invalidate(ctx, sessionID); err != nil {
			logger.WithComponent("service").Warn("seat status cache invalidate failed",
				zap.String("session_id", sessionID.String()), zap.Error(err))
		}
		return
	}
	if err := s.seatCache.Refresh(ctx, status); err != nil {
		logger.WithComponent("service").Warn("seat status cache refresh failed",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	}
}
