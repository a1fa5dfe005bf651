package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReferralConfig holds the referral reward policy
type ReferralConfig struct {
	RewardAmount   decimal.Decimal
	MinPurchase    decimal.Decimal
	HoldPeriod     time.Duration
	SweepBatchSize int
}

// ReferralService drives referrals through pending → qualified → holding → completed,
// with cancellation allowed from any non-terminal state.
type ReferralService struct {
	repo      store.Repository
	publisher EventPublisher
	cfg       ReferralConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewReferralService creates a new referral service
func NewReferralService(repo store.Repository, publisher EventPublisher, cfg ReferralConfig) *ReferralService {
	if cfg.HoldPeriod <= 0 {
		cfg.HoldPeriod = 7 * 24 * time.Hour
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 500
	}
	if publisher == nil {
		publisher = NopPublisher
	}
	return &ReferralService{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// CreateReferral registers inviteeID as referred by inviterID. A second call for the same invitee
// returns the existing referral unchanged.
func (s *ReferralService) CreateReferral(ctx context.Context, inviterID, inviteeID uuid.UUID, code *string) (*models.Referral, error) {
	ctx, span := util.StartSpan(ctx, "ReferralService.CreateReferral")
	defer span.End()

	if inviterID == inviteeID {
		return nil, fmt.Errorf("user cannot refer themselves: %w", models.ErrInvalidInput)
	}

	existing, err := s.repo.GetReferralByInvitee(ctx, inviteeID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	referral := &models.Referral{
		InviterID:           inviterID,
		InviteeID:           inviteeID,
		ReferralCodeUsed:    code,
		RewardAmount:        s.cfg.RewardAmount,
		MinPurchaseRequired: s.cfg.MinPurchase,
		Status:              models.ReferralStatusPending,
	}
	if err := s.repo.CreateReferral(ctx, referral); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return s.repo.GetReferralByInvitee(ctx, inviteeID)
		}
		return nil, fmt.Errorf("failed to create referral: %w", err)
	}

	util.ReferralTransitionsTotal.WithLabelValues(string(models.ReferralStatusPending)).Inc()
	s.logger.Info("Referral created",
		zap.String("referral_id", referral.ID.String()),
		zap.String("inviter_id", inviterID.String()),
		zap.String("invitee_id", inviteeID.String()))
	return referral, nil
}

// QualifyReferral moves the invitee's pending referral to qualified when orderAmount meets
// the minimum purchase. Referrals past pending are returned as they are, and an order that
// was cancelled or returned in the meantime leaves the referral pending.
func (s *ReferralService) QualifyReferral(ctx context.Context, inviteeID, orderID uuid.UUID, orderAmount decimal.Decimal) (*models.Referral, error) {
	ctx, span := util.StartSpan(ctx, "ReferralService.QualifyReferral")
	defer span.End()

	referral, err := s.repo.GetReferralByInvitee(ctx, inviteeID)
	if err != nil {
		return nil, err
	}
	if referral.Status != models.ReferralStatusPending {
		return referral, nil
	}
	if orderAmount.LessThan(referral.MinPurchaseRequired) {
		return referral, fmt.Errorf("order amount %s below referral minimum %s: %w",
			orderAmount.StringFixed(2), referral.MinPurchaseRequired.StringFixed(2), models.ErrInvalidState)
	}

	ok, err := s.repo.QualifyReferral(ctx, referral.ID, orderID, orderAmount, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to qualify referral: %w", err)
	}
	if ok {
		util.ReferralTransitionsTotal.WithLabelValues(string(models.ReferralStatusQualified)).Inc()
		s.logger.Info("Referral qualified",
			zap.String("referral_id", referral.ID.String()),
			zap.String("order_id", orderID.String()))
	} else {
		s.logger.Debug("Referral not qualified",
			zap.String("referral_id", referral.ID.String()),
			zap.String("order_id", orderID.String()))
	}
	return s.repo.GetReferralByInvitee(ctx, inviteeID)
}

// HoldReferral starts the hold period once the qualifying order is delivered.
// It does nothing unless the referral is qualified by exactly this order.
func (s *ReferralService) HoldReferral(ctx context.Context, inviteeID, orderID uuid.UUID, deliveredAt time.Time) (*models.Referral, error) {
	ctx, span := util.StartSpan(ctx, "ReferralService.HoldReferral")
	defer span.End()

	referral, err := s.repo.GetReferralByInvitee(ctx, inviteeID)
	if err != nil {
		return nil, err
	}
	if referral.Status != models.ReferralStatusQualified {
		return referral, nil
	}
	if referral.QualifyingOrderID.Valid && referral.QualifyingOrderID.UUID != orderID {
		return referral, nil
	}

	holdUntil := deliveredAt.Add(s.cfg.HoldPeriod)
	ok, err := s.repo.HoldReferral(ctx, referral.ID, deliveredAt, holdUntil)
	if err != nil {
		return nil, fmt.Errorf("failed to hold referral: %w", err)
	}
	if ok {
		util.ReferralTransitionsTotal.WithLabelValues(string(models.ReferralStatusHolding)).Inc()
		s.logger.Info("Referral holding",
			zap.String("referral_id", referral.ID.String()),
			zap.Time("hold_until", holdUntil))
	}
	return s.repo.GetReferralByInvitee(ctx, inviteeID)
}

// CancelReferral cancels the invitee's referral unless it already completed or was cancelled
func (s *ReferralService) CancelReferral(ctx context.Context, inviteeID uuid.UUID, reason string) (*models.Referral, error) {
	ctx, span := util.StartSpan(ctx, "ReferralService.CancelReferral")
	defer span.End()

	referral, err := s.repo.GetReferralByInvitee(ctx, inviteeID)
	if err != nil {
		return nil, err
	}
	if referral.Status.Terminal() {
		return referral, nil
	}

	ok, err := s.repo.CancelReferral(ctx, referral.ID, reason, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to cancel referral: %w", err)
	}
	if ok {
		util.ReferralTransitionsTotal.WithLabelValues(string(models.ReferralStatusCancelled)).Inc()
		s.logger.Info("Referral cancelled",
			zap.String("referral_id", referral.ID.String()),
			zap.String("reason", reason))
	}
	return s.repo.GetReferralByInvitee(ctx, inviteeID)
}

// CancelReferralForOrder cancels the invitee's referral if orderID is the order that qualified it
func (s *ReferralService) CancelReferralForOrder(ctx context.Context, inviteeID, orderID uuid.UUID, reason string) error {
	referral, err := s.repo.GetReferralByInvitee(ctx, inviteeID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !referral.QualifyingOrderID.Valid || referral.QualifyingOrderID.UUID != orderID {
		return nil
	}

	_, err = s.CancelReferral(ctx, inviteeID, reason)
	return err
}

// ProcessHoldExpired completes every holding referral whose hold has elapsed, crediting the inviter.
// Each referral runs in its own transaction: the ledger credit and the completion commit together,
// and completion only applies to a referral still holding, so re-running never credits twice.
func (s *ReferralService) ProcessHoldExpired(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "ReferralService.ProcessHoldExpired")
	defer span.End()

	now := s.now()
	expired, err := s.repo.ListHoldExpiredReferrals(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list hold-expired referrals: %w", err)
	}

	var (
		processed int
		errs      []error
	)
	for i := range expired {
		referral := expired[i]
		entry, err := s.completeReferral(ctx, &referral, now)
		if err != nil {
			s.logger.Error("Failed to complete referral",
				zap.String("referral_id", referral.ID.String()),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if entry == nil {
			continue
		}
		processed++

		event := &models.ReferralCompletedEvent{
			BaseEvent:     models.NewBaseEvent(models.EventTypeReferralCompleted, now),
			ReferralID:    referral.ID,
			InviterID:     referral.InviterID,
			InviteeID:     referral.InviteeID,
			LedgerEntryID: entry.ID,
			Amount:        entry.Amount,
		}
		if err := s.publisher.PublishReferralCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish ReferralCompleted event", zap.Error(err))
		}
	}

	s.logger.Info("Processed hold-expired referrals",
		zap.Int("found", len(expired)),
		zap.Int("completed", processed))
	return processed, errors.Join(errs...)
}

// completeReferral credits the inviter and completes the referral in one transaction.
// A nil entry means another run completed it first.
func (s *ReferralService) completeReferral(ctx context.Context, referral *models.Referral, now time.Time) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	errAlreadyDone := errors.New("referral already completed")

	err := s.repo.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		entry = &models.LedgerEntry{
			UserID:     referral.InviterID,
			Amount:     referral.RewardAmount,
			SourceType: models.LedgerSourceReferral,
			SourceID:   referral.ID,
			Reason:     fmt.Sprintf("Referral reward from invitee %s", referral.InviteeID),
			Status:     models.LedgerStatusPending,
		}
		if err := q.CreateLedgerEntry(ctx, entry); err != nil {
			if errors.Is(err, models.ErrConflict) {
				return errAlreadyDone
			}
			return err
		}

		ok, err := q.CompleteReferral(ctx, referral.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyDone
		}
		return nil
	})
	if errors.Is(err, errAlreadyDone) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	util.ReferralTransitionsTotal.WithLabelValues(string(models.ReferralStatusCompleted)).Inc()
	util.LedgerCreditsTotal.WithLabelValues(string(models.LedgerSourceReferral)).Inc()
	return entry, nil
}

// GetMyReferrals lists the referrals an inviter brought in
func (s *ReferralService) GetMyReferrals(ctx context.Context, inviterID uuid.UUID) ([]models.Referral, error) {
	ctx, span := util.StartSpan(ctx, "ReferralService.GetMyReferrals")
	defer span.End()

	return s.repo.ListReferralsByInviter(ctx, inviterID)
}

// GetReferralEarnings sums the rewards of the inviter's completed referrals
func (s *ReferralService) GetReferralEarnings(ctx context.Context, inviterID uuid.UUID) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "ReferralService.GetReferralEarnings")
	defer span.End()

	referrals, err := s.repo.ListReferralsByInviter(ctx, inviterID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, r := range referrals {
		if r.Status == models.ReferralStatusCompleted {
			total = total.Add(r.RewardAmount)
		}
	}
	return total, nil
}
