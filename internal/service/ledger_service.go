package service

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService owns earnings balances and withdrawals against them
type LedgerService struct {
	repo      store.Repository
	publisher EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(repo store.Repository, publisher EventPublisher) *LedgerService {
	if publisher == nil {
		publisher = NopPublisher
	}
	return &LedgerService{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// GetUserBalance is the sum of the user's pending entries
func (s *LedgerService) GetUserBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetUserBalance")
	defer span.End()

	balance, err := s.repo.LedgerBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Available, nil
}

// GetBalanceBreakdown sums the user's entries per status
func (s *LedgerService) GetBalanceBreakdown(ctx context.Context, userID uuid.UUID) (*models.LedgerBalance, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetBalanceBreakdown")
	defer span.End()

	return s.repo.LedgerBalance(ctx, userID)
}

// GetUserLedger lists the user's entries, newest first
func (s *LedgerService) GetUserLedger(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetUserLedger")
	defer span.End()

	return s.repo.ListLedgerEntriesByUser(ctx, userID)
}

// RequestWithdrawal locks pending entries, oldest first, until they cover amount, and records
// a processing withdrawal over them. It may lock more than amount, never less.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method models.WithdrawalMethod) (*models.Withdrawal, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.RequestWithdrawal")
	defer span.End()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("withdrawal amount must be positive: %w", models.ErrInvalidInput)
	}
	if !method.Valid() {
		return nil, fmt.Errorf("unknown withdrawal method %q: %w", method, models.ErrInvalidInput)
	}

	var withdrawal *models.Withdrawal
	err := s.repo.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		pending, err := q.ListPendingLedgerEntriesForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		ids, covered := firstFit(pending, amount)
		if covered.LessThan(amount) {
			return fmt.Errorf("available %s, requested %s: %w",
				covered.StringFixed(2), amount.StringFixed(2), models.ErrInsufficientBalance)
		}

		n, err := q.TransitionLedgerEntries(ctx, ids, models.LedgerStatusPending, models.LedgerStatusLocked)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return fmt.Errorf("locked %d of %d ledger entries: %w", n, len(ids), models.ErrConflict)
		}

		withdrawal = &models.Withdrawal{
			UserID:    userID,
			Amount:    amount,
			LedgerIDs: ids,
			Method:    method,
			Status:    models.WithdrawalStatusProcessing,
		}
		return q.CreateWithdrawal(ctx, withdrawal)
	})
	if err != nil {
		return nil, err
	}

	util.WithdrawalsTotal.WithLabelValues(string(models.WithdrawalStatusProcessing)).Inc()
	s.logger.Info("Withdrawal requested",
		zap.String("withdrawal_id", withdrawal.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.Int("ledger_entries", len(withdrawal.LedgerIDs)))

	s.publishWithdrawal(ctx, withdrawal)
	return withdrawal, nil
}

// firstFit takes entries in order until their sum reaches amount.
// When the entries cannot cover amount it returns all of them and their total.
func firstFit(entries []models.LedgerEntry, amount decimal.Decimal) ([]uuid.UUID, decimal.Decimal) {
	ids := make([]uuid.UUID, 0, len(entries))
	sum := decimal.Zero
	for _, e := range entries {
		if sum.GreaterThanOrEqual(amount) {
			break
		}
		ids = append(ids, e.ID)
		sum = sum.Add(e.Amount)
	}
	return ids, sum
}

// CompleteWithdrawal settles a processing withdrawal. On success its entries become withdrawn.
// On failure they are reversed and each is reissued as a fresh pending entry, so the funds
// return to the available balance while the reversal stays on record.
func (s *LedgerService) CompleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID, success bool, referenceID *string) (*models.Withdrawal, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.CompleteWithdrawal")
	defer span.End()

	var withdrawal *models.Withdrawal
	err := s.repo.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		w, err := q.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.Status != models.WithdrawalStatusProcessing {
			return fmt.Errorf("withdrawal %s is already %s: %w", withdrawalID, w.Status, models.ErrInvalidState)
		}

		target, final := models.LedgerStatusWithdrawn, models.WithdrawalStatusSuccessful
		if !success {
			target, final = models.LedgerStatusReversed, models.WithdrawalStatusRejected
		}

		n, err := q.TransitionLedgerEntries(ctx, w.LedgerIDs, models.LedgerStatusLocked, target)
		if err != nil {
			return err
		}
		if n != int64(len(w.LedgerIDs)) {
			return fmt.Errorf("settled %d of %d ledger entries: %w", n, len(w.LedgerIDs), models.ErrConflict)
		}

		if !success {
			if err := reissue(ctx, q, w); err != nil {
				return err
			}
		}

		ok, err := q.UpdateWithdrawalStatus(ctx, w.ID, models.WithdrawalStatusProcessing, final, referenceID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("withdrawal %s changed concurrently: %w", withdrawalID, models.ErrConflict)
		}

		withdrawal, err = q.GetWithdrawal(ctx, w.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	util.WithdrawalsTotal.WithLabelValues(string(withdrawal.Status)).Inc()
	s.logger.Info("Withdrawal settled",
		zap.String("withdrawal_id", withdrawal.ID.String()),
		zap.String("status", string(withdrawal.Status)))

	s.publishWithdrawal(ctx, withdrawal)
	return withdrawal, nil
}

// reissue credits a pending copy of every entry the rejected withdrawal reversed
func reissue(ctx context.Context, q store.Querier, w *models.Withdrawal) error {
	reversed, err := q.GetLedgerEntriesByIDs(ctx, w.LedgerIDs)
	if err != nil {
		return err
	}

	for _, e := range reversed {
		entry := &models.LedgerEntry{
			UserID:     e.UserID,
			Amount:     e.Amount,
			SourceType: e.SourceType,
			SourceID:   e.SourceID,
			Reason:     reissueReason(e.SourceType, e.SourceID),
			Status:     models.LedgerStatusPending,
		}
		if err := q.CreateLedgerEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to reissue ledger entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// reissueReason names the original credit, never the entry it replaces
func reissueReason(source models.LedgerSource, sourceID uuid.UUID) string {
	return fmt.Sprintf("Reissued %s credit %s", source, sourceID)
}

// GetMyWithdrawals lists the user's withdrawals, newest first
func (s *LedgerService) GetMyWithdrawals(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetMyWithdrawals")
	defer span.End()

	return s.repo.ListWithdrawalsByUser(ctx, userID)
}

// GetWithdrawal returns a withdrawal to its owner or an admin
func (s *LedgerService) GetWithdrawal(ctx context.Context, withdrawalID uuid.UUID, principal models.Principal) (*models.Withdrawal, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetWithdrawal")
	defer span.End()

	w, err := s.repo.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.UserID != principal.UserID && !principal.IsAdmin() {
		return nil, fmt.Errorf("withdrawal %s belongs to another user: %w", withdrawalID, models.ErrForbidden)
	}
	return w, nil
}

func (s *LedgerService) publishWithdrawal(ctx context.Context, w *models.Withdrawal) {
	event := &models.WithdrawalEvent{
		BaseEvent:    models.NewBaseEvent(models.EventTypeWithdrawalUpdated, s.now()),
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Amount:       w.Amount,
		Status:       w.Status,
		ReferenceID:  w.ReferenceID,
	}
	if err := s.publisher.PublishWithdrawalUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish WithdrawalUpdated event", zap.Error(err))
	}
}
