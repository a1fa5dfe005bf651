package memstore

import (
	"context"
	"sort"
	"time"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// referrals

func (q *queries) CreateReferral(ctx context.Context, referral *models.Referral) error {
	defer q.lock()()
	st := q.st()

	for _, r := range st.referrals {
		if r.InviteeID == referral.InviteeID {
			return conflict("create referral for %s", referral.InviteeID)
		}
	}
	if referral.ID == uuid.Nil {
		referral.ID = uuid.New()
	}
	if referral.Status == "" {
		referral.Status = models.ReferralStatusPending
	}

	now := q.s.now()
	referral.CreatedAt, referral.UpdatedAt = now, now
	st.referrals[referral.ID] = *referral
	st.referralSeq[referral.ID] = st.next()
	return nil
}

func (q *queries) GetReferralByInvitee(ctx context.Context, inviteeID uuid.UUID) (*models.Referral, error) {
	defer q.lock()()

	for _, r := range q.st().referrals {
		if r.InviteeID == inviteeID {
			return &r, nil
		}
	}
	return nil, notFound("referral of invitee %s", inviteeID)
}

func (q *queries) ListReferralsByInviter(ctx context.Context, inviterID uuid.UUID) ([]models.Referral, error) {
	defer q.lock()()
	st := q.st()

	var ids []uuid.UUID
	for id, r := range st.referrals {
		if r.InviterID == inviterID {
			ids = append(ids, id)
		}
	}
	byNewest(ids, st.referralSeq)

	referrals := make([]models.Referral, 0, len(ids))
	for _, id := range ids {
		referrals = append(referrals, st.referrals[id])
	}
	return referrals, nil
}

func (q *queries) ListHoldExpiredReferrals(ctx context.Context, now time.Time, limit int) ([]models.Referral, error) {
	defer q.lock()()

	referrals := []models.Referral{}
	for _, r := range q.st().referrals {
		if r.Status == models.ReferralStatusHolding && r.HoldUntil != nil && !r.HoldUntil.After(now) {
			referrals = append(referrals, r)
		}
	}
	sort.Slice(referrals, func(i, j int) bool { return referrals[i].HoldUntil.Before(*referrals[j].HoldUntil) })
	if limit > 0 && len(referrals) > limit {
		referrals = referrals[:limit]
	}
	return referrals, nil
}

// transitionReferral applies mutate when the referral is in one of the allowed statuses
func (q *queries) transitionReferral(id uuid.UUID, allowed []models.ReferralStatus, mutate func(r *models.Referral) bool) bool {
	st := q.st()

	r, ok := st.referrals[id]
	if !ok {
		return false
	}
	match := false
	for _, s := range allowed {
		if r.Status == s {
			match = true
			break
		}
	}
	if !match || !mutate(&r) {
		return false
	}
	st.referrals[id] = r
	return true
}

func (q *queries) QualifyReferral(ctx context.Context, id, orderID uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	defer q.lock()()

	order, exists := q.st().orders[orderID]
	if !exists || order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusReturned {
		return false, nil
	}

	ok := q.transitionReferral(id, []models.ReferralStatus{models.ReferralStatusPending}, func(r *models.Referral) bool {
		r.Status = models.ReferralStatusQualified
		r.QualifyingOrderID = uuid.NullUUID{UUID: orderID, Valid: true}
		r.QualifyingOrderAmount = decimal.NewNullDecimal(amount)
		r.QualifiedAt = &at
		r.UpdatedAt = at
		return true
	})
	return ok, nil
}

func (q *queries) HoldReferral(ctx context.Context, id uuid.UUID, deliveredAt, holdUntil time.Time) (bool, error) {
	defer q.lock()()

	ok := q.transitionReferral(id, []models.ReferralStatus{models.ReferralStatusQualified}, func(r *models.Referral) bool {
		r.Status = models.ReferralStatusHolding
		r.DeliveredAt = &deliveredAt
		r.HoldUntil = &holdUntil
		r.UpdatedAt = deliveredAt
		return true
	})
	return ok, nil
}

func (q *queries) CompleteReferral(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	defer q.lock()()

	ok := q.transitionReferral(id, []models.ReferralStatus{models.ReferralStatusHolding}, func(r *models.Referral) bool {
		if r.HoldUntil == nil || r.HoldUntil.After(now) {
			return false
		}
		r.Status = models.ReferralStatusCompleted
		r.UpdatedAt = now
		return true
	})
	return ok, nil
}

func (q *queries) CancelReferral(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	defer q.lock()()

	ok := q.transitionReferral(id, models.NonTerminalReferralStatuses, func(r *models.Referral) bool {
		r.Status = models.ReferralStatusCancelled
		r.CancelReason = &reason
		r.UpdatedAt = at
		return true
	})
	return ok, nil
}

// ledger

func (q *queries) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	defer q.lock()()
	st := q.st()

	for _, e := range st.ledger {
		if e.SourceType == entry.SourceType && e.SourceID == entry.SourceID && e.Status != models.LedgerStatusReversed {
			return conflict("create ledger entry for %s/%s", entry.SourceType, entry.SourceID)
		}
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Status == "" {
		entry.Status = models.LedgerStatusPending
	}

	now := q.s.now()
	entry.CreatedAt, entry.UpdatedAt = now, now
	st.ledger[entry.ID] = *entry
	st.ledgerSeq[entry.ID] = st.next()
	return nil
}

func (q *queries) ledgerOf(userID uuid.UUID, status models.LedgerStatus) []uuid.UUID {
	var ids []uuid.UUID
	for id, e := range q.st().ledger {
		if e.UserID != userID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (q *queries) ListLedgerEntriesByUser(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	defer q.lock()()
	st := q.st()

	ids := q.ledgerOf(userID, "")
	byNewest(ids, st.ledgerSeq)

	entries := make([]models.LedgerEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, st.ledger[id])
	}
	return entries, nil
}

func (q *queries) ListPendingLedgerEntriesForUpdate(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	defer q.lock()()
	st := q.st()

	ids := q.ledgerOf(userID, models.LedgerStatusPending)
	byOldest(ids, st.ledgerSeq)

	entries := make([]models.LedgerEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, st.ledger[id])
	}
	return entries, nil
}

func (q *queries) GetLedgerEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error) {
	defer q.lock()()

	entries := []models.LedgerEntry{}
	for _, id := range ids {
		if e, ok := q.st().ledger[id]; ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (q *queries) TransitionLedgerEntries(ctx context.Context, ids []uuid.UUID, from, to models.LedgerStatus) (int64, error) {
	defer q.lock()()
	st := q.st()

	now := q.s.now()
	var n int64
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		e, ok := st.ledger[id]
		if !ok || e.Status != from {
			continue
		}
		e.Status = to
		e.UpdatedAt = now
		st.ledger[id] = e
		n++
	}
	return n, nil
}

func (q *queries) LedgerBalance(ctx context.Context, userID uuid.UUID) (*models.LedgerBalance, error) {
	defer q.lock()()

	balance := &models.LedgerBalance{}
	for _, e := range q.st().ledger {
		if e.UserID != userID {
			continue
		}
		switch e.Status {
		case models.LedgerStatusPending:
			balance.Available = balance.Available.Add(e.Amount)
		case models.LedgerStatusLocked:
			balance.Locked = balance.Locked.Add(e.Amount)
		case models.LedgerStatusWithdrawn:
			balance.Withdrawn = balance.Withdrawn.Add(e.Amount)
		case models.LedgerStatusReversed:
			balance.Reversed = balance.Reversed.Add(e.Amount)
		}
	}
	return balance, nil
}

// withdrawals

func (q *queries) CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	defer q.lock()()
	st := q.st()

	if withdrawal.ID == uuid.Nil {
		withdrawal.ID = uuid.New()
	}
	if withdrawal.Status == "" {
		withdrawal.Status = models.WithdrawalStatusProcessing
	}
	for _, id := range withdrawal.LedgerIDs {
		if _, ok := st.ledger[id]; !ok {
			return notFound("ledger entry %s", id)
		}
	}

	now := q.s.now()
	withdrawal.CreatedAt, withdrawal.UpdatedAt = now, now
	w := *withdrawal
	w.LedgerIDs = append([]uuid.UUID{}, withdrawal.LedgerIDs...)
	st.withdrawals[w.ID] = w
	st.withdrawSeq[w.ID] = st.next()
	return nil
}

func (q *queries) getWithdrawal(id uuid.UUID) (*models.Withdrawal, error) {
	w, ok := q.st().withdrawals[id]
	if !ok {
		return nil, notFound("withdrawal %s", id)
	}
	w.LedgerIDs = append([]uuid.UUID{}, w.LedgerIDs...)
	return &w, nil
}

func (q *queries) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	defer q.lock()()
	return q.getWithdrawal(id)
}

func (q *queries) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	defer q.lock()()
	return q.getWithdrawal(id)
}

func (q *queries) ListWithdrawalsByUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	defer q.lock()()
	st := q.st()

	var ids []uuid.UUID
	for id, w := range st.withdrawals {
		if w.UserID == userID {
			ids = append(ids, id)
		}
	}
	byNewest(ids, st.withdrawSeq)

	withdrawals := make([]models.Withdrawal, 0, len(ids))
	for _, id := range ids {
		w, _ := q.getWithdrawal(id)
		withdrawals = append(withdrawals, *w)
	}
	return withdrawals, nil
}

func (q *queries) UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, from, to models.WithdrawalStatus, referenceID *string) (bool, error) {
	defer q.lock()()
	st := q.st()

	w, ok := st.withdrawals[id]
	if !ok || w.Status != from {
		return false, nil
	}
	w.Status = to
	if referenceID != nil {
		ref := *referenceID
		w.ReferenceID = &ref
	}
	w.UpdatedAt = q.s.now()
	st.withdrawals[id] = w
	return true, nil
}
