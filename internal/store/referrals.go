package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const referralColumns = `id, inviter_id, invitee_id, referral_code_used, reward_amount,
	min_purchase_required, qualifying_order_id, qualifying_order_amount, qualified_at,
	delivered_at, hold_until, status, cancel_reason, created_at, updated_at`

// CreateReferral creates a new pending referral
func (q *Queries) CreateReferral(ctx context.Context, referral *models.Referral) error {
	if referral.ID == uuid.Nil {
		referral.ID = uuid.New()
	}
	if referral.Status == "" {
		referral.Status = models.ReferralStatusPending
	}

	err := sqlx.GetContext(ctx, q.db, referral, `
		INSERT INTO referrals (id, inviter_id, invitee_id, referral_code_used, reward_amount,
			min_purchase_required, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+referralColumns,
		referral.ID, referral.InviterID, referral.InviteeID, referral.ReferralCodeUsed,
		referral.RewardAmount, referral.MinPurchaseRequired, referral.Status)
	return convertErr(err, "create referral for %s", referral.InviteeID)
}

// GetReferralByInvitee retrieves the referral that brought the invitee in
func (q *Queries) GetReferralByInvitee(ctx context.Context, inviteeID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	err := sqlx.GetContext(ctx, q.db, &referral,
		"SELECT "+referralColumns+" FROM referrals WHERE invitee_id = $1", inviteeID)
	if err != nil {
		return nil, convertErr(err, "referral of invitee %s", inviteeID)
	}
	return &referral, nil
}

// ListReferralsByInviter retrieves the inviter's referrals, newest first
func (q *Queries) ListReferralsByInviter(ctx context.Context, inviterID uuid.UUID) ([]models.Referral, error) {
	referrals := []models.Referral{}
	err := sqlx.SelectContext(ctx, q.db, &referrals,
		"SELECT "+referralColumns+" FROM referrals WHERE inviter_id = $1 ORDER BY created_at DESC", inviterID)
	if err != nil {
		return nil, convertErr(err, "referrals of inviter %s", inviterID)
	}
	return referrals, nil
}

// ListHoldExpiredReferrals returns holding referrals whose hold period ended at or before now
func (q *Queries) ListHoldExpiredReferrals(ctx context.Context, now time.Time, limit int) ([]models.Referral, error) {
	referrals := []models.Referral{}
	err := sqlx.SelectContext(ctx, q.db, &referrals, `
		SELECT `+referralColumns+` FROM referrals
		WHERE status = $1 AND hold_until <= $2
		ORDER BY hold_until
		LIMIT $3`, models.ReferralStatusHolding, now, limit)
	if err != nil {
		return nil, convertErr(err, "hold-expired referrals")
	}
	return referrals, nil
}

// QualifyReferral records the qualifying order on a pending referral. The order must still be
// live; its row is share-locked so a concurrent cancellation commits either before or after.
func (q *Queries) QualifyReferral(ctx context.Context, id, orderID uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE referrals SET
			status = $2, qualifying_order_id = $3, qualifying_order_amount = $4,
			qualified_at = $5, updated_at = $5
		WHERE id = $1 AND status = $6
		AND EXISTS (
			SELECT 1 FROM orders
			WHERE id = $3 AND status NOT IN ($7, $8)
			FOR SHARE
		)`,
		id, models.ReferralStatusQualified, orderID, amount, at, models.ReferralStatusPending,
		models.OrderStatusCancelled, models.OrderStatusReturned)
	return rowsChanged(res, err, "qualify referral %s", id)
}

// HoldReferral starts the hold period of a qualified referral
func (q *Queries) HoldReferral(ctx context.Context, id uuid.UUID, deliveredAt, holdUntil time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE referrals SET
			status = $2, delivered_at = $3, hold_until = $4, updated_at = $3
		WHERE id = $1 AND status = $5`,
		id, models.ReferralStatusHolding, deliveredAt, holdUntil, models.ReferralStatusQualified)
	return rowsChanged(res, err, "hold referral %s", id)
}

// CompleteReferral completes a holding referral whose hold has expired
func (q *Queries) CompleteReferral(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE referrals SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4 AND hold_until <= $3`,
		id, models.ReferralStatusCompleted, now, models.ReferralStatusHolding)
	return rowsChanged(res, err, "complete referral %s", id)
}

// CancelReferral cancels a referral that has not reached a terminal state
func (q *Queries) CancelReferral(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE referrals SET status = $2, cancel_reason = $3, updated_at = $4
		WHERE id = $1 AND status IN ($5, $6, $7)`,
		id, models.ReferralStatusCancelled, reason, at,
		models.ReferralStatusPending, models.ReferralStatusQualified, models.ReferralStatusHolding)
	return rowsChanged(res, err, "cancel referral %s", id)
}

// rowsChanged reports whether a single-row conditional update applied
func rowsChanged(res sql.Result, err error, format string, args ...any) (bool, error) {
	if err != nil {
		return false, convertErr(err, format, args...)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", fmt.Sprintf(format, args...), err)
	}
	return affected == 1, nil
}
