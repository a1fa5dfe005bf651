package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const couponColumns = `id, code, type, value, min_purchase, max_discount, applicable_users,
	expiry_date, usage_limit, used_count, status, created_at, updated_at`

// CreateCoupon creates a new coupon. The code is stored normalized.
func (q *Queries) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	coupon.Code = models.NormalizeCouponCode(coupon.Code)
	if coupon.ApplicableUsers == "" {
		coupon.ApplicableUsers = models.CouponAudienceAll
	}
	if coupon.Status == "" {
		coupon.Status = models.CouponStatusActive
	}

	err := sqlx.GetContext(ctx, q.db, coupon, `
		INSERT INTO coupons (id, code, type, value, min_purchase, max_discount, applicable_users,
			expiry_date, usage_limit, used_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+couponColumns,
		coupon.ID, coupon.Code, coupon.Type, coupon.Value, coupon.MinPurchase, coupon.MaxDiscount,
		coupon.ApplicableUsers, coupon.ExpiryDate, coupon.UsageLimit, coupon.UsedCount, coupon.Status)
	return convertErr(err, "create coupon %s", coupon.Code)
}

// GetCouponByCode retrieves a coupon by its normalized code
func (q *Queries) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := sqlx.GetContext(ctx, q.db, &coupon,
		"SELECT "+couponColumns+" FROM coupons WHERE code = $1", models.NormalizeCouponCode(code))
	if err != nil {
		return nil, convertErr(err, "coupon %s", code)
	}
	return &coupon, nil
}

// GetCouponByCodeForUpdate retrieves a coupon and locks its row until the transaction ends
func (q *Queries) GetCouponByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := sqlx.GetContext(ctx, q.db, &coupon,
		"SELECT "+couponColumns+" FROM coupons WHERE code = $1 FOR UPDATE", models.NormalizeCouponCode(code))
	if err != nil {
		return nil, convertErr(err, "coupon %s", code)
	}
	return &coupon, nil
}

// IncrementCouponUsage bumps used_count only while it is still below the usage limit.
// Returns false when the limit has been reached.
func (q *Queries) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`, couponID)
	if err != nil {
		return false, convertErr(err, "increment usage of coupon %s", couponID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment coupon usage rows affected: %w", err)
	}
	return affected == 1, nil
}
