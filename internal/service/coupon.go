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

var hundred = decimal.NewFromInt(100)

// CouponGuard validates coupons and consumes their usage inside the order transaction
type CouponGuard struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewCouponGuard creates a new coupon guard
func NewCouponGuard() *CouponGuard {
	return &CouponGuard{
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// ValidateAndConsume locks the coupon row, checks it applies to userID and bumps
// its usage counter. q must be the order's transaction so a later failure undoes the increment.
func (g *CouponGuard) ValidateAndConsume(ctx context.Context, q store.Querier, code string, userID uuid.UUID) (*models.Coupon, error) {
	ctx, span := util.StartSpan(ctx, "CouponGuard.ValidateAndConsume")
	defer span.End()

	coupon, err := q.GetCouponByCodeForUpdate(ctx, code)
	if err != nil {
		util.CouponRedemptionsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if err := g.checkApplicable(ctx, q, coupon, userID); err != nil {
		util.CouponRedemptionsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	ok, err := q.IncrementCouponUsage(ctx, coupon.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume coupon %s: %w", coupon.Code, err)
	}
	if !ok {
		util.CouponRedemptionsTotal.WithLabelValues("limit").Inc()
		return nil, fmt.Errorf("coupon %s: %w", coupon.Code, models.ErrCouponUsageLimit)
	}
	coupon.UsedCount++

	util.CouponRedemptionsTotal.WithLabelValues("consumed").Inc()
	return coupon, nil
}

func (g *CouponGuard) checkApplicable(ctx context.Context, q store.Querier, coupon *models.Coupon, userID uuid.UUID) error {
	if coupon.Status != models.CouponStatusActive {
		return fmt.Errorf("coupon %s: %w", coupon.Code, models.ErrCouponInactive)
	}
	if g.now().After(coupon.ExpiryDate) {
		return fmt.Errorf("coupon %s: %w", coupon.Code, models.ErrCouponExpired)
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return fmt.Errorf("coupon %s: %w", coupon.Code, models.ErrCouponUsageLimit)
	}

	switch coupon.ApplicableUsers {
	case models.CouponAudienceFirstTime:
		count, err := q.CountOrdersByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to count orders: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("coupon %s is for first orders only: %w", coupon.Code, models.ErrCouponNotEligible)
		}
	case models.CouponAudienceReferred:
		if _, err := q.GetReferralByInvitee(ctx, userID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("coupon %s is for referred users only: %w", coupon.Code, models.ErrCouponNotEligible)
			}
			return fmt.Errorf("failed to look up referral: %w", err)
		}
	}
	return nil
}

// CheckMinPurchase fails with ErrMinPurchase when itemsTotal is below the coupon's minimum
func CheckMinPurchase(coupon *models.Coupon, itemsTotal decimal.Decimal) error {
	if itemsTotal.LessThan(coupon.MinPurchase) {
		return fmt.Errorf("coupon %s needs a purchase of %s: %w", coupon.Code, coupon.MinPurchase.StringFixed(2), models.ErrMinPurchase)
	}
	return nil
}

// Discount computes the coupon discount on itemsTotal. Percentage coupons are capped at MaxDiscount.
func Discount(coupon *models.Coupon, itemsTotal decimal.Decimal) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}

	switch coupon.Type {
	case models.CouponTypePercentage:
		discount := itemsTotal.Mul(coupon.Value).Div(hundred).Round(2)
		if coupon.MaxDiscount.Valid && discount.GreaterThan(coupon.MaxDiscount.Decimal) {
			discount = coupon.MaxDiscount.Decimal
		}
		return discount
	case models.CouponTypeFixed:
		return coupon.Value
	}
	return decimal.Zero
}

// CouponPreview is what a coupon would do to a cart without consuming it
type CouponPreview struct {
	Code       string          `json:"code"`
	Type       string          `json:"type"`
	ItemsTotal decimal.Decimal `json:"items_total"`
	Discount   decimal.Decimal `json:"discount"`
	Payable    decimal.Decimal `json:"payable"`
}

// Preview validates code for userID against itemsTotal without touching its usage count
func (g *CouponGuard) Preview(ctx context.Context, q store.Querier, code string, userID uuid.UUID, itemsTotal decimal.Decimal) (*CouponPreview, error) {
	ctx, span := util.StartSpan(ctx, "CouponGuard.Preview")
	defer span.End()

	coupon, err := q.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := g.checkApplicable(ctx, q, coupon, userID); err != nil {
		return nil, err
	}
	if err := CheckMinPurchase(coupon, itemsTotal); err != nil {
		return nil, err
	}

	discount := Discount(coupon, itemsTotal)
	return &CouponPreview{
		Code:       coupon.Code,
		Type:       string(coupon.Type),
		ItemsTotal: itemsTotal,
		Discount:   discount,
		Payable:    decimal.Max(decimal.Zero, itemsTotal.Sub(discount)),
	}, nil
}
