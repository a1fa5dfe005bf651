package service

import (
	"context"
	"testing"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscountPercentageCapped(t *testing.T) {
	coupon := &models.Coupon{
		Code:        "SAVE10",
		Type:        models.CouponTypePercentage,
		Value:       dec(10),
		MaxDiscount: decimal.NewNullDecimal(dec(5)),
	}
	assert.True(t, Discount(coupon, dec(1000)).Equal(dec(5)))

	coupon.MaxDiscount = decimal.NullDecimal{}
	assert.True(t, Discount(coupon, dec(1000)).Equal(dec(100)))
}

func TestDiscountFixedAndNone(t *testing.T) {
	fixed := &models.Coupon{Type: models.CouponTypeFixed, Value: dec(75)}
	assert.True(t, Discount(fixed, dec(1000)).Equal(dec(75)))
	assert.True(t, Discount(nil, dec(1000)).IsZero())
}

func TestValidateAndConsume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guard := env.orders.coupons
	user := uuid.New()

	limit := 2
	env.seedCoupon(t, &models.Coupon{Code: "welcome", Type: models.CouponTypeFixed, Value: dec(10), UsageLimit: &limit})
	env.seedCoupon(t, &models.Coupon{Code: "OFF", Type: models.CouponTypeFixed, Value: dec(10), Status: models.CouponStatusInactive})
	env.seedCoupon(t, &models.Coupon{Code: "OLD", Type: models.CouponTypeFixed, Value: dec(10), ExpiryDate: env.clock.Add(-time.Hour)})

	consume := func(code string) (*models.Coupon, error) {
		var got *models.Coupon
		err := env.repo.InTx(ctx, func(ctx context.Context, q store.Querier) error {
			c, err := guard.ValidateAndConsume(ctx, q, code, user)
			got = c
			return err
		})
		return got, err
	}

	c, err := consume(" Welcome ")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)

	_, err = consume("WELCOME")
	require.NoError(t, err)

	_, err = consume("WELCOME")
	assert.ErrorIs(t, err, models.ErrCouponUsageLimit)
	assert.ErrorIs(t, err, models.ErrLimitExceeded)

	_, err = consume("OFF")
	assert.ErrorIs(t, err, models.ErrCouponInactive)

	_, err = consume("OLD")
	assert.ErrorIs(t, err, models.ErrCouponExpired)

	_, err = consume("MISSING")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCouponAudience(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 100, 10)

	env.seedCoupon(t, &models.Coupon{Code: "FIRST", Type: models.CouponTypeFixed, Value: dec(10), ApplicableUsers: models.CouponAudienceFirstTime})
	env.seedCoupon(t, &models.Coupon{Code: "FRIEND", Type: models.CouponTypeFixed, Value: dec(10), ApplicableUsers: models.CouponAudienceReferred})

	buyer := uuid.New()

	req := orderRequest(buyer, redM(p.ID, 1))
	req.CouponCode = "FIRST"
	_, err := env.orders.PlaceOrder(ctx, req)
	require.NoError(t, err)

	req = orderRequest(buyer, redM(p.ID, 1))
	req.CouponCode = "FIRST"
	_, err = env.orders.PlaceOrder(ctx, req)
	assert.ErrorIs(t, err, models.ErrCouponNotEligible)

	req = orderRequest(buyer, redM(p.ID, 1))
	req.CouponCode = "FRIEND"
	_, err = env.orders.PlaceOrder(ctx, req)
	assert.ErrorIs(t, err, models.ErrCouponNotEligible)

	_, err = env.referrals.CreateReferral(ctx, uuid.New(), buyer, nil)
	require.NoError(t, err)

	_, err = env.orders.PlaceOrder(ctx, req)
	assert.NoError(t, err)
}

func TestCouponMinPurchase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 100, 10)

	env.seedCoupon(t, &models.Coupon{Code: "BIG", Type: models.CouponTypeFixed, Value: dec(50), MinPurchase: dec(500)})

	req := orderRequest(uuid.New(), redM(p.ID, 2))
	req.CouponCode = "BIG"
	_, err := env.orders.PlaceOrder(ctx, req)
	assert.ErrorIs(t, err, models.ErrMinPurchase)

	// the failed order consumed neither stock nor coupon usage
	assert.Equal(t, 10, env.stock(t, p.ID, "Red", "M"))
	c, err := env.repo.GetCouponByCode(ctx, "BIG")
	require.NoError(t, err)
	assert.Equal(t, 0, c.UsedCount)

	preview, err := env.orders.coupons.Preview(ctx, env.repo, "big", uuid.New(), dec(600))
	require.NoError(t, err)
	assert.True(t, preview.Discount.Equal(dec(50)))
	assert.True(t, preview.Payable.Equal(dec(550)))
}
