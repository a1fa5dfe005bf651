package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// newTestStore connects to TEST_DATABASE_URL and migrates it.
// Integration tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires TEST_DATABASE_URL")
	}

	store, err := NewStore(url, Options{})
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })
	return store
}

func seedProduct(t *testing.T, q Querier, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		Name:      "Linen Shirt",
		Slug:      "linen-shirt-" + uuid.NewString(),
		BasePrice: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		Variants: []models.Variant{{
			Color:  "Red",
			Images: pq.StringArray{"red.jpg"},
			Sizes: []models.VariantSize{
				{Size: "M", Stock: stock},
				{Size: "L", Stock: stock, Price: decimal.NewNullDecimal(decimal.NewFromInt(1200))},
			},
		}},
	}
	require.NoError(t, q.CreateProduct(context.Background(), product))
	return product
}

func TestConvertErr(t *testing.T) {
	assert.NoError(t, convertErr(nil, "noop"))

	err := convertErr(sql.ErrNoRows, "order %d", 1)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Contains(t, err.Error(), "order 1")

	err = convertErr(&pq.Error{Code: uniqueViolationCode, Message: "duplicate key"}, "insert")
	assert.True(t, errors.Is(err, models.ErrConflict))

	err = convertErr(&pq.Error{Code: checkViolationCode, Message: "stock_check"}, "update")
	assert.True(t, errors.Is(err, models.ErrInvalidState))

	plain := errors.New("boom")
	err = convertErr(plain, "query")
	assert.True(t, errors.Is(err, plain))
	assert.False(t, errors.Is(err, models.ErrNotFound))
}

func TestProductRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	product := seedProduct(t, store, 5)

	got, err := store.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	require.Len(t, got.Variants[0].Sizes, 2)
	assert.Equal(t, "M", got.Variants[0].Sizes[0].Size)
	assert.Equal(t, "L", got.Variants[0].Sizes[1].Size)
	assert.True(t, got.Variants[0].Sizes[1].Price.Decimal.Equal(decimal.NewFromInt(1200)))

	_, err = store.GetProductByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestDecrementStockConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const stock = 3
	product := seedProduct(t, store, stock)

	var successes int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			ok, err := store.DecrementStock(gctx, product.ID, "Red", "M", 1)
			if ok {
				atomic.AddInt64(&successes, 1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(stock), successes)

	got, err := store.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Variants[0].Sizes[0].Stock)
}

func TestDecrementStockRollsBackWithTx(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	product := seedProduct(t, store, 2)

	err := store.InTx(ctx, func(ctx context.Context, q Querier) error {
		ok, err := q.DecrementStock(ctx, product.ID, "Red", "M", 2)
		require.NoError(t, err)
		require.True(t, ok)
		return errors.New("abort")
	})
	require.Error(t, err)

	got, err := store.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Variants[0].Sizes[0].Stock)

	ok, err := store.DecrementStock(ctx, product.ID, "Blue", "M", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCouponUsageLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	limit := 1
	coupon := &models.Coupon{
		Code:       " save-" + uuid.NewString()[:8],
		Type:       models.CouponTypeFixed,
		Value:      decimal.NewFromInt(100),
		ExpiryDate: time.Now().Add(24 * time.Hour),
		UsageLimit: &limit,
	}
	require.NoError(t, store.CreateCoupon(ctx, coupon))

	got, err := store.GetCouponByCode(ctx, coupon.Code)
	require.NoError(t, err)
	assert.Equal(t, coupon.ID, got.ID)

	ok, err := store.IncrementCouponUsage(ctx, coupon.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IncrementCouponUsage(ctx, coupon.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerLiveSourceUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	userID := uuid.New()
	sourceID := uuid.New()
	entry := &models.LedgerEntry{
		UserID:     userID,
		Amount:     decimal.NewFromInt(50),
		SourceType: models.LedgerSourceReferral,
		SourceID:   sourceID,
		Reason:     "referral reward",
	}
	require.NoError(t, store.CreateLedgerEntry(ctx, entry))

	dup := *entry
	dup.ID = uuid.Nil
	err := store.CreateLedgerEntry(ctx, &dup)
	assert.True(t, errors.Is(err, models.ErrConflict))

	n, err := store.TransitionLedgerEntries(ctx, []uuid.UUID{entry.ID}, models.LedgerStatusPending, models.LedgerStatusLocked)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.TransitionLedgerEntries(ctx, []uuid.UUID{entry.ID}, models.LedgerStatusPending, models.LedgerStatusLocked)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	balance, err := store.LedgerBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Available.IsZero())
	assert.True(t, balance.Locked.Equal(decimal.NewFromInt(50)))
}
