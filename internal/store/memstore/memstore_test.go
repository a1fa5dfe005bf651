package memstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func seed(t *testing.T, s *Store, stock int) *models.Product {
	t.Helper()

	p := &models.Product{
		Name:      "Tee",
		Slug:      "tee",
		BasePrice: decimal.NewNullDecimal(decimal.NewFromInt(500)),
		Variants: []models.Variant{{
			Color: "Black",
			Sizes: []models.VariantSize{{Size: "S", Stock: stock}},
		}},
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seed(t, s, 5)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		ok, err := q.DecrementStock(ctx, p.ID, "Black", "S", 3)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, q.CreateOrder(ctx, &models.Order{UserID: uuid.New(), Status: models.OrderStatusPlaced}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Variants[0].Sizes[0].Stock)

	_, total, err := s.ListOrders(ctx, models.OrderFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestDecrementStockNeverOversells(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seed(t, s, 4)

	var sold int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			return s.InTx(gctx, func(ctx context.Context, q store.Querier) error {
				ok, err := q.DecrementStock(ctx, p.ID, "Black", "S", 1)
				if ok {
					atomic.AddInt64(&sold, 1)
				}
				return err
			})
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(4), sold)
	got, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Variants[0].Sizes[0].Stock)
}

func TestReturnedProductIsACopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seed(t, s, 2)

	got, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	got.Variants[0].Sizes[0].Stock = 100

	again, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Variants[0].Sizes[0].Stock)
}

func TestUniqueConstraints(t *testing.T) {
	s := New()
	ctx := context.Background()

	inviter, invitee := uuid.New(), uuid.New()
	require.NoError(t, s.CreateReferral(ctx, &models.Referral{InviterID: inviter, InviteeID: invitee}))
	err := s.CreateReferral(ctx, &models.Referral{InviterID: uuid.New(), InviteeID: invitee})
	assert.ErrorIs(t, err, models.ErrConflict)

	source := uuid.New()
	entry := &models.LedgerEntry{UserID: inviter, Amount: decimal.NewFromInt(10), SourceType: models.LedgerSourceReferral, SourceID: source}
	require.NoError(t, s.CreateLedgerEntry(ctx, entry))
	err = s.CreateLedgerEntry(ctx, &models.LedgerEntry{UserID: inviter, Amount: decimal.NewFromInt(10), SourceType: models.LedgerSourceReferral, SourceID: source})
	assert.ErrorIs(t, err, models.ErrConflict)

	n, err := s.TransitionLedgerEntries(ctx, []uuid.UUID{entry.ID}, models.LedgerStatusPending, models.LedgerStatusReversed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// a reversed entry frees its source for a fresh credit
	require.NoError(t, s.CreateLedgerEntry(ctx, &models.LedgerEntry{UserID: inviter, Amount: decimal.NewFromInt(10), SourceType: models.LedgerSourceReferral, SourceID: source}))
}

func TestCompleteReferralRequiresExpiredHold(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	r := &models.Referral{InviterID: uuid.New(), InviteeID: uuid.New()}
	require.NoError(t, s.CreateReferral(ctx, r))

	ok, err := s.HoldReferral(ctx, r.ID, now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "pending referral cannot be held")

	order := &models.Order{UserID: r.InviteeID, Status: models.OrderStatusPlaced}
	require.NoError(t, s.CreateOrder(ctx, order))

	ok, err = s.QualifyReferral(ctx, r.ID, order.ID, decimal.NewFromInt(2000), now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.HoldReferral(ctx, r.ID, now, now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CompleteReferral(ctx, r.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	expired, err := s.ListHoldExpiredReferrals(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	ok, err = s.CompleteReferral(ctx, r.ID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CancelReferral(ctx, r.ID, "late", now)
	require.NoError(t, err)
	assert.False(t, ok, "completed referral stays completed")
}

func TestQualifyReferralNeedsLiveOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	r := &models.Referral{InviterID: uuid.New(), InviteeID: uuid.New()}
	require.NoError(t, s.CreateReferral(ctx, r))

	ok, err := s.QualifyReferral(ctx, r.ID, uuid.New(), decimal.NewFromInt(2000), now)
	require.NoError(t, err)
	assert.False(t, ok, "unknown order")

	for _, status := range []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusReturned} {
		order := &models.Order{UserID: r.InviteeID, Status: status}
		require.NoError(t, s.CreateOrder(ctx, order))

		ok, err = s.QualifyReferral(ctx, r.ID, order.ID, decimal.NewFromInt(2000), now)
		require.NoError(t, err)
		assert.False(t, ok, "%s order", status)
	}

	got, err := s.GetReferralByInvitee(ctx, r.InviteeID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPending, got.Status)
}

func TestListOrdersPaginates(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		o := &models.Order{UserID: user, Status: models.OrderStatusPlaced}
		require.NoError(t, s.CreateOrder(ctx, o))
		ids = append(ids, o.ID)
	}
	require.NoError(t, s.CreateOrder(ctx, &models.Order{UserID: uuid.New(), Status: models.OrderStatusPlaced}))

	page, total, err := s.ListOrders(ctx, models.OrderFilter{
		UserID: uuid.NullUUID{UUID: user, Valid: true},
		Page:   2,
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
}
