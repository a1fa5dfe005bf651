package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func (e *testEnv) credit(t *testing.T, userID uuid.UUID, amount int64) *models.LedgerEntry {
	t.Helper()

	entry := &models.LedgerEntry{
		UserID:     userID,
		Amount:     dec(amount),
		SourceType: models.LedgerSourceSpin,
		SourceID:   uuid.New(),
		Reason:     "Spin reward",
		Status:     models.LedgerStatusPending,
	}
	require.NoError(t, e.repo.CreateLedgerEntry(context.Background(), entry))
	return entry
}

func TestFirstFit(t *testing.T) {
	entries := []models.LedgerEntry{
		{ID: uuid.New(), Amount: dec(30)},
		{ID: uuid.New(), Amount: dec(50)},
		{ID: uuid.New(), Amount: dec(20)},
	}

	ids, sum := firstFit(entries, dec(60))
	assert.Equal(t, []uuid.UUID{entries[0].ID, entries[1].ID}, ids)
	assert.True(t, sum.Equal(dec(80)))

	ids, sum = firstFit(entries, dec(30))
	assert.Len(t, ids, 1)
	assert.True(t, sum.Equal(dec(30)))

	ids, sum = firstFit(entries, dec(500))
	assert.Len(t, ids, 3)
	assert.True(t, sum.Equal(dec(100)))
}

func TestRequestWithdrawal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	a := env.credit(t, user, 30)
	b := env.credit(t, user, 50)
	env.credit(t, user, 20)

	_, err := env.ledger.RequestWithdrawal(ctx, user, dec(0), models.WithdrawalMethodEsewa)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = env.ledger.RequestWithdrawal(ctx, user, dec(10), "paypal")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	w, err := env.ledger.RequestWithdrawal(ctx, user, dec(60), models.WithdrawalMethodEsewa)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusProcessing, w.Status)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, w.LedgerIDs)

	balance, err := env.ledger.GetBalanceBreakdown(ctx, user)
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(dec(20)))
	assert.True(t, balance.Locked.Equal(dec(80)))

	_, err = env.ledger.RequestWithdrawal(ctx, user, dec(21), models.WithdrawalMethodBank)
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	balance, err = env.ledger.GetBalanceBreakdown(ctx, user)
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(dec(20)), "failed request locks nothing")

	_, err = env.ledger.RequestWithdrawal(ctx, uuid.New(), dec(1), models.WithdrawalMethodBank)
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)
}

func TestCompleteWithdrawalSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.credit(t, user, 100)

	w, err := env.ledger.RequestWithdrawal(ctx, user, dec(100), models.WithdrawalMethodKhalti)
	require.NoError(t, err)

	ref := "KH-2025-0042"
	done, err := env.ledger.CompleteWithdrawal(ctx, w.ID, true, &ref)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusSuccessful, done.Status)
	require.NotNil(t, done.ReferenceID)
	assert.Equal(t, ref, *done.ReferenceID)

	balance, err := env.ledger.GetBalanceBreakdown(ctx, user)
	require.NoError(t, err)
	assert.True(t, balance.Available.IsZero())
	assert.True(t, balance.Locked.IsZero())
	assert.True(t, balance.Withdrawn.Equal(dec(100)))

	_, err = env.ledger.CompleteWithdrawal(ctx, w.ID, false, nil)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = env.ledger.CompleteWithdrawal(ctx, uuid.New(), true, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.Len(t, env.publisher.withdrawals, 2)
	assert.Equal(t, models.WithdrawalStatusSuccessful, env.publisher.withdrawals[1].Status)
}

func TestRejectedWithdrawalRestoresBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.credit(t, user, 40)
	env.credit(t, user, 35)

	w, err := env.ledger.RequestWithdrawal(ctx, user, dec(75), models.WithdrawalMethodBank)
	require.NoError(t, err)

	rejected, err := env.ledger.CompleteWithdrawal(ctx, w.ID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Status)

	balance, err := env.ledger.GetBalanceBreakdown(ctx, user)
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(dec(75)))
	assert.True(t, balance.Reversed.Equal(dec(75)))
	assert.True(t, balance.Locked.IsZero())

	entries, err := env.ledger.GetUserLedger(ctx, user)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	// the reissued entries can be withdrawn again
	again, err := env.ledger.RequestWithdrawal(ctx, user, dec(75), models.WithdrawalMethodBank)
	require.NoError(t, err)
	assert.Len(t, again.LedgerIDs, 2)

	mine, err := env.ledger.GetMyWithdrawals(ctx, user)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, again.ID, mine[0].ID)
}

func TestRepeatedRejectionsKeepReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	original := env.credit(t, user, 25)

	for i := 0; i < 3; i++ {
		w, err := env.ledger.RequestWithdrawal(ctx, user, dec(25), models.WithdrawalMethodEsewa)
		require.NoError(t, err)
		_, err = env.ledger.CompleteWithdrawal(ctx, w.ID, false, nil)
		require.NoError(t, err)
	}

	entries, err := env.ledger.GetUserLedger(ctx, user)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	want := reissueReason(models.LedgerSourceSpin, original.SourceID)
	pending := 0
	for _, e := range entries {
		assert.Equal(t, original.SourceID, e.SourceID)
		if e.ID == original.ID {
			continue
		}
		assert.Equal(t, want, e.Reason)
		if e.Status == models.LedgerStatusPending {
			pending++
		}
	}
	assert.Equal(t, 1, pending)
}

func TestConcurrentWithdrawalsLockOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.credit(t, user, 100)

	var ok, refused int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 6; i++ {
		g.Go(func() error {
			_, err := env.ledger.RequestWithdrawal(gctx, user, dec(100), models.WithdrawalMethodEsewa)
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, models.ErrInsufficientBalance):
				atomic.AddInt64(&refused, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), ok)
	assert.Equal(t, int64(5), refused)
}

func TestGetWithdrawalOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.credit(t, user, 10)

	w, err := env.ledger.RequestWithdrawal(ctx, user, dec(10), models.WithdrawalMethodEsewa)
	require.NoError(t, err)

	_, err = env.ledger.GetWithdrawal(ctx, w.ID, models.Principal{UserID: uuid.New(), Role: models.RoleUser})
	assert.ErrorIs(t, err, models.ErrForbidden)

	got, err := env.ledger.GetWithdrawal(ctx, w.ID, models.Principal{UserID: user, Role: models.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{w.LedgerIDs[0]}, got.LedgerIDs)

	_, err = env.ledger.GetWithdrawal(ctx, w.ID, models.Principal{UserID: uuid.New(), Role: models.RoleAdmin})
	require.NoError(t, err)
}
