package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/store/memstore"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	util.SetLogger(zap.NewNop())
}

func TestCancelledQualifyingOrderCancelsReferral(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	referrals := service.NewReferralService(repo, nil, service.ReferralConfig{
		RewardAmount: decimal.NewFromInt(50),
		MinPurchase:  decimal.NewFromInt(1500),
	})
	handler := NewReferralEventHandler(referrals)
	publisher := broker.NewEventPublisher(broker.NewLocalSink(handler.HandleMessage))

	orders := service.NewOrderService(
		repo,
		service.NewInventory(),
		service.NewCouponGuard(),
		service.NewDeliveryCalculator(decimal.Zero, nil),
		referrals,
		publisher,
		nil,
		0,
	)

	product := &models.Product{
		Name:      "Silk Saree",
		Slug:      "silk-saree",
		BasePrice: decimal.NewNullDecimal(decimal.NewFromInt(2000)),
		Variants: []models.Variant{{
			Color: "Blue",
			Sizes: []models.VariantSize{{Size: "Free", Stock: 3}},
		}},
	}
	require.NoError(t, repo.CreateProduct(ctx, product))

	inviter, invitee := uuid.New(), uuid.New()
	_, err := referrals.CreateReferral(ctx, inviter, invitee, nil)
	require.NoError(t, err)

	order, err := orders.PlaceOrder(ctx, &service.PlaceOrderRequest{
		UserID:          invitee,
		Items:           []service.OrderItemRequest{{ProductID: product.ID, Color: "Blue", Size: "Free", Quantity: 1}},
		PaymentMethod:   models.PaymentMethodKhalti,
		DeliveryAddress: models.Address{Name: "Mina", Phone: "9811111111", Address: "Ward 4", City: "Kathmandu"},
	})
	require.NoError(t, err)

	// qualification runs detached from the request
	require.Eventually(t, func() bool {
		r, err := repo.GetReferralByInvitee(ctx, invitee)
		return err == nil && r.Status == models.ReferralStatusQualified
	}, 2*time.Second, 10*time.Millisecond)

	_, err = orders.CancelOrder(ctx, order.ID, models.Principal{UserID: invitee, Role: models.RoleUser})
	require.NoError(t, err)

	r, err := repo.GetReferralByInvitee(ctx, invitee)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusCancelled, r.Status)
	require.NotNil(t, r.CancelReason)
	assert.Equal(t, "qualifying order cancelled", *r.CancelReason)
}

func TestOtherStatusChangesLeaveReferral(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	referrals := service.NewReferralService(repo, nil, service.ReferralConfig{MinPurchase: decimal.NewFromInt(100)})
	publisher := broker.NewEventPublisher(broker.NewLocalSink(NewReferralEventHandler(referrals).HandleMessage))

	invitee := uuid.New()
	order := &models.Order{UserID: invitee, Status: models.OrderStatusPlaced}
	require.NoError(t, repo.CreateOrder(ctx, order))
	orderID := order.ID

	_, err := referrals.CreateReferral(ctx, uuid.New(), invitee, nil)
	require.NoError(t, err)
	_, err = referrals.QualifyReferral(ctx, invitee, orderID, decimal.NewFromInt(100))
	require.NoError(t, err)

	for _, status := range []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped} {
		require.NoError(t, publisher.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged, time.Now()),
			OrderID:   orderID,
			UserID:    invitee,
			Status:    status,
		}))
	}

	r, err := repo.GetReferralByInvitee(ctx, invitee)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusQualified, r.Status)

	require.NoError(t, publisher.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged, time.Now()),
		OrderID:   orderID,
		UserID:    invitee,
		Status:    models.OrderStatusReturned,
	}))

	r, err = repo.GetReferralByInvitee(ctx, invitee)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusCancelled, r.Status)
}

type countingProcessor struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (p *countingProcessor) ProcessHoldExpired(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs++
	return 1, p.err
}

func (p *countingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	released int
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = token
	return token, true, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.released++
	}
	return nil
}

func TestSweepOnceHonoursLock(t *testing.T) {
	ctx := context.Background()
	processor := &countingProcessor{}
	locker := &fakeLocker{held: map[string]string{}}
	sweeper := NewHoldSweeper(processor, locker, time.Hour)

	assert.True(t, sweeper.SweepOnce(ctx))
	assert.Equal(t, 1, processor.count())
	assert.Equal(t, 1, locker.released)

	locker.held[sweepLockKey] = "another-instance"
	assert.False(t, sweeper.SweepOnce(ctx))
	assert.Equal(t, 1, processor.count())

	processor.err = errors.New("db down")
	delete(locker.held, sweepLockKey)
	assert.True(t, sweeper.SweepOnce(ctx))
	assert.Equal(t, 2, locker.released, "lock released after a failed pass")
}

func TestSweeperRunsImmediatelyAndStops(t *testing.T) {
	processor := &countingProcessor{}
	sweeper := NewHoldSweeper(processor, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Start(ctx) }()

	require.Eventually(t, func() bool { return processor.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
