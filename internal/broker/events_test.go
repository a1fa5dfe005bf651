package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	util.SetLogger(zap.NewNop())
}

type captureSink struct {
	keys   []string
	events []any
}

func (s *captureSink) PublishEvent(_ context.Context, key string, event any) error {
	s.keys = append(s.keys, key)
	s.events = append(s.events, event)
	return nil
}

func TestPublisherKeysByAggregate(t *testing.T) {
	sink := &captureSink{}
	ep := NewEventPublisher(sink)
	ctx := context.Background()
	now := time.Now()

	orderID, referralID, withdrawalID := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, ep.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPlaced, now), OrderID: orderID,
	}))
	require.NoError(t, ep.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged, now), OrderID: orderID,
	}))
	require.NoError(t, ep.PublishReferralCompleted(ctx, &models.ReferralCompletedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeReferralCompleted, now), ReferralID: referralID,
	}))
	require.NoError(t, ep.PublishWithdrawalUpdated(ctx, &models.WithdrawalEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeWithdrawalUpdated, now), WithdrawalID: withdrawalID,
	}))

	assert.Equal(t, []string{
		"order-" + orderID.String(),
		"order-" + orderID.String(),
		"referral-" + referralID.String(),
		"withdrawal-" + withdrawalID.String(),
	}, sink.keys)
}

func TestLocalSinkRoutesStatusChanges(t *testing.T) {
	handler := NewEventHandler()
	var got []*models.OrderStatusChangedEvent
	handler.OnOrderStatusChanged(func(_ context.Context, e *models.OrderStatusChangedEvent) error {
		got = append(got, e)
		return nil
	})

	ep := NewEventPublisher(NewLocalSink(handler.HandleMessage))
	ctx := context.Background()

	orderID := uuid.New()
	require.NoError(t, ep.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
		BaseEvent:      models.NewBaseEvent(models.EventTypeOrderStatusChanged, time.Now()),
		OrderID:        orderID,
		PreviousStatus: models.OrderStatusShipped,
		Status:         models.OrderStatusReturned,
	}))
	require.NoError(t, ep.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPlaced, time.Now()),
		OrderID:   orderID,
	}))

	require.Len(t, got, 1)
	assert.Equal(t, orderID, got[0].OrderID)
	assert.Equal(t, models.OrderStatusReturned, got[0].Status)
}

func TestLocalSinkSwallowsHandlerErrors(t *testing.T) {
	sink := NewLocalSink(func(context.Context, kafka.Message) error {
		return errors.New("boom")
	})
	assert.NoError(t, sink.PublishEvent(context.Background(), "k", map[string]string{"event_type": "X"}))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	err := NewEventHandler().HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = NewEventHandler().HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"SOMETHING_ELSE"}`)})
	assert.NoError(t, err)
}
