package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	sink Sink
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(sink Sink) *EventPublisher {
	return &EventPublisher{sink: sink}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.sink.PublishEvent(ctx, fmt.Sprintf("order-%s", event.OrderID), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.sink.PublishEvent(ctx, fmt.Sprintf("order-%s", event.OrderID), event)
}

// PublishReferralCompleted publishes ReferralCompleted event
func (ep *EventPublisher) PublishReferralCompleted(ctx context.Context, event *models.ReferralCompletedEvent) error {
	return ep.sink.PublishEvent(ctx, fmt.Sprintf("referral-%s", event.ReferralID), event)
}

// PublishWithdrawalUpdated publishes WithdrawalUpdated event
func (ep *EventPublisher) PublishWithdrawalUpdated(ctx context.Context, event *models.WithdrawalEvent) error {
	return ep.sink.PublishEvent(ctx, fmt.Sprintf("withdrawal-%s", event.WithdrawalID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderStatusChanged func(context.Context, *models.OrderStatusChangedEvent) error
	logger               *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderStatusChanged registers a handler for OrderStatusChanged events
func (eh *EventHandler) OnOrderStatusChanged(handler func(context.Context, *models.OrderStatusChangedEvent) error) {
	eh.onOrderStatusChanged = handler
}

// ErrMalformedEvent marks a message that can never be decoded
var ErrMalformedEvent = errors.New("malformed event")

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %v: %w", err, ErrMalformedEvent)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderStatusChanged:
		if eh.onOrderStatusChanged != nil {
			var event models.OrderStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderStatusChanged event: %v: %w", err, ErrMalformedEvent)
			}
			return eh.onOrderStatusChanged(ctx, &event)
		}

	case models.EventTypeOrderPlaced, models.EventTypeReferralCompleted, models.EventTypeWithdrawalUpdated:
		// published for downstream consumers

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
