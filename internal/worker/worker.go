package worker

import (
	"context"
	"fmt"

	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// NewReferralEventHandler routes order status changes to the referral state machine:
// cancelling or returning the order that qualified a referral cancels the referral.
func NewReferralEventHandler(referrals *service.ReferralService) *broker.EventHandler {
	handler := broker.NewEventHandler()
	handler.OnOrderStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		switch e.Status {
		case models.OrderStatusCancelled, models.OrderStatusReturned:
			return referrals.CancelReferralForOrder(ctx, e.UserID, e.OrderID, fmt.Sprintf("qualifying order %s", e.Status))
		}
		return nil
	})
	return handler
}

// ReferralWorker consumes order events for the referral state machine
type ReferralWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewReferralWorker creates a new referral worker
func NewReferralWorker(consumer *broker.Consumer, referrals *service.ReferralService) *ReferralWorker {
	return &ReferralWorker{
		consumer:     consumer,
		eventHandler: NewReferralEventHandler(referrals),
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *ReferralWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting referral worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReferralWorker) Stop() error {
	w.logger.Info("Stopping referral worker")
	return w.consumer.Close()
}
