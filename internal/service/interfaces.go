package service

import (
	"context"
	"time"

	"shop-service/internal/models"
)

// EventPublisher publishes domain events after their transaction commits.
// Publishing is best-effort; callers log failures and move on.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishReferralCompleted(ctx context.Context, event *models.ReferralCompletedEvent) error
	PublishWithdrawalUpdated(ctx context.Context, event *models.WithdrawalEvent) error
}

// IdempotencyStore remembers which order an Idempotency-Key produced.
// Claim reports claimed=false together with the stored value when the key was already taken;
// an empty value means the first request is still in flight.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (claimed bool, value string, err error)
	Complete(ctx context.Context, key, value string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error { return nil }
func (nopPublisher) PublishOrderStatusChanged(context.Context, *models.OrderStatusChangedEvent) error {
	return nil
}
func (nopPublisher) PublishReferralCompleted(context.Context, *models.ReferralCompletedEvent) error {
	return nil
}
func (nopPublisher) PublishWithdrawalUpdated(context.Context, *models.WithdrawalEvent) error {
	return nil
}

// NopPublisher discards every event; used when Kafka is disabled
var NopPublisher EventPublisher = nopPublisher{}
