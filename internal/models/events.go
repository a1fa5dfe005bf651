package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeReferralCompleted  = "REFERRAL_COMPLETED"
	EventTypeWithdrawalUpdated  = "WITHDRAWAL_UPDATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event id and time
func NewBaseEvent(eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: at,
	}
}

// OrderPlacedEvent published after an order commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CouponID    uuid.NullUUID   `json:"coupon_id"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published after any status transition commits
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID        uuid.UUID   `json:"order_id"`
	UserID         uuid.UUID   `json:"user_id"`
	PreviousStatus OrderStatus `json:"previous_status"`
	Status         OrderStatus `json:"status"`
}

// ReferralCompletedEvent published when a referral reward lands in the ledger
type ReferralCompletedEvent struct {
	BaseEvent
	ReferralID    uuid.UUID       `json:"referral_id"`
	InviterID     uuid.UUID       `json:"inviter_id"`
	InviteeID     uuid.UUID       `json:"invitee_id"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// WithdrawalEvent published when a withdrawal is requested or settled
type WithdrawalEvent struct {
	BaseEvent
	WithdrawalID uuid.UUID        `json:"withdrawal_id"`
	UserID       uuid.UUID        `json:"user_id"`
	Amount       decimal.Decimal  `json:"amount"`
	Status       WithdrawalStatus `json:"status"`
	ReferenceID  *string          `json:"reference_id,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID uuid.UUID       `json:"product_id"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
