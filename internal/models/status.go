package models

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPlaced     OrderStatus = "placed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:     {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusReturned},
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment state recorded on an order
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentMethod is how the customer pays for an order
type PaymentMethod string

// Payment methods
const (
	PaymentMethodBank   PaymentMethod = "bank"
	PaymentMethodEsewa  PaymentMethod = "esewa"
	PaymentMethodKhalti PaymentMethod = "khalti"
	PaymentMethodCOD    PaymentMethod = "cod"
)

// Valid reports whether m is an accepted payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBank, PaymentMethodEsewa, PaymentMethodKhalti, PaymentMethodCOD:
		return true
	}
	return false
}

// CouponType selects how a coupon's value is applied
type CouponType string

// Coupon types
const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

// CouponAudience restricts who may redeem a coupon
type CouponAudience string

// Coupon audiences
const (
	CouponAudienceAll       CouponAudience = "all"
	CouponAudienceFirstTime CouponAudience = "firstTime"
	CouponAudienceReferred  CouponAudience = "referred"
)

// CouponStatus toggles a coupon on or off
type CouponStatus string

// Coupon statuses
const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusInactive CouponStatus = "inactive"
)

// ReferralStatus is the lifecycle state of a referral
type ReferralStatus string

// Referral statuses
const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusQualified ReferralStatus = "qualified"
	ReferralStatusHolding   ReferralStatus = "holding"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusCancelled ReferralStatus = "cancelled"
)

// Terminal reports whether the referral can no longer change
func (s ReferralStatus) Terminal() bool {
	return s == ReferralStatusCompleted || s == ReferralStatusCancelled
}

// NonTerminalReferralStatuses lists the states cancellation may leave from
var NonTerminalReferralStatuses = []ReferralStatus{
	ReferralStatusPending,
	ReferralStatusQualified,
	ReferralStatusHolding,
}

// LedgerSource identifies what produced a ledger credit
type LedgerSource string

// Ledger sources
const (
	LedgerSourceReferral    LedgerSource = "referral"
	LedgerSourceAds         LedgerSource = "ads"
	LedgerSourceSpin        LedgerSource = "spin"
	LedgerSourceCompetition LedgerSource = "competition"
)

// LedgerStatus is the state of a ledger entry
type LedgerStatus string

// Ledger statuses
const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusLocked    LedgerStatus = "locked"
	LedgerStatusWithdrawn LedgerStatus = "withdrawn"
	LedgerStatusReversed  LedgerStatus = "reversed"
)

// WithdrawalMethod is the payout channel
type WithdrawalMethod string

// Withdrawal methods
const (
	WithdrawalMethodBank   WithdrawalMethod = "bank"
	WithdrawalMethodEsewa  WithdrawalMethod = "esewa"
	WithdrawalMethodKhalti WithdrawalMethod = "khalti"
)

// Valid reports whether m is an accepted payout channel
func (m WithdrawalMethod) Valid() bool {
	switch m {
	case WithdrawalMethodBank, WithdrawalMethodEsewa, WithdrawalMethodKhalti:
		return true
	}
	return false
}

// WithdrawalStatus is the state of a withdrawal
type WithdrawalStatus string

// Withdrawal statuses
const (
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusSuccessful WithdrawalStatus = "successful"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
)
