package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by the services wraps exactly one of these.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrForbidden     = errors.New("forbidden")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
)

// Refined errors; errors.Is matches both the refined error and its kind.
var (
	ErrInsufficientStock   = fmt.Errorf("insufficient stock: %w", ErrInvalidState)
	ErrInvalidTransition   = fmt.Errorf("invalid status transition: %w", ErrInvalidState)
	ErrInsufficientBalance = fmt.Errorf("insufficient balance: %w", ErrInvalidState)
	ErrCouponInactive      = fmt.Errorf("coupon inactive: %w", ErrInvalidState)
	ErrCouponExpired       = fmt.Errorf("coupon expired: %w", ErrInvalidState)
	ErrCouponNotEligible   = fmt.Errorf("coupon not applicable to user: %w", ErrInvalidState)
	ErrMinPurchase         = fmt.Errorf("minimum purchase not met: %w", ErrInvalidState)
	ErrNoPrice             = fmt.Errorf("no price available: %w", ErrInvalidState)
	ErrCouponUsageLimit    = fmt.Errorf("coupon usage limit reached: %w", ErrLimitExceeded)
)
