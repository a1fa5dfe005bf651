package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Roles carried by an authenticated principal
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal is the authenticated caller supplied by the auth layer
type Principal struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether the principal has the admin role
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Product represents a catalog product with its color variants
type Product struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	Name      string              `db:"name" json:"name"`
	Slug      string              `db:"slug" json:"slug"`
	BasePrice decimal.NullDecimal `db:"base_price" json:"base_price"`
	Discount  decimal.Decimal     `db:"discount" json:"discount"`
	Variants  []Variant           `db:"-" json:"variants"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}

// Variant groups the purchasable sizes of one color
type Variant struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	ProductID uuid.UUID           `db:"product_id" json:"-"`
	Color     string              `db:"color" json:"color"`
	Images    pq.StringArray      `db:"images" json:"images"`
	BasePrice decimal.NullDecimal `db:"base_price" json:"base_price"`
	Position  int                 `db:"position" json:"-"`
	Sizes     []VariantSize       `db:"-" json:"sizes"`
}

// VariantSize holds stock and an optional price override for one size
type VariantSize struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	VariantID uuid.UUID           `db:"variant_id" json:"-"`
	Size      string              `db:"size" json:"size"`
	Stock     int                 `db:"stock" json:"stock"`
	Price     decimal.NullDecimal `db:"price" json:"price"`
	Position  int                 `db:"position" json:"-"`
}

// VariantIndex returns the index of the variant with the given color or -1
func (p *Product) VariantIndex(color string) int {
	for i := range p.Variants {
		if p.Variants[i].Color == color {
			return i
		}
	}
	return -1
}

// SizeIndex returns the index of the size entry or -1
func (v *Variant) SizeIndex(size string) int {
	for i := range v.Sizes {
		if v.Sizes[i].Size == size {
			return i
		}
	}
	return -1
}

// RepresentativeImage picks the first image of the matching variant, falling back to the first variant
func (p *Product) RepresentativeImage(color string) string {
	if i := p.VariantIndex(color); i >= 0 && len(p.Variants[i].Images) > 0 {
		return p.Variants[i].Images[0]
	}
	if len(p.Variants) > 0 && len(p.Variants[0].Images) > 0 {
		return p.Variants[0].Images[0]
	}
	return ""
}

// Address is the delivery address snapshot stored with an order
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Value implements driver.Valuer so the snapshot is persisted as JSONB
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *Address) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Address{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("address: unsupported scan type %T", src)
	}
}

// Order represents a customer order
type Order struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	UserID           uuid.UUID       `db:"user_id" json:"user_id"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount"`
	Discount         decimal.Decimal `db:"discount" json:"discount"`
	DeliveryCharge   decimal.Decimal `db:"delivery_charge" json:"delivery_charge"`
	PaymentMethod    PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaymentStatus    PaymentStatus   `db:"payment_status" json:"payment_status"`
	Status           OrderStatus     `db:"status" json:"status"`
	DeliveryAddress  Address         `db:"delivery_address" json:"delivery_address"`
	CouponID         uuid.NullUUID   `db:"coupon_id" json:"coupon_id,omitempty"`
	OrderNote        *string         `db:"order_note" json:"order_note,omitempty"`
	CancellationDate *time.Time      `db:"cancellation_date" json:"cancellation_date,omitempty"`
	DeliveredAt      *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is a line of an order with the unit price captured at placement
type OrderItem struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	OrderID   uuid.UUID       `db:"order_id" json:"order_id"`
	ProductID uuid.UUID       `db:"product_id" json:"product_id"`
	Color     string          `db:"color" json:"color"`
	Size      string          `db:"size" json:"size"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Position  int             `db:"position" json:"-"`
}

// Subtotal returns price * quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatusUpdate describes a conditional status change
type OrderStatusUpdate struct {
	OrderID uuid.UUID
	From    OrderStatus
	To      OrderStatus
	At      time.Time
}

// OrderFilter narrows order listings
type OrderFilter struct {
	UserID uuid.NullUUID
	Status OrderStatus
	Page   int
	Limit  int
}

// Offset returns the number of rows to skip
func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Coupon is a discount code
type Coupon struct {
	ID              uuid.UUID           `db:"id" json:"id"`
	Code            string              `db:"code" json:"code"`
	Type            CouponType          `db:"type" json:"type"`
	Value           decimal.Decimal     `db:"value" json:"value"`
	MinPurchase     decimal.Decimal     `db:"min_purchase" json:"min_purchase"`
	MaxDiscount     decimal.NullDecimal `db:"max_discount" json:"max_discount"`
	ApplicableUsers CouponAudience      `db:"applicable_users" json:"applicable_users"`
	ExpiryDate      time.Time           `db:"expiry_date" json:"expiry_date"`
	UsageLimit      *int                `db:"usage_limit" json:"usage_limit"`
	UsedCount       int                 `db:"used_count" json:"used_count"`
	Status          CouponStatus        `db:"status" json:"status"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// NormalizeCouponCode upper-cases and trims a coupon code
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Referral tracks one invitee's referral lifecycle
type Referral struct {
	ID                    uuid.UUID           `db:"id" json:"id"`
	InviterID             uuid.UUID           `db:"inviter_id" json:"inviter_id"`
	InviteeID             uuid.UUID           `db:"invitee_id" json:"invitee_id"`
	ReferralCodeUsed      *string             `db:"referral_code_used" json:"referral_code_used,omitempty"`
	RewardAmount          decimal.Decimal     `db:"reward_amount" json:"reward_amount"`
	MinPurchaseRequired   decimal.Decimal     `db:"min_purchase_required" json:"min_purchase_required"`
	QualifyingOrderID     uuid.NullUUID       `db:"qualifying_order_id" json:"qualifying_order_id,omitempty"`
	QualifyingOrderAmount decimal.NullDecimal `db:"qualifying_order_amount" json:"qualifying_order_amount,omitempty"`
	QualifiedAt           *time.Time          `db:"qualified_at" json:"qualified_at,omitempty"`
	DeliveredAt           *time.Time          `db:"delivered_at" json:"delivered_at,omitempty"`
	HoldUntil             *time.Time          `db:"hold_until" json:"hold_until,omitempty"`
	Status                ReferralStatus      `db:"status" json:"status"`
	CancelReason          *string             `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt             time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time           `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is one earnings credit
type LedgerEntry struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	UserID     uuid.UUID       `db:"user_id" json:"user_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	SourceType LedgerSource    `db:"source_type" json:"source_type"`
	SourceID   uuid.UUID       `db:"source_id" json:"source_id"`
	Reason     string          `db:"reason" json:"reason"`
	Status     LedgerStatus    `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// LedgerBalance aggregates a user's ledger by status
type LedgerBalance struct {
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	Withdrawn decimal.Decimal `json:"withdrawn"`
	Reversed  decimal.Decimal `json:"reversed"`
}

// Withdrawal is a payout request backed by locked ledger entries
type Withdrawal struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	UserID      uuid.UUID        `db:"user_id" json:"user_id"`
	Amount      decimal.Decimal  `db:"amount" json:"amount"`
	LedgerIDs   []uuid.UUID      `db:"-" json:"ledger_ids"`
	Method      WithdrawalMethod `db:"method" json:"method"`
	Status      WithdrawalStatus `db:"status" json:"status"`
	ReferenceID *string          `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}
