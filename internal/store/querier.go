package store

import (
	"context"
	"time"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Querier is the set of persistence operations the services rely on.
// The same operations are available on the pooled connection and inside a transaction.
type Querier interface {
	// products
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, color, size string, qty int) (bool, error)
	RestoreStock(ctx context.Context, productID uuid.UUID, color, size string, qty int) error

	// coupons
	CreateCoupon(ctx context.Context, coupon *models.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetCouponByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) (bool, error)

	// orders
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]models.OrderItem, error)
	CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int, error)
	UpdateOrderStatus(ctx context.Context, update models.OrderStatusUpdate) (bool, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)

	// referrals
	CreateReferral(ctx context.Context, referral *models.Referral) error
	GetReferralByInvitee(ctx context.Context, inviteeID uuid.UUID) (*models.Referral, error)
	ListReferralsByInviter(ctx context.Context, inviterID uuid.UUID) ([]models.Referral, error)
	ListHoldExpiredReferrals(ctx context.Context, now time.Time, limit int) ([]models.Referral, error)
	QualifyReferral(ctx context.Context, id, orderID uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error)
	HoldReferral(ctx context.Context, id uuid.UUID, deliveredAt, holdUntil time.Time) (bool, error)
	CompleteReferral(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	CancelReferral(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)

	// ledger
	CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListLedgerEntriesByUser(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error)
	ListPendingLedgerEntriesForUpdate(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error)
	GetLedgerEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error)
	TransitionLedgerEntries(ctx context.Context, ids []uuid.UUID, from, to models.LedgerStatus) (int64, error)
	LedgerBalance(ctx context.Context, userID uuid.UUID) (*models.LedgerBalance, error)

	// withdrawals
	CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListWithdrawalsByUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error)
	UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, from, to models.WithdrawalStatus, referenceID *string) (bool, error)
}

// TxFunc runs inside a transaction. Returning an error rolls every write back.
type TxFunc func(ctx context.Context, q Querier) error

// Repository is a Querier that can also open transactions
type Repository interface {
	Querier
	InTx(ctx context.Context, fn TxFunc) error
}
