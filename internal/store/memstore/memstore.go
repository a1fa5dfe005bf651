// Package memstore is an in-memory store.Repository. Transactions are
// serialized behind one mutex and roll back by restoring a snapshot, which
// makes it usable both for tests and for running the service without Postgres.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"

	"github.com/google/uuid"
)

// Store is the in-memory Repository
type Store struct {
	*queries

	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ store.Repository = (*Store)(nil)

type state struct {
	seq         int64
	products    map[uuid.UUID]models.Product
	coupons     map[uuid.UUID]models.Coupon
	orders      map[uuid.UUID]models.Order
	orderSeq    map[uuid.UUID]int64
	items       map[uuid.UUID][]models.OrderItem
	referrals   map[uuid.UUID]models.Referral
	referralSeq map[uuid.UUID]int64
	ledger      map[uuid.UUID]models.LedgerEntry
	ledgerSeq   map[uuid.UUID]int64
	withdrawals map[uuid.UUID]models.Withdrawal
	withdrawSeq map[uuid.UUID]int64
}

func newState() *state {
	return &state{
		products:    map[uuid.UUID]models.Product{},
		coupons:     map[uuid.UUID]models.Coupon{},
		orders:      map[uuid.UUID]models.Order{},
		orderSeq:    map[uuid.UUID]int64{},
		items:       map[uuid.UUID][]models.OrderItem{},
		referrals:   map[uuid.UUID]models.Referral{},
		referralSeq: map[uuid.UUID]int64{},
		ledger:      map[uuid.UUID]models.LedgerEntry{},
		ledgerSeq:   map[uuid.UUID]int64{},
		withdrawals: map[uuid.UUID]models.Withdrawal{},
		withdrawSeq: map[uuid.UUID]int64{},
	}
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.products {
		c.products[k] = cloneProduct(v)
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderSeq {
		c.orderSeq[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]models.OrderItem(nil), v...)
	}
	for k, v := range s.referrals {
		c.referrals[k] = v
	}
	for k, v := range s.referralSeq {
		c.referralSeq[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = v
	}
	for k, v := range s.ledgerSeq {
		c.ledgerSeq[k] = v
	}
	for k, v := range s.withdrawals {
		v.LedgerIDs = append([]uuid.UUID(nil), v.LedgerIDs...)
		c.withdrawals[k] = v
	}
	for k, v := range s.withdrawSeq {
		c.withdrawSeq[k] = v
	}
	return c
}

func cloneProduct(p models.Product) models.Product {
	variants := make([]models.Variant, len(p.Variants))
	for i, v := range p.Variants {
		v.Images = append([]string(nil), v.Images...)
		v.Sizes = append([]models.VariantSize(nil), v.Sizes...)
		variants[i] = v
	}
	p.Variants = variants
	return p
}

// New creates an empty store
func New() *Store {
	s := &Store{state: newState(), now: time.Now}
	s.queries = &queries{s: s}
	return s
}

// InTx runs fn with exclusive access to the store. If fn fails every write it made is discarded.
func (s *Store) InTx(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, &queries{s: s, inTx: true}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

// queries implements store.Querier. Outside a transaction every call takes the store lock itself.
type queries struct {
	s    *Store
	inTx bool
}

func (q *queries) lock() func() {
	if q.inTx {
		return func() {}
	}
	q.s.mu.Lock()
	return q.s.mu.Unlock
}

func (q *queries) st() *state {
	return q.s.state
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), models.ErrNotFound)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), models.ErrConflict)
}

// byNewest sorts ids by descending insertion sequence
func byNewest(ids []uuid.UUID, seq map[uuid.UUID]int64) {
	sort.Slice(ids, func(i, j int) bool { return seq[ids[i]] > seq[ids[j]] })
}

// byOldest sorts ids by ascending insertion sequence
func byOldest(ids []uuid.UUID, seq map[uuid.UUID]int64) {
	sort.Slice(ids, func(i, j int) bool { return seq[ids[i]] < seq[ids[j]] })
}

// products

func (q *queries) CreateProduct(ctx context.Context, product *models.Product) error {
	defer q.lock()()
	st := q.st()

	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	for _, p := range st.products {
		if p.Slug == product.Slug {
			return conflict("create product %s", product.Slug)
		}
	}

	for vi := range product.Variants {
		v := &product.Variants[vi]
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		v.ProductID = product.ID
		v.Position = vi
		for si := range v.Sizes {
			sz := &v.Sizes[si]
			if sz.ID == uuid.Nil {
				sz.ID = uuid.New()
			}
			sz.VariantID = v.ID
			sz.Position = si
		}
	}

	now := q.s.now()
	product.CreatedAt, product.UpdatedAt = now, now
	st.products[product.ID] = cloneProduct(*product)
	return nil
}

func (q *queries) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	defer q.lock()()

	p, ok := q.st().products[id]
	if !ok {
		return nil, notFound("product %s", id)
	}
	p = cloneProduct(p)
	return &p, nil
}

func (q *queries) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	defer q.lock()()

	products := []models.Product{}
	for _, id := range ids {
		if p, ok := q.st().products[id]; ok {
			products = append(products, cloneProduct(p))
		}
	}
	return products, nil
}

func (q *queries) findSize(productID uuid.UUID, color, size string) (*models.Product, *models.VariantSize) {
	p, ok := q.st().products[productID]
	if !ok {
		return nil, nil
	}
	vi := p.VariantIndex(color)
	if vi < 0 {
		return nil, nil
	}
	si := p.Variants[vi].SizeIndex(size)
	if si < 0 {
		return nil, nil
	}
	return &p, &p.Variants[vi].Sizes[si]
}

func (q *queries) DecrementStock(ctx context.Context, productID uuid.UUID, color, size string, qty int) (bool, error) {
	defer q.lock()()

	p, sz := q.findSize(productID, color, size)
	if sz == nil || sz.Stock < qty {
		return false, nil
	}
	sz.Stock -= qty
	q.st().products[productID] = *p
	return true, nil
}

func (q *queries) RestoreStock(ctx context.Context, productID uuid.UUID, color, size string, qty int) error {
	defer q.lock()()

	p, sz := q.findSize(productID, color, size)
	if sz == nil {
		return nil
	}
	sz.Stock += qty
	q.st().products[productID] = *p
	return nil
}

// coupons

func (q *queries) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	defer q.lock()()
	st := q.st()

	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	coupon.Code = models.NormalizeCouponCode(coupon.Code)
	if coupon.ApplicableUsers == "" {
		coupon.ApplicableUsers = models.CouponAudienceAll
	}
	if coupon.Status == "" {
		coupon.Status = models.CouponStatusActive
	}
	for _, c := range st.coupons {
		if c.Code == coupon.Code {
			return conflict("create coupon %s", coupon.Code)
		}
	}

	now := q.s.now()
	coupon.CreatedAt, coupon.UpdatedAt = now, now
	st.coupons[coupon.ID] = *coupon
	return nil
}

func (q *queries) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	defer q.lock()()

	code = models.NormalizeCouponCode(code)
	for _, c := range q.st().coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, notFound("coupon %s", code)
}

func (q *queries) GetCouponByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	return q.GetCouponByCode(ctx, code)
}

func (q *queries) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) (bool, error) {
	defer q.lock()()
	st := q.st()

	c, ok := st.coupons[couponID]
	if !ok {
		return false, nil
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false, nil
	}
	c.UsedCount++
	c.UpdatedAt = q.s.now()
	st.coupons[couponID] = c
	return true, nil
}

// orders

func (q *queries) CreateOrder(ctx context.Context, order *models.Order) error {
	defer q.lock()()
	st := q.st()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if _, exists := st.orders[order.ID]; exists {
		return conflict("create order %s", order.ID)
	}

	now := q.s.now()
	order.CreatedAt, order.UpdatedAt = now, now
	st.orders[order.ID] = *order
	st.orderSeq[order.ID] = st.next()
	return nil
}

func (q *queries) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	defer q.lock()()
	st := q.st()

	if _, ok := st.orders[item.OrderID]; !ok {
		return notFound("order %s", item.OrderID)
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	st.items[item.OrderID] = append(st.items[item.OrderID], *item)
	return nil
}

func (q *queries) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	defer q.lock()()

	o, ok := q.st().orders[id]
	if !ok {
		return nil, notFound("order %s", id)
	}
	return &o, nil
}

func (q *queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return q.GetOrderByID(ctx, id)
}

func (q *queries) GetOrderItemsByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	defer q.lock()()

	items := append([]models.OrderItem{}, q.st().items[orderID]...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func (q *queries) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]models.OrderItem, error) {
	defer q.lock()()

	items := []models.OrderItem{}
	for _, id := range orderIDs {
		orderItems := append([]models.OrderItem{}, q.st().items[id]...)
		sort.SliceStable(orderItems, func(i, j int) bool { return orderItems[i].Position < orderItems[j].Position })
		items = append(items, orderItems...)
	}
	return items, nil
}

func (q *queries) CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	defer q.lock()()

	count := 0
	for _, o := range q.st().orders {
		if o.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (q *queries) UpdateOrderStatus(ctx context.Context, update models.OrderStatusUpdate) (bool, error) {
	defer q.lock()()
	st := q.st()

	o, ok := st.orders[update.OrderID]
	if !ok || o.Status != update.From {
		return false, nil
	}

	o.Status = update.To
	switch update.To {
	case models.OrderStatusCancelled:
		at := update.At
		o.CancellationDate = &at
	case models.OrderStatusDelivered:
		at := update.At
		o.DeliveredAt = &at
	}
	o.UpdatedAt = update.At
	st.orders[update.OrderID] = o
	return true, nil
}

func (q *queries) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	defer q.lock()()
	st := q.st()

	var ids []uuid.UUID
	for id, o := range st.orders {
		if filter.UserID.Valid && o.UserID != filter.UserID.UUID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		ids = append(ids, id)
	}
	byNewest(ids, st.orderSeq)

	total := len(ids)
	orders := []models.Order{}
	for i := filter.Offset(); i < total && len(orders) < filter.Limit; i++ {
		if i < 0 {
			continue
		}
		orders = append(orders, st.orders[ids[i]])
	}
	return orders, total, nil
}
