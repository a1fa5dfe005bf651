package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	asyncTimeout     = 5 * time.Second
)

// OrderService handles order business logic: placement, cancellation and status transitions
type OrderService struct {
	repo           store.Repository
	inventory      *Inventory
	coupons        *CouponGuard
	delivery       *DeliveryCalculator
	referrals      *ReferralService
	publisher      EventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	runAsync       func(fn func(ctx context.Context))
	now            func() time.Time
	logger         *zap.Logger
}

// NewOrderService creates a new order service. idempotency may be nil, in which case
// Idempotency-Key headers are ignored.
func NewOrderService(
	repo store.Repository,
	inventory *Inventory,
	coupons *CouponGuard,
	delivery *DeliveryCalculator,
	referrals *ReferralService,
	publisher EventPublisher,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
) *OrderService {
	if publisher == nil {
		publisher = NopPublisher
	}
	return &OrderService{
		repo:           repo,
		inventory:      inventory,
		coupons:        coupons,
		delivery:       delivery,
		referrals:      referrals,
		publisher:      publisher,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		runAsync:       detached,
		now:            time.Now,
		logger:         util.GetLogger(),
	}
}

// detached runs fn in its own goroutine with a fresh bounded context,
// so it outlives the request that triggered it.
func detached(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	UserID          uuid.UUID            `json:"-"`
	Items           []OrderItemRequest   `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" binding:"required"`
	DeliveryAddress models.Address       `json:"delivery_address"`
	OrderNote       *string              `json:"order_note,omitempty"`
	CouponCode      string               `json:"coupon_code,omitempty"`
	IdempotencyKey  string               `json:"-"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Color     string    `json:"color" binding:"required"`
	Size      string    `json:"size" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// OrderItemView is an item snapshot formatted for responses
type OrderItemView struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image,omitempty"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderTotals is the price breakdown of an order
type OrderTotals struct {
	ItemsTotal     decimal.Decimal `json:"items_total"`
	Discount       decimal.Decimal `json:"discount"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// PaymentInfo is the payment part of an order summary
type PaymentInfo struct {
	Method models.PaymentMethod `json:"method"`
	Status models.PaymentStatus `json:"status"`
}

// OrderSummary is the response shape of an order
type OrderSummary struct {
	ID               uuid.UUID          `json:"id"`
	UserID           uuid.UUID          `json:"user_id"`
	Status           models.OrderStatus `json:"status"`
	Items            []OrderItemView    `json:"items"`
	Totals           OrderTotals        `json:"totals"`
	Payment          PaymentInfo        `json:"payment"`
	DeliveryAddress  models.Address     `json:"delivery_address"`
	CouponID         uuid.NullUUID      `json:"coupon_id"`
	OrderNote        *string            `json:"order_note,omitempty"`
	CancellationDate *time.Time         `json:"cancellation_date,omitempty"`
	DeliveredAt      *time.Time         `json:"delivered_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// OrderPage is one page of order summaries
type OrderPage struct {
	Orders []OrderSummary `json:"orders"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
	Total  int            `json:"total"`
	Pages  int            `json:"pages"`
}

// PlaceOrder validates the coupon, prices every item and decrements its stock, then creates the order.
// All of it commits together or not at all. Referral qualification runs afterwards and never fails the order.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (summary *OrderSummary, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder",
		attribute.String("user.id", req.UserID.String()),
		attribute.Int("order.items", len(req.Items)))
	defer span.End()

	if err := validatePlaceOrder(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	if key := s.idempotencyKey(req); key != "" {
		claimed, value, claimErr := s.idempotency.Claim(ctx, key, s.idempotencyTTL)
		switch {
		case claimErr != nil:
			s.logger.Warn("Idempotency claim failed, placing order without it",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(claimErr))
		case !claimed:
			return s.replay(ctx, req, value)
		default:
			defer func() { s.settleIdempotency(key, summary, err) }()
		}
	}

	start := time.Now()
	order, items, products, err := s.placeOrderTx(ctx, req)
	util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		util.RecordError(span, err)
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))

	s.publishOrderPlaced(ctx, order, items)

	placed := *order
	s.runAsync(func(ctx context.Context) {
		s.qualifyReferral(ctx, &placed)
	})

	return summarize(order, items, products), nil
}

func (s *OrderService) placeOrderTx(ctx context.Context, req *PlaceOrderRequest) (*models.Order, []models.OrderItem, map[uuid.UUID]*models.Product, error) {
	var (
		order    *models.Order
		items    []models.OrderItem
		products map[uuid.UUID]*models.Product
	)

	err := s.repo.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		var coupon *models.Coupon
		if code := strings.TrimSpace(req.CouponCode); code != "" {
			c, err := s.coupons.ValidateAndConsume(ctx, q, code, req.UserID)
			if err != nil {
				return err
			}
			coupon = c
		}

		orderID := uuid.New()
		products = make(map[uuid.UUID]*models.Product, len(req.Items))
		items = make([]models.OrderItem, 0, len(req.Items))
		itemsTotal := decimal.Zero

		// sequential on purpose: a stock failure names the exact item and stops early
		for i, it := range req.Items {
			product, ok := products[it.ProductID]
			if !ok {
				p, err := q.GetProductByID(ctx, it.ProductID)
				if err != nil {
					return fmt.Errorf("item %d: %w", i+1, err)
				}
				product = p
				products[it.ProductID] = product
			}

			price, err := ResolveUnitPrice(product, it.Color, it.Size)
			if err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}

			if err := s.inventory.Decrement(ctx, q, it.ProductID, it.Color, it.Size, it.Quantity); err != nil {
				return err
			}

			item := models.OrderItem{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: it.ProductID,
				Color:     it.Color,
				Size:      it.Size,
				Quantity:  it.Quantity,
				Price:     price,
				Position:  i,
			}
			itemsTotal = itemsTotal.Add(item.Subtotal())
			items = append(items, item)
		}

		var couponID uuid.NullUUID
		if coupon != nil {
			if err := CheckMinPurchase(coupon, itemsTotal); err != nil {
				return err
			}
			couponID = uuid.NullUUID{UUID: coupon.ID, Valid: true}
		}

		discount := Discount(coupon, itemsTotal)
		deliveryCharge := s.delivery.Calculate(req.DeliveryAddress)

		order = &models.Order{
			ID:              orderID,
			UserID:          req.UserID,
			TotalAmount:     OrderTotal(itemsTotal, discount, deliveryCharge),
			Discount:        discount,
			DeliveryCharge:  deliveryCharge,
			PaymentMethod:   req.PaymentMethod,
			PaymentStatus:   models.PaymentStatusPending,
			Status:          models.OrderStatusPlaced,
			DeliveryAddress: req.DeliveryAddress,
			CouponID:        couponID,
			OrderNote:       req.OrderNote,
		}
		if err := q.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for i := range items {
			if err := q.CreateOrderItem(ctx, &items[i]); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return order, items, products, nil
}

// PreviewCoupon shows what code would take off a cart of itemsTotal for userID
func (s *OrderService) PreviewCoupon(ctx context.Context, code string, userID uuid.UUID, itemsTotal decimal.Decimal) (*CouponPreview, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("coupon code is required: %w", models.ErrInvalidInput)
	}
	if itemsTotal.IsNegative() {
		return nil, fmt.Errorf("items total must not be negative: %w", models.ErrInvalidInput)
	}
	return s.coupons.Preview(ctx, s.repo, code, userID, itemsTotal)
}

// OrderTotal is itemsTotal - discount + deliveryCharge, floored at zero
func OrderTotal(itemsTotal, discount, deliveryCharge decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, itemsTotal.Sub(discount).Add(deliveryCharge))
}

func validatePlaceOrder(req *PlaceOrderRequest) error {
	if req.UserID == uuid.Nil {
		return fmt.Errorf("missing user: %w", models.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("order has no items: %w", models.ErrInvalidInput)
	}
	for i, it := range req.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("item %d: quantity must be at least 1: %w", i+1, models.ErrInvalidInput)
		}
		if it.ProductID == uuid.Nil || it.Color == "" || it.Size == "" {
			return fmt.Errorf("item %d: product, color and size are required: %w", i+1, models.ErrInvalidInput)
		}
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("unknown payment method %q: %w", req.PaymentMethod, models.ErrInvalidInput)
	}
	a := req.DeliveryAddress
	if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Phone) == "" || strings.TrimSpace(a.Address) == "" {
		return fmt.Errorf("delivery address needs name, phone and address: %w", models.ErrInvalidInput)
	}
	return nil
}

func (s *OrderService) idempotencyKey(req *PlaceOrderRequest) string {
	if s.idempotency == nil || req.IdempotencyKey == "" {
		return ""
	}
	return fmt.Sprintf("idempotency:order:%s:%s", req.UserID, req.IdempotencyKey)
}

// replay answers a repeated Idempotency-Key with the order the first request created
func (s *OrderService) replay(ctx context.Context, req *PlaceOrderRequest, value string) (*OrderSummary, error) {
	if value == "" {
		return nil, fmt.Errorf("request with idempotency key %q is still in progress: %w", req.IdempotencyKey, models.ErrConflict)
	}

	orderID, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("corrupt idempotency record %q: %w", value, err)
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.String("order_id", orderID.String()))
	return s.GetOrder(ctx, orderID, models.Principal{UserID: req.UserID, Role: models.RoleUser})
}

func (s *OrderService) settleIdempotency(key string, summary *OrderSummary, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
	defer cancel()

	if err != nil || summary == nil {
		if rerr := s.idempotency.Release(ctx, key); rerr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(rerr))
		}
		return
	}
	if cerr := s.idempotency.Complete(ctx, key, summary.ID.String(), s.idempotencyTTL); cerr != nil {
		s.logger.Warn("Failed to record idempotency key", zap.String("key", key), zap.Error(cerr))
	}
}

func (s *OrderService) qualifyReferral(ctx context.Context, order *models.Order) {
	if s.referrals == nil {
		return
	}

	_, err := s.referrals.QualifyReferral(ctx, order.UserID, order.ID, order.TotalAmount)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		s.logger.Debug("No referral to qualify", zap.String("user_id", order.UserID.String()))
	default:
		s.logger.Warn("Referral qualification skipped",
			zap.String("order_id", order.ID.String()),
			zap.String("user_id", order.UserID.String()),
			zap.Error(err))
	}
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order, items []models.OrderItem) {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeOrderPlaced, s.now()),
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		CouponID:    order.CouponID,
		Items:       data,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

// CancelOrder cancels an order on behalf of its owner or an admin and returns its stock
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, principal models.Principal) (*OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	return s.transition(ctx, orderID, models.OrderStatusCancelled, func(order *models.Order) error {
		if order.UserID != principal.UserID && !principal.IsAdmin() {
			return fmt.Errorf("order %s belongs to another user: %w", orderID, models.ErrForbidden)
		}
		return nil
	})
}

// UpdateOrderStatus moves an order along the status table
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	if !next.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", next, models.ErrInvalidInput)
	}
	return s.transition(ctx, orderID, next, nil)
}

// MarkDelivered sets a shipped order to delivered. The delivery commit stands on its own:
// the referral hold that follows is logged on failure, never rolled into it.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.MarkDelivered")
	defer span.End()

	return s.transition(ctx, orderID, models.OrderStatusDelivered, nil)
}

// transition applies one status change in a transaction. Cancellation returns the stock.
// authorize, if set, runs against the locked order before anything changes.
func (s *OrderService) transition(ctx context.Context, orderID uuid.UUID, next models.OrderStatus, authorize func(*models.Order) error) (*OrderSummary, error) {
	var (
		order *models.Order
		items []models.OrderItem
		prev  models.OrderStatus
	)
	at := s.now()

	err := s.repo.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		o, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(o); err != nil {
				return err
			}
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("order %s cannot go from %s to %s: %w", orderID, o.Status, next, models.ErrInvalidTransition)
		}

		items, err = q.GetOrderItemsByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if next == models.OrderStatusCancelled {
			if err := s.inventory.RestoreItems(ctx, q, items); err != nil {
				return err
			}
		}

		ok, err := q.UpdateOrderStatus(ctx, models.OrderStatusUpdate{OrderID: orderID, From: o.Status, To: next, At: at})
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if !ok {
			return fmt.Errorf("order %s changed concurrently: %w", orderID, models.ErrConflict)
		}

		prev = o.Status
		order, err = q.GetOrderByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(string(next)).Inc()
	s.logger.Info("Order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:      models.NewBaseEvent(models.EventTypeOrderStatusChanged, at),
		OrderID:        order.ID,
		UserID:         order.UserID,
		PreviousStatus: prev,
		Status:         next,
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	if next == models.OrderStatusDelivered {
		s.holdReferral(ctx, order)
	}

	return s.summarizeOne(ctx, order, items)
}

func (s *OrderService) holdReferral(ctx context.Context, order *models.Order) {
	if s.referrals == nil || order.DeliveredAt == nil {
		return
	}

	_, err := s.referrals.HoldReferral(ctx, order.UserID, order.ID, *order.DeliveredAt)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("Failed to start referral hold after delivery",
			zap.String("order_id", order.ID.String()),
			zap.String("user_id", order.UserID.String()),
			zap.Error(err))
	}
}

// GetOrder returns one order to its owner or an admin
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, principal models.Principal) (*OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != principal.UserID && !principal.IsAdmin() {
		return nil, fmt.Errorf("order %s belongs to another user: %w", orderID, models.ErrForbidden)
	}

	items, err := s.repo.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.summarizeOne(ctx, order, items)
}

// GetMyOrders lists the user's orders, newest first
func (s *OrderService) GetMyOrders(ctx context.Context, userID uuid.UUID, status models.OrderStatus, page, limit int) (*OrderPage, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetMyOrders")
	defer span.End()

	return s.listOrders(ctx, models.OrderFilter{
		UserID: uuid.NullUUID{UUID: userID, Valid: true},
		Status: status,
		Page:   page,
		Limit:  limit,
	})
}

// GetAllOrders lists every order, newest first, optionally filtered by user and status
func (s *OrderService) GetAllOrders(ctx context.Context, filter models.OrderFilter) (*OrderPage, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetAllOrders")
	defer span.End()

	return s.listOrders(ctx, filter)
}

func (s *OrderService) listOrders(ctx context.Context, filter models.OrderFilter) (*OrderPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", filter.Status, models.ErrInvalidInput)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}

	summaries, err := s.summarizeMany(ctx, orders)
	if err != nil {
		return nil, err
	}

	return &OrderPage{
		Orders: summaries,
		Page:   filter.Page,
		Limit:  filter.Limit,
		Total:  total,
		Pages:  (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (s *OrderService) summarizeOne(ctx context.Context, order *models.Order, items []models.OrderItem) (*OrderSummary, error) {
	products, err := s.loadProducts(ctx, items)
	if err != nil {
		return nil, err
	}
	return summarize(order, items, products), nil
}

func (s *OrderService) summarizeMany(ctx context.Context, orders []models.Order) ([]OrderSummary, error) {
	summaries := make([]OrderSummary, 0, len(orders))
	if len(orders) == 0 {
		return summaries, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := s.repo.GetOrderItemsByOrderIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	products, err := s.loadProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[uuid.UUID][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		summaries = append(summaries, *summarize(&orders[i], byOrder[orders[i].ID], products))
	}
	return summaries, nil
}

func (s *OrderService) loadProducts(ctx context.Context, items []models.OrderItem) (map[uuid.UUID]*models.Product, error) {
	seen := make(map[uuid.UUID]bool, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	list, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	products := make(map[uuid.UUID]*models.Product, len(list))
	for i := range list {
		products[list[i].ID] = &list[i]
	}
	return products, nil
}

// summarize formats an order with its item snapshots. Prices come from the items, never the catalog.
func summarize(order *models.Order, items []models.OrderItem, products map[uuid.UUID]*models.Product) *OrderSummary {
	views := make([]OrderItemView, 0, len(items))
	itemsTotal := decimal.Zero
	for _, item := range items {
		view := OrderItemView{
			ProductID: item.ProductID,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Subtotal:  item.Subtotal(),
		}
		if p, ok := products[item.ProductID]; ok {
			view.Name = p.Name
			view.Slug = p.Slug
			view.Image = p.RepresentativeImage(item.Color)
		}
		itemsTotal = itemsTotal.Add(view.Subtotal)
		views = append(views, view)
	}

	return &OrderSummary{
		ID:     order.ID,
		UserID: order.UserID,
		Status: order.Status,
		Items:  views,
		Totals: OrderTotals{
			ItemsTotal:     itemsTotal,
			Discount:       order.Discount,
			DeliveryCharge: order.DeliveryCharge,
			TotalAmount:    order.TotalAmount,
		},
		Payment: PaymentInfo{
			Method: order.PaymentMethod,
			Status: order.PaymentStatus,
		},
		DeliveryAddress:  order.DeliveryAddress,
		CouponID:         order.CouponID,
		OrderNote:        order.OrderNote,
		CancellationDate: order.CancellationDate,
		DeliveredAt:      order.DeliveredAt,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrLimitExceeded):
		return "coupon_limit"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
