package store

import (
	"context"
	"fmt"
	"strings"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, user_id, total_amount, discount, delivery_charge, payment_method,
	payment_status, status, delivery_address, coupon_id, order_note, cancellation_date,
	delivered_at, created_at, updated_at`

// CreateOrder creates a new order
func (q *Queries) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	query := `
		INSERT INTO orders (id, user_id, total_amount, discount, delivery_charge, payment_method,
			payment_status, status, delivery_address, coupon_id, order_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	row := q.db.QueryRowxContext(ctx, query,
		order.ID, order.UserID, order.TotalAmount, order.Discount, order.DeliveryCharge,
		order.PaymentMethod, order.PaymentStatus, order.Status, order.DeliveryAddress,
		order.CouponID, order.OrderNote)
	if err := row.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return convertErr(err, "create order %s", order.ID)
	}
	return nil
}

// CreateOrderItem creates a new order item
func (q *Queries) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, color, size, quantity, price, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.OrderID, item.ProductID, item.Color, item.Size, item.Quantity, item.Price, item.Position)
	return convertErr(err, "create order item for %s", item.OrderID)
}

// GetOrderByID retrieves an order by ID
func (q *Queries) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q.db, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, convertErr(err, "order %s", id)
	}
	return &order, nil
}

// GetOrderForUpdate retrieves an order and locks its row until the transaction ends
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q.db, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, convertErr(err, "order %s", id)
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order in placement order
func (q *Queries) GetOrderItemsByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := sqlx.SelectContext(ctx, q.db, &items, `
		SELECT id, order_id, product_id, color, size, quantity, price, position
		FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, convertErr(err, "items of order %s", orderID)
	}
	return items, nil
}

// GetOrderItemsByOrderIDs retrieves the items of several orders at once
func (q *Queries) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []models.OrderItem{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, order_id, product_id, color, size, quantity, price, position
		FROM order_items WHERE order_id IN (?) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}

	var items []models.OrderItem
	if err := sqlx.SelectContext(ctx, q.db, &items, q.db.Rebind(query), args...); err != nil {
		return nil, convertErr(err, "items of orders")
	}
	return items, nil
}

// CountOrdersByUser counts every order the user ever placed, whatever its status
func (q *Queries) CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q.db, &count, "SELECT COUNT(*) FROM orders WHERE user_id = $1", userID)
	if err != nil {
		return 0, convertErr(err, "count orders of %s", userID)
	}
	return count, nil
}

// UpdateOrderStatus moves an order from one status to another. The update only
// applies while the row is still in the expected status.
func (q *Queries) UpdateOrderStatus(ctx context.Context, update models.OrderStatusUpdate) (bool, error) {
	query := `
		UPDATE orders SET
			status = $3,
			cancellation_date = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancellation_date END,
			delivered_at = CASE WHEN $3 = 'delivered' THEN $4 ELSE delivered_at END,
			updated_at = $4
		WHERE id = $1 AND status = $2`

	res, err := q.db.ExecContext(ctx, query, update.OrderID, update.From, update.To, update.At)
	if err != nil {
		return false, convertErr(err, "update order %s status", update.OrderID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update order status rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListOrders returns one page of orders, newest first, and the total matching count
func (q *Queries) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.UserID.Valid {
		args = append(args, filter.UserID.UUID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := sqlx.GetContext(ctx, q.db, &total, "SELECT COUNT(*) FROM orders"+where, args...); err != nil {
		return nil, 0, convertErr(err, "count orders")
	}

	args = append(args, filter.Limit, filter.Offset())
	query := fmt.Sprintf("SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		orderColumns, where, len(args)-1, len(args))

	orders := []models.Order{}
	if err := sqlx.SelectContext(ctx, q.db, &orders, query, args...); err != nil {
		return nil, 0, convertErr(err, "list orders")
	}
	return orders, total, nil
}
