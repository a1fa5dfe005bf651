package service

import (
	"context"
	"fmt"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Inventory handles stock operations. Every mutation goes through the store's
// conditional update, so it is safe against concurrent orders for the same size.
type Inventory struct {
	logger *zap.Logger
}

// NewInventory creates a new inventory
func NewInventory() *Inventory {
	return &Inventory{
		logger: util.GetLogger(),
	}
}

// Decrement takes qty units of (color, size) inside the caller's transaction.
// It fails with ErrInsufficientStock when the size is unknown or short.
func (inv *Inventory) Decrement(ctx context.Context, q store.Querier, productID uuid.UUID, color, size string, qty int) error {
	ctx, span := util.StartSpan(ctx, "Inventory.Decrement")
	defer span.End()

	ok, err := q.DecrementStock(ctx, productID, color, size, qty)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if !ok {
		util.StockDecrementsFailed.Inc()
		return fmt.Errorf("product %s color %q size %q: %w", productID, color, size, models.ErrInsufficientStock)
	}
	return nil
}

// RestoreItems returns the stock held by items (compensation on cancellation)
func (inv *Inventory) RestoreItems(ctx context.Context, q store.Querier, items []models.OrderItem) error {
	ctx, span := util.StartSpan(ctx, "Inventory.RestoreItems")
	defer span.End()

	for _, item := range items {
		if err := q.RestoreStock(ctx, item.ProductID, item.Color, item.Size, item.Quantity); err != nil {
			inv.logger.Error("Failed to restore stock",
				zap.String("order_id", item.OrderID.String()),
				zap.String("product_id", item.ProductID.String()),
				zap.Error(err))
			return fmt.Errorf("failed to restore stock for product %s: %w", item.ProductID, err)
		}
		util.StockRestoredTotal.Add(float64(item.Quantity))
	}
	return nil
}
