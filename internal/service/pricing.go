package service

import (
	"fmt"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
)

// ResolveUnitPrice returns the price of one unit of (color, size):
// the size override, else the variant base price, else the product base price.
func ResolveUnitPrice(product *models.Product, color, size string) (decimal.Decimal, error) {
	vi := product.VariantIndex(color)
	if vi < 0 {
		return decimal.Zero, fmt.Errorf("product %s has no variant %q: %w", product.ID, color, models.ErrNotFound)
	}
	variant := &product.Variants[vi]

	si := variant.SizeIndex(size)
	if si < 0 {
		return decimal.Zero, fmt.Errorf("product %s variant %q has no size %q: %w", product.ID, color, size, models.ErrNotFound)
	}

	switch {
	case variant.Sizes[si].Price.Valid:
		return variant.Sizes[si].Price.Decimal, nil
	case variant.BasePrice.Valid:
		return variant.BasePrice.Decimal, nil
	case product.BasePrice.Valid:
		return product.BasePrice.Decimal, nil
	}
	return decimal.Zero, fmt.Errorf("product %s %s/%s: %w", product.ID, color, size, models.ErrNoPrice)
}
