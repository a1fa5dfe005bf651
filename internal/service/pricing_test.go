package service

import (
	"testing"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnitPricePrecedence(t *testing.T) {
	product := &models.Product{
		BasePrice: decimal.NewNullDecimal(dec(100)),
		Variants: []models.Variant{
			{
				Color:     "Red",
				BasePrice: decimal.NewNullDecimal(dec(120)),
				Sizes: []models.VariantSize{
					{Size: "S"},
					{Size: "XL", Price: decimal.NewNullDecimal(dec(150))},
				},
			},
			{
				Color: "Blue",
				Sizes: []models.VariantSize{{Size: "S"}},
			},
		},
	}

	cases := []struct {
		color, size string
		want        int64
	}{
		{"Red", "XL", 150},
		{"Red", "S", 120},
		{"Blue", "S", 100},
	}
	for _, tc := range cases {
		price, err := ResolveUnitPrice(product, tc.color, tc.size)
		require.NoError(t, err)
		assert.True(t, price.Equal(dec(tc.want)), "%s/%s = %s", tc.color, tc.size, price)
	}
}

func TestResolveUnitPriceFailures(t *testing.T) {
	product := &models.Product{
		Variants: []models.Variant{{Color: "Red", Sizes: []models.VariantSize{{Size: "M"}}}},
	}

	_, err := ResolveUnitPrice(product, "Green", "M")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = ResolveUnitPrice(product, "Red", "XXL")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = ResolveUnitPrice(product, "Red", "M")
	assert.ErrorIs(t, err, models.ErrNoPrice)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestDeliveryCalculator(t *testing.T) {
	calc := NewDeliveryCalculator(dec(50), map[string]decimal.Decimal{" Kathmandu ": dec(0), "pokhara": dec(100)})

	assert.True(t, calc.Calculate(models.Address{City: "kathmandu"}).Equal(dec(0)))
	assert.True(t, calc.Calculate(models.Address{City: "POKHARA"}).Equal(dec(100)))
	assert.True(t, calc.Calculate(models.Address{City: "Biratnagar"}).Equal(dec(50)))
	assert.True(t, calc.Calculate(models.Address{}).Equal(dec(50)))
}

func TestOrderTotalFloorsAtZero(t *testing.T) {
	assert.True(t, OrderTotal(dec(1000), dec(100), dec(50)).Equal(dec(950)))
	assert.True(t, OrderTotal(dec(1000), dec(5000), dec(50)).Equal(decimal.Zero))
}
