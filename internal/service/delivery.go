package service

import (
	"strings"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
)

// DeliveryCalculator prices shipping for an address. It never fails:
// unknown or blank cities fall back to the flat charge.
type DeliveryCalculator struct {
	flat       decimal.Decimal
	cityCharge map[string]decimal.Decimal
}

// NewDeliveryCalculator creates a calculator with a flat charge and optional per-city overrides
func NewDeliveryCalculator(flat decimal.Decimal, cityCharge map[string]decimal.Decimal) *DeliveryCalculator {
	normalized := make(map[string]decimal.Decimal, len(cityCharge))
	for city, charge := range cityCharge {
		normalized[normalizeCity(city)] = charge
	}
	return &DeliveryCalculator{flat: flat, cityCharge: normalized}
}

// Calculate returns the delivery charge for address
func (d *DeliveryCalculator) Calculate(address models.Address) decimal.Decimal {
	if charge, ok := d.cityCharge[normalizeCity(address.City)]; ok {
		return charge
	}
	return d.flat
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
