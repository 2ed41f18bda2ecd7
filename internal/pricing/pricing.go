// internal/pricing/pricing.go
package pricing

import (
	"math"

	"github.com/greenhaven/garden-backend/internal/models"
)

// Config is the snapshot of pricing parameters read from settings. Callers
// must fill every field (the settings service applies fallbacks), so pricing
// itself does no I/O and no defaulting.
type Config struct {
	PriceMultiplier   float64 `json:"price_multiplier"`
	AssociateDiscount float64 `json:"associate_discount"`
	VATRate           float64 `json:"vat_rate"`
}

// PriceBreakdown is the full role-dependent price computation for one
// product. Original* fields are populated only when a discount applied.
type PriceBreakdown struct {
	PriceWithoutVat         float64  `json:"price_without_vat"`
	PriceWithVat            float64  `json:"price_with_vat"`
	OriginalPriceWithoutVat *float64 `json:"original_price_without_vat,omitempty"`
	OriginalPriceWithVat    *float64 `json:"original_price_with_vat,omitempty"`
	HasDiscount             bool     `json:"has_discount"`
	DiscountPercentage      int      `json:"discount_percentage"`
}

// DisplayPrice is what a storefront endpoint actually surfaces: one number,
// plus the struck-through original when the viewer is entitled to see it.
type DisplayPrice struct {
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	IncludesVat   bool     `json:"includes_vat"`
	HasDiscount   bool     `json:"has_discount"`
}

// RoundMoney rounds to 2 decimals, half away from zero on cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputePrice derives the role-dependent price from the supplier base price.
// The list price (base * multiplier) is the pre-discount price without VAT;
// associates get the configured discount off it. The with-VAT figure is always
// derived from the rounded without-VAT figure so the VAT identity
// PriceWithVat == RoundMoney(PriceWithoutVat * (1+vat)) holds for every output.
func ComputePrice(basePrice float64, role models.UserRole, cfg Config) PriceBreakdown {
	listPrice := RoundMoney(basePrice * cfg.PriceMultiplier)

	if role == models.RoleAssociate && cfg.AssociateDiscount > 0 {
		finalWithoutVat := RoundMoney(listPrice * (1 - cfg.AssociateDiscount))
		originalWithVat := RoundMoney(listPrice * (1 + cfg.VATRate))
		return PriceBreakdown{
			PriceWithoutVat:         finalWithoutVat,
			PriceWithVat:            RoundMoney(finalWithoutVat * (1 + cfg.VATRate)),
			OriginalPriceWithoutVat: &listPrice,
			OriginalPriceWithVat:    &originalWithVat,
			HasDiscount:             true,
			DiscountPercentage:      int(math.Round(cfg.AssociateDiscount * 100)),
		}
	}

	return PriceBreakdown{
		PriceWithoutVat: listPrice,
		PriceWithVat:    RoundMoney(listPrice * (1 + cfg.VATRate)),
	}
}

// Display selects which figure to show. Non-associates always see the
// VAT-inclusive price and never an original. Associates follow their
// per-session VAT toggle and do see the struck-through original when
// discounted; the toggle changes presentation only, never the computation.
func Display(b PriceBreakdown, role models.UserRole, showVat bool) DisplayPrice {
	if role != models.RoleAssociate {
		return DisplayPrice{Price: b.PriceWithVat, IncludesVat: true}
	}

	d := DisplayPrice{IncludesVat: showVat, HasDiscount: b.HasDiscount}
	if showVat {
		d.Price = b.PriceWithVat
		d.OriginalPrice = b.OriginalPriceWithVat
	} else {
		d.Price = b.PriceWithoutVat
		d.OriginalPrice = b.OriginalPriceWithoutVat
	}
	return d
}
