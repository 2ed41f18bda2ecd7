// internal/pricing/pricing_test.go
package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenhaven/garden-backend/internal/models"
)

func TestComputePriceAssociateScenario(t *testing.T) {
	cfg := Config{PriceMultiplier: 2.5, AssociateDiscount: 0.20, VATRate: 0.21}

	b := ComputePrice(10, models.RoleAssociate, cfg)

	assert.Equal(t, 20.00, b.PriceWithoutVat)
	assert.Equal(t, 24.20, b.PriceWithVat)
	require.NotNil(t, b.OriginalPriceWithoutVat)
	require.NotNil(t, b.OriginalPriceWithVat)
	assert.Equal(t, 25.00, *b.OriginalPriceWithoutVat)
	assert.Equal(t, 30.25, *b.OriginalPriceWithVat)
	assert.True(t, b.HasDiscount)
	assert.Equal(t, 20, b.DiscountPercentage)
}

func TestComputePriceCustomerScenario(t *testing.T) {
	cfg := Config{PriceMultiplier: 2.5, AssociateDiscount: 0.20, VATRate: 0.21}

	b := ComputePrice(10, models.RoleCustomer, cfg)

	assert.Equal(t, 25.00, b.PriceWithoutVat)
	assert.Equal(t, 30.25, b.PriceWithVat)
	assert.False(t, b.HasDiscount)
	assert.Nil(t, b.OriginalPriceWithoutVat)
	assert.Nil(t, b.OriginalPriceWithVat)
	assert.Equal(t, 0, b.DiscountPercentage)
}

// The with-VAT figure must equal the rounded without-VAT figure times (1+vat)
// for every combination, not just hand-picked examples.
func TestVatIdentityHoldsAcrossGrid(t *testing.T) {
	bases := []float64{0.01, 0.99, 1, 3.33, 9.99, 10, 12.49, 57.5, 123.45, 999.99}
	roles := []models.UserRole{models.RoleCustomer, models.RoleAssociate, models.RoleAdmin}
	configs := []Config{
		{PriceMultiplier: 1, AssociateDiscount: 0, VATRate: 0},
		{PriceMultiplier: 1.5, AssociateDiscount: 0.10, VATRate: 0.09},
		{PriceMultiplier: 2.5, AssociateDiscount: 0.20, VATRate: 0.21},
		{PriceMultiplier: 3.17, AssociateDiscount: 0.33, VATRate: 0.19},
	}

	for _, cfg := range configs {
		for _, role := range roles {
			for _, base := range bases {
				b := ComputePrice(base, role, cfg)

				assert.Equal(t, RoundMoney(b.PriceWithoutVat*(1+cfg.VATRate)), b.PriceWithVat,
					"vat identity broken for base=%v role=%s cfg=%+v", base, role, cfg)

				if b.OriginalPriceWithoutVat != nil {
					assert.Equal(t, RoundMoney(*b.OriginalPriceWithoutVat*(1+cfg.VATRate)), *b.OriginalPriceWithVat)
				}
			}
		}
	}
}

func TestAssociateDiscountBound(t *testing.T) {
	cfg := Config{PriceMultiplier: 2.5, AssociateDiscount: 0.15, VATRate: 0.21}

	for _, base := range []float64{0.5, 7.77, 42, 250} {
		b := ComputePrice(base, models.RoleAssociate, cfg)
		require.NotNil(t, b.OriginalPriceWithoutVat)
		assert.LessOrEqual(t, b.PriceWithoutVat, *b.OriginalPriceWithoutVat)
		assert.Equal(t, 15, b.DiscountPercentage)
	}
}

func TestNonAssociateNeverDiscounted(t *testing.T) {
	cfg := Config{PriceMultiplier: 2.5, AssociateDiscount: 0.50, VATRate: 0.21}

	for _, role := range []models.UserRole{models.RoleCustomer, models.RoleAdmin} {
		b := ComputePrice(19.95, role, cfg)
		assert.False(t, b.HasDiscount)
		assert.Nil(t, b.OriginalPriceWithoutVat)
		assert.Nil(t, b.OriginalPriceWithVat)
	}
}

func TestZeroDiscountAssociateGetsListPrice(t *testing.T) {
	cfg := Config{PriceMultiplier: 2, AssociateDiscount: 0, VATRate: 0.21}

	b := ComputePrice(10, models.RoleAssociate, cfg)
	assert.Equal(t, 20.00, b.PriceWithoutVat)
	assert.False(t, b.HasDiscount)
}

func TestRoundMoneyHalfAwayFromZero(t *testing.T) {
	// Exactly representable halves round away from zero; other values round
	// to the nearest cent.
	assert.Equal(t, 0.13, RoundMoney(0.125))
	assert.Equal(t, -0.13, RoundMoney(-0.125))
	assert.Equal(t, 1.01, RoundMoney(1.006))
	assert.Equal(t, 1.00, RoundMoney(1.004))
	assert.Equal(t, -1.01, RoundMoney(-1.006))
	assert.Equal(t, 0.0, RoundMoney(0))
}

func TestDisplayNonAssociateAlwaysVatInclusive(t *testing.T) {
	cfg := Config{PriceMultiplier: 2.5, AssociateDiscount: 0.20, VATRate: 0.21}
	b := ComputePrice(10, models.RoleCustomer, cfg)

	for _, showVat := range []bool{true, false} {
		d := Display(b, models.RoleCustomer, showVat)
		assert.Equal(t, 30.25, d.Price)
		assert.True(t, d.IncludesVat)
		assert.Nil(t, d.OriginalPrice)
	}
}

func TestDisplayAssociateFollowsVatToggle(t *testing.T) {
	cfg := Config{PriceMultiplier: 2.5, AssociateDiscount: 0.20, VATRate: 0.21}
	b := ComputePrice(10, models.RoleAssociate, cfg)

	withVat := Display(b, models.RoleAssociate, true)
	assert.Equal(t, 24.20, withVat.Price)
	require.NotNil(t, withVat.OriginalPrice)
	assert.Equal(t, 30.25, *withVat.OriginalPrice)

	withoutVat := Display(b, models.RoleAssociate, false)
	assert.Equal(t, 20.00, withoutVat.Price)
	require.NotNil(t, withoutVat.OriginalPrice)
	assert.Equal(t, 25.00, *withoutVat.OriginalPrice)
}
