// internal/syncer/transform_test.go
package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenhaven/garden-backend/internal/supplier"
)

func listableRecord(code string) *supplier.RemoteProduct {
	return &supplier.RemoteProduct{
		ItemCode:        code,
		ItemDescription: supplier.LocalizedText{EN: "Ficus Lyrata", NL: "Vioolbladplant"},
		ShowOnWebsite:   true,
		ItemStatus:      "A",
		IsStockItem:     true,
		MainGroupDescription: supplier.LocalizedText{EN: "Plants"},
		SubGroupDescription:  supplier.LocalizedText{EN: "Indoor"},
		SellPrice:            14.95,
		StockQuantity:        12,
		Sysmodified:          time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestIsListableRequiresAllThreeFlags(t *testing.T) {
	base := listableRecord("PLT-1")
	assert.True(t, IsListable(base))

	noWebsite := *base
	noWebsite.ShowOnWebsite = false
	assert.False(t, IsListable(&noWebsite))

	wrongStatus := *base
	wrongStatus.ItemStatus = "N"
	assert.False(t, IsListable(&wrongStatus))

	notStockItem := *base
	notStockItem.IsStockItem = false
	assert.False(t, IsListable(&notStockItem))
}

func TestTransformMapsTaxonomyAndSpecs(t *testing.T) {
	r := listableRecord("PLT-1")
	r.Dimensions = supplier.Dimensions{Height: 120, Diameter: 21}
	r.Weight = 4.5
	r.MaterialGroupDescription = "Ceramics"
	r.DeliveryTimeInDays = 3
	r.CountryOfOrigin = "NL"
	r.Tags = []string{"indoor", "easy-care"}
	r.PictureName = "PLT-1.jpg"

	p, err := Transform(r)
	require.NoError(t, err)

	assert.Equal(t, "PLT-1", p.NieuwkoopID)
	assert.Equal(t, "PLT-1", p.SKU)
	assert.Equal(t, "ficus-lyrata", p.Slug)
	assert.Equal(t, "Plants", p.Category)
	assert.Equal(t, "Indoor", p.Subcategory)
	assert.True(t, p.IsActive)
	assert.Equal(t, 14.95, p.BasePrice)

	assert.Equal(t, 120.0, p.Specifications["height_cm"])
	assert.Equal(t, 21.0, p.Specifications["diameter_cm"])
	assert.Equal(t, 4.5, p.Specifications["weight_kg"])
	assert.Equal(t, "Ceramics", p.Specifications["material"])
	assert.Equal(t, 3, p.Specifications["delivery_time_days"])
	assert.Equal(t, "NL", p.Specifications["country_of_origin"])
	_, hasWidth := p.Specifications["width_cm"]
	assert.False(t, hasWidth)
}

func TestTransformRejectsBadRecords(t *testing.T) {
	empty := &supplier.RemoteProduct{}
	_, err := Transform(empty)
	require.Error(t, err)
	var terr *TransformError
	assert.ErrorAs(t, err, &terr)

	negative := listableRecord("PLT-2")
	negative.SellPrice = -1
	_, err = Transform(negative)
	assert.Error(t, err)
}

func TestTransformFallsBackToItemCodeName(t *testing.T) {
	r := listableRecord("PLT-9")
	r.ItemDescription = supplier.LocalizedText{}

	p, err := Transform(r)
	require.NoError(t, err)
	assert.Equal(t, "PLT-9", p.Name)
	assert.Equal(t, "plt-9", p.Slug)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "ficus-lyrata", Slugify("Ficus Lyrata"))
	assert.Equal(t, "monstera-deliciosa-xl", Slugify("  Monstera Deliciosa (XL)! "))
	assert.Equal(t, "", Slugify("???"))
}

func TestSlugWithSuffixIsDeterministic(t *testing.T) {
	first := SlugWithSuffix("Ficus Lyrata", "PLT-100")
	second := SlugWithSuffix("Ficus Lyrata", "PLT-100")
	assert.Equal(t, first, second)
	assert.Equal(t, "ficus-lyrata-plt-100", first)

	// Distinct supplier records always get distinct suffixed slugs.
	other := SlugWithSuffix("Ficus Lyrata", "PLT-200")
	assert.NotEqual(t, first, other)
}

func TestNeedsUpdateDiffKeys(t *testing.T) {
	r := listableRecord("PLT-1")
	stored, err := Transform(r)
	require.NoError(t, err)
	same, err := Transform(r)
	require.NoError(t, err)

	assert.False(t, NeedsUpdate(stored, same))

	bumped := *same
	bumped.Sysmodified = stored.Sysmodified.Add(time.Hour)
	assert.True(t, NeedsUpdate(stored, &bumped))

	priceChanged := *same
	priceChanged.BasePrice = 16.50
	assert.True(t, NeedsUpdate(stored, &priceChanged))

	deactivated := *same
	deactivated.IsActive = false
	assert.True(t, NeedsUpdate(stored, &deactivated))
}
