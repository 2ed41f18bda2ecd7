// internal/syncer/transform.go
package syncer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"github.com/greenhaven/garden-backend/internal/models"
	"github.com/greenhaven/garden-backend/internal/supplier"
)

var (
	slugInvalid  = regexp.MustCompile(`[^a-z0-9]+`)
	slugTrimDash = regexp.MustCompile(`^-+|-+$`)
)

// TransformError marks a remote record that could not be mapped to a local
// product. It is recorded per record and never aborts a batch.
type TransformError struct {
	ItemCode string
	Reason   string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed for %s: %s", e.ItemCode, e.Reason)
}

// IsListable applies the three-flag rule: a supplier record is exposed on the
// storefront only when it is flagged for the website, has status code A and is
// a stock item. All three must hold.
func IsListable(r *supplier.RemoteProduct) bool {
	return r.ShowOnWebsite && r.ItemStatus == "A" && r.IsStockItem
}

// Slugify builds a URL slug from a product name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalid.ReplaceAllString(slug, "-")
	slug = slugTrimDash.ReplaceAllString(slug, "")
	return slug
}

// SlugWithSuffix is the deterministic collision policy: when two distinct
// supplier records would produce the same slug, the later one is suffixed with
// its own item code. The same record always maps to the same slug, which keeps
// repeated syncs idempotent.
func SlugWithSuffix(name, itemCode string) string {
	base := Slugify(name)
	suffix := Slugify(itemCode)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// Transform maps one supplier record onto the local product shape. The
// returned product carries the base slug; the reconciler resolves collisions
// against the store.
func Transform(r *supplier.RemoteProduct) (*models.Product, error) {
	itemCode := strings.TrimSpace(r.ItemCode)
	if itemCode == "" {
		return nil, &TransformError{ItemCode: "?", Reason: "missing item code"}
	}

	name := strings.TrimSpace(r.ItemDescription.EN)
	if name == "" {
		name = itemCode
	}

	if r.SellPrice < 0 {
		return nil, &TransformError{ItemCode: itemCode, Reason: "negative sell price"}
	}

	product := &models.Product{
		NieuwkoopID:    itemCode,
		SKU:            itemCode,
		Slug:           Slugify(name),
		Name:           name,
		Description:    r.ItemDescription.EN,
		Category:       strings.TrimSpace(r.MainGroupDescription.EN),
		Subcategory:    strings.TrimSpace(r.SubGroupDescription.EN),
		BasePrice:      r.SellPrice,
		StockQuantity:  r.StockQuantity,
		IsActive:       IsListable(r),
		Sysmodified:    r.Sysmodified,
		PictureName:    r.PictureName,
		Tags:           pq.StringArray(r.Tags),
		Specifications: buildSpecifications(r),
	}

	return product, nil
}

// buildSpecifications fills the typed specification bag. Known keys are set
// only when the supplier provides a value; everything storefront-facing reads
// from this bag rather than the raw supplier record.
func buildSpecifications(r *supplier.RemoteProduct) models.JSONB {
	specs := models.JSONB{}

	if r.Dimensions.Height > 0 {
		specs["height_cm"] = r.Dimensions.Height
	}
	if r.Dimensions.Width > 0 {
		specs["width_cm"] = r.Dimensions.Width
	}
	if r.Dimensions.Depth > 0 {
		specs["depth_cm"] = r.Dimensions.Depth
	}
	if r.Dimensions.Diameter > 0 {
		specs["diameter_cm"] = r.Dimensions.Diameter
	}
	if r.Weight > 0 {
		specs["weight_kg"] = r.Weight
	}
	if r.MaterialGroupDescription != "" {
		specs["material"] = r.MaterialGroupDescription
	}
	if r.DeliveryTimeInDays > 0 {
		specs["delivery_time_days"] = r.DeliveryTimeInDays
	}
	if r.CountryOfOrigin != "" {
		specs["country_of_origin"] = r.CountryOfOrigin
	}
	if len(r.Tags) > 0 {
		specs["tags"] = append([]string(nil), r.Tags...)
	}

	return specs
}

// NeedsUpdate reports whether the stored row differs from the freshly
// transformed one on any tracked field. Sysmodified is the primary diff key;
// the remaining comparisons catch fields the supplier occasionally touches
// without bumping the timestamp.
func NeedsUpdate(stored, incoming *models.Product) bool {
	if !stored.Sysmodified.Equal(incoming.Sysmodified) {
		return true
	}
	if stored.BasePrice != incoming.BasePrice ||
		stored.StockQuantity != incoming.StockQuantity ||
		stored.IsActive != incoming.IsActive {
		return true
	}
	if stored.Name != incoming.Name ||
		stored.Category != incoming.Category ||
		stored.Subcategory != incoming.Subcategory {
		return true
	}
	return false
}
