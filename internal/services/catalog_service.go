// internal/services/catalog_service.go
package services

import (
	"context"
	"time"

	"github.com/greenhaven/garden-backend/internal/models"
	"github.com/greenhaven/garden-backend/internal/pricing"
	"github.com/greenhaven/garden-backend/internal/syncer"
)

// CatalogService is the storefront read surface. It joins stored products
// with role-dependent pricing, derived stock status and badges; list pages
// serve last-known data while single product pages go through the realtime
// path.
type CatalogService struct {
	products   *ProductService
	settings   *SettingsService
	reconciler *syncer.Reconciler
	imageBase  string
}

// CatalogItem is one storefront product with everything derived at read time.
// Supplier net prices never leave the backend; only computed display prices
// are serialized.
type CatalogItem struct {
	ID             string                 `json:"id"`
	SKU            string                 `json:"sku"`
	Slug           string                 `json:"slug"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	Category       string                 `json:"category"`
	Subcategory    string                 `json:"subcategory,omitempty"`
	Price          pricing.DisplayPrice   `json:"price"`
	PriceDetail    *pricing.PriceBreakdown `json:"price_detail,omitempty"`
	StockStatus    models.StockStatus     `json:"stock_status"`
	StockQuantity  int                    `json:"stock_quantity"`
	IsNew          bool                   `json:"is_new"`
	IsFeatured     bool                   `json:"is_featured"`
	Images         []string               `json:"images,omitempty"`
	Specifications models.JSONB           `json:"specifications,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	IsRealTimeData bool                   `json:"is_real_time_data"`
	LastPriceCheck *time.Time             `json:"last_price_check,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Viewer captures the per-request presentation inputs: who is looking and
// whether an associate toggled VAT off for the session.
type Viewer struct {
	Role    models.UserRole
	ShowVat bool
}

func NewCatalogService(products *ProductService, settings *SettingsService, reconciler *syncer.Reconciler, imageBase string) *CatalogService {
	return &CatalogService{
		products:   products,
		settings:   settings,
		reconciler: reconciler,
		imageBase:  imageBase,
	}
}

// List returns one filtered catalog page. List pages are served from the
// local store only; the refresh tiers keep that data acceptably fresh.
func (s *CatalogService) List(params CatalogSearchParams, viewer Viewer) ([]CatalogItem, int64, error) {
	products, total, err := s.products.ListProducts(params)
	if err != nil {
		return nil, 0, err
	}

	return s.enrichAll(products, viewer), total, nil
}

// Popular returns the most-referenced products for the storefront carousel.
func (s *CatalogService) Popular(limit int, viewer Viewer) ([]CatalogItem, error) {
	products, err := s.products.PopularProducts(limit)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(products, viewer), nil
}

// Featured returns products above the featured reference threshold.
func (s *CatalogService) Featured(limit int, viewer Viewer) ([]CatalogItem, error) {
	products, err := s.products.FeaturedProducts(s.settings.FeaturedThreshold(), limit)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(products, viewer), nil
}

func (s *CatalogService) enrichAll(products []models.Product, viewer Viewer) []CatalogItem {
	cfg := s.settings.PricingSnapshot()
	newCutoff := time.Now().AddDate(0, 0, -s.settings.NewBadgeDays())
	featuredAt := s.settings.FeaturedThreshold()

	items := make([]CatalogItem, 0, len(products))
	for i := range products {
		items = append(items, s.enrich(&products[i], viewer, cfg, newCutoff, featuredAt, false, nil))
	}
	return items
}

// GetBySKU is the product page path: live price and stock when the supplier
// answers in time, last-known data otherwise.
func (s *CatalogService) GetBySKU(ctx context.Context, sku string, viewer Viewer) (*CatalogItem, error) {
	view, err := s.reconciler.GetProductWithRealtimeData(ctx, sku)
	if err != nil {
		return nil, err
	}
	item := s.enrichView(view, viewer)
	return &item, nil
}

// GetBySlug resolves the slug locally, then reuses the SKU realtime path.
func (s *CatalogService) GetBySlug(ctx context.Context, slug string, viewer Viewer) (*CatalogItem, error) {
	product, err := s.products.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return s.GetBySKU(ctx, product.SKU, viewer)
}

func (s *CatalogService) FilterCounts() ([]CategoryCount, error) {
	return s.products.FilterCounts()
}

// TrackCartAdd and TrackOrder feed the popularity counters behind the popular
// refresh tier and the featured badge.
func (s *CatalogService) TrackCartAdd(sku string) {
	s.products.IncrementCartCount(sku)
}

func (s *CatalogService) TrackOrder(sku string) {
	s.products.IncrementOrderCount(sku)
}

func (s *CatalogService) enrichView(view *syncer.ProductView, viewer Viewer) CatalogItem {
	cfg := s.settings.PricingSnapshot()
	newCutoff := time.Now().AddDate(0, 0, -s.settings.NewBadgeDays())
	featuredAt := s.settings.FeaturedThreshold()
	return s.enrich(&view.Product, viewer, cfg, newCutoff, featuredAt, view.IsRealTimeData, view.LastPriceCheck)
}

func (s *CatalogService) enrich(p *models.Product, viewer Viewer, cfg pricing.Config, newCutoff time.Time, featuredAt int64, realtime bool, checkedAt *time.Time) CatalogItem {
	breakdown := pricing.ComputePrice(p.BasePrice, viewer.Role, cfg)

	item := CatalogItem{
		ID:             p.ID.String(),
		SKU:            p.SKU,
		Slug:           p.Slug,
		Name:           p.Name,
		Description:    p.Description,
		Category:       p.Category,
		Subcategory:    p.Subcategory,
		Price:          pricing.Display(breakdown, viewer.Role, viewer.ShowVat),
		StockStatus:    models.DeriveStockStatus(p.StockQuantity),
		StockQuantity:  p.StockQuantity,
		IsNew:          p.CreatedAt.After(newCutoff),
		IsFeatured:     p.ReferenceCount() >= featuredAt,
		Images:         p.ImageURLs(s.imageBase),
		Specifications: p.Specifications,
		Tags:           []string(p.Tags),
		IsRealTimeData: realtime,
		LastPriceCheck: checkedAt,
		CreatedAt:      p.CreatedAt,
	}

	// Associates get the full breakdown for their order forms.
	if viewer.Role == models.RoleAssociate {
		item.PriceDetail = &breakdown
	}
	return item
}
