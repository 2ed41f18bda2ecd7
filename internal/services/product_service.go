// internal/services/product_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/greenhaven/garden-backend/internal/models"
	"github.com/greenhaven/garden-backend/internal/utils"
)

// ErrProductNotFound is the storefront-facing miss. Handlers map it to 404.
var ErrProductNotFound = errors.New("product not found")

// ProductService owns all catalog persistence. The sync reconciler writes
// through it and the storefront reads through it, so listability and
// visibility rules live in exactly one place.
type ProductService struct {
	db *gorm.DB
}

type CatalogSearchParams struct {
	utils.PaginationParams
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Search      string   `json:"search,omitempty"`
	PriceMin    *float64 `json:"price_min,omitempty"`
	PriceMax    *float64 `json:"price_max,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	InStock     *bool    `json:"in_stock,omitempty"`
}

func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db}
}

// --- sync store ---

func (s *ProductService) GetByNieuwkoopID(nieuwkoopID string) (*models.Product, error) {
	return s.getOne("nieuwkoop_id = ?", nieuwkoopID)
}

func (s *ProductService) GetBySKU(sku string) (*models.Product, error) {
	return s.getOne("sku = ?", sku)
}

// getOne returns (nil, nil) when no row matches; the reconciler treats that
// as "new product", not as a failure.
func (s *ProductService) getOne(cond string, arg interface{}) (*models.Product, error) {
	var product models.Product
	if err := s.db.Where(cond, arg).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func (s *ProductService) SlugTaken(slug, excludeNieuwkoopID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Product{}).
		Where("slug = ? AND nieuwkoop_id <> ?", slug, excludeNieuwkoopID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}

func (s *ProductService) Insert(product *models.Product) error {
	if err := s.db.Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (s *ProductService) Update(product *models.Product) error {
	if err := s.db.Save(product).Error; err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// UpdateRealtime persists a live price/stock snapshot without touching the
// catalog content fields.
func (s *ProductService) UpdateRealtime(sku string, price float64, stock int, checkedAt time.Time) error {
	result := s.db.Model(&models.Product{}).Where("sku = ?", sku).Updates(map[string]interface{}{
		"base_price":       price,
		"stock_quantity":   stock,
		"last_stock_check": checkedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update realtime data: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, sku)
	}
	return nil
}

// --- refresh tiers ---

func (s *ProductService) CriticalStockSKUs(threshold int) ([]string, error) {
	return s.selectSKUs(s.db.Model(&models.Product{}).
		Where("is_active = ? AND stock_quantity < ?", true, threshold).
		Order("stock_quantity ASC"))
}

func (s *ProductService) PopularSKUs(limit int) ([]string, error) {
	return s.selectSKUs(s.db.Model(&models.Product{}).
		Where("is_active = ?", true).
		Order("cart_count + order_count DESC").
		Limit(limit))
}

// StaleSKUs returns active products whose live data is oldest, never-checked
// rows first.
func (s *ProductService) StaleSKUs(notCheckedSince time.Time, limit int) ([]string, error) {
	return s.selectSKUs(s.db.Model(&models.Product{}).
		Where("is_active = ? AND (last_stock_check IS NULL OR last_stock_check < ?)", true, notCheckedSince).
		Order("last_stock_check ASC NULLS FIRST").
		Limit(limit))
}

func (s *ProductService) selectSKUs(query *gorm.DB) ([]string, error) {
	var skus []string
	if err := query.Pluck("sku", &skus).Error; err != nil {
		return nil, fmt.Errorf("failed to select skus: %w", err)
	}
	return skus, nil
}

// --- storefront ---

// ListProducts returns the filtered active catalog page plus the unpaged
// total. Inactive products never appear here regardless of filters.
func (s *ProductService) ListProducts(params CatalogSearchParams) ([]models.Product, int64, error) {
	query := s.db.Model(&models.Product{}).Where("is_active = ?", true)

	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Subcategory != "" {
		query = query.Where("subcategory = ?", params.Subcategory)
	}
	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(sku) LIKE ?",
			searchTerm, searchTerm, searchTerm)
	}
	if params.PriceMin != nil {
		query = query.Where("base_price >= ?", *params.PriceMin)
	}
	if params.PriceMax != nil {
		query = query.Where("base_price <= ?", *params.PriceMax)
	}
	if len(params.Tags) > 0 {
		query = query.Where("tags && ?", pq.Array(params.Tags))
	}
	if params.InStock != nil && *params.InStock {
		query = query.Where("stock_quantity > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "name", "base_price", "stock_quantity"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, total, nil
}

func (s *ProductService) GetBySlug(slug string) (*models.Product, error) {
	return s.getOne("slug = ?", slug)
}

// PopularProducts returns the most-referenced active products, cart and order
// counts combined.
func (s *ProductService) PopularProducts(limit int) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.Where("is_active = ?", true).
		Order("cart_count + order_count DESC").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch popular products: %w", err)
	}
	return products, nil
}

// FeaturedProducts returns active products whose combined reference count
// reached the featured threshold.
func (s *ProductService) FeaturedProducts(threshold int64, limit int) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.Where("is_active = ? AND cart_count + order_count >= ?", true, threshold).
		Order("cart_count + order_count DESC").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch featured products: %w", err)
	}
	return products, nil
}

// CategoryCount is one row of the storefront filter sidebar.
type CategoryCount struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Count       int64  `json:"count"`
}

// FilterCounts returns product counts per category/subcategory pair over the
// active catalog.
func (s *ProductService) FilterCounts() ([]CategoryCount, error) {
	var counts []CategoryCount
	if err := s.db.Model(&models.Product{}).
		Select("category, subcategory, COUNT(*) as count").
		Where("is_active = ?", true).
		Group("category, subcategory").
		Order("category, subcategory").
		Find(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to compute filter counts: %w", err)
	}
	return counts, nil
}

// IncrementCartCount bumps the popularity signal when a product is added to a
// cart. Fire and forget, a miss is not an error worth surfacing.
func (s *ProductService) IncrementCartCount(sku string) {
	s.db.Model(&models.Product{}).Where("sku = ?", sku).
		UpdateColumn("cart_count", gorm.Expr("cart_count + 1"))
}

func (s *ProductService) IncrementOrderCount(sku string) {
	s.db.Model(&models.Product{}).Where("sku = ?", sku).
		UpdateColumn("order_count", gorm.Expr("order_count + 1"))
}
