// internal/handlers/product.go
package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/greenhaven/garden-backend/internal/middleware"
	"github.com/greenhaven/garden-backend/internal/services"
	"github.com/greenhaven/garden-backend/internal/syncer"
	"github.com/greenhaven/garden-backend/internal/utils"
)

// ProductHandler serves the public catalog. All endpoints work anonymously;
// an optional token switches the pricing to the viewer's role.
type ProductHandler struct {
	catalogService *services.CatalogService
}

func NewProductHandler(catalogService *services.CatalogService) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
	}
}

// viewer reads role and VAT-toggle from the request. The vat query parameter
// only matters for associates; everyone else always sees VAT-inclusive prices.
func viewer(c *gin.Context) services.Viewer {
	showVat := true
	if c.Query("vat") == "excl" {
		showVat = false
	}
	return services.Viewer{
		Role:    middleware.RoleFromContext(c),
		ShowVat: showVat,
	}
}

// GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	searchParams := services.CatalogSearchParams{
		PaginationParams: params,
	}

	searchParams.Category = c.Query("category")
	searchParams.Subcategory = c.Query("subcategory")
	searchParams.Search = c.Query("search")

	if priceMinStr := c.Query("price_min"); priceMinStr != "" {
		if priceMin, err := strconv.ParseFloat(priceMinStr, 64); err == nil {
			searchParams.PriceMin = &priceMin
		}
	}

	if priceMaxStr := c.Query("price_max"); priceMaxStr != "" {
		if priceMax, err := strconv.ParseFloat(priceMaxStr, 64); err == nil {
			searchParams.PriceMax = &priceMax
		}
	}

	if tags := c.Query("tags"); tags != "" {
		searchParams.Tags = strings.Split(tags, ",")
	}

	if inStockStr := c.Query("in_stock"); inStockStr != "" {
		if inStock, err := strconv.ParseBool(inStockStr); err == nil {
			searchParams.InStock = &inStock
		}
	}

	items, total, err := h.catalogService.List(searchParams, viewer(c))
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(items, total, params)
	utils.PaginatedResponse(c, result)
}

// listLimit caps the carousel endpoints at a sane page size.
func listLimit(c *gin.Context, fallback int) int {
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 50 {
			return limit
		}
	}
	return fallback
}

// GET /products/popular
func (h *ProductHandler) GetPopularProducts(c *gin.Context) {
	items, err := h.catalogService.Popular(listLimit(c, 12), viewer(c))
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"products": items})
}

// GET /products/featured
func (h *ProductHandler) GetFeaturedProducts(c *gin.Context) {
	items, err := h.catalogService.Featured(listLimit(c, 12), viewer(c))
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"products": items})
}

// GET /products/:slug
func (h *ProductHandler) GetProduct(c *gin.Context) {
	slug := c.Param("slug")
	if slug == "" {
		utils.BadRequestResponse(c, "Missing product slug", nil)
		return
	}

	item, err := h.catalogService.GetBySlug(c.Request.Context(), slug, viewer(c))
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) || errors.Is(err, syncer.ErrNotFound) {
			utils.NotFoundResponse(c, "Product")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, item)
}

// GET /products/sku/:sku
func (h *ProductHandler) GetProductBySKU(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		utils.BadRequestResponse(c, "Missing SKU", nil)
		return
	}

	item, err := h.catalogService.GetBySKU(c.Request.Context(), sku, viewer(c))
	if err != nil {
		if errors.Is(err, syncer.ErrNotFound) {
			utils.NotFoundResponse(c, "Product")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, item)
}

type trackEventRequest struct {
	Event string `json:"event" binding:"required"`
}

// POST /products/sku/:sku/events
// The storefront reports cart additions and completed orders here; the
// counters feed the popular refresh tier and the featured badge.
func (h *ProductHandler) TrackProductEvent(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		utils.BadRequestResponse(c, "Missing SKU", nil)
		return
	}

	var req trackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	switch req.Event {
	case "cart":
		h.catalogService.TrackCartAdd(sku)
	case "order":
		h.catalogService.TrackOrder(sku)
	default:
		utils.BadRequestResponse(c, "Unsupported event, use cart or order", nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"sku": sku, "event": req.Event})
}

// GET /products/filters
func (h *ProductHandler) GetFilterCounts(c *gin.Context) {
	counts, err := h.catalogService.FilterCounts()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"categories": counts})
}
