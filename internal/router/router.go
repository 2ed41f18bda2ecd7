// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/greenhaven/garden-backend/internal/config"
	"github.com/greenhaven/garden-backend/internal/handlers"
	"github.com/greenhaven/garden-backend/internal/middleware"
	"github.com/greenhaven/garden-backend/internal/services"
	"github.com/greenhaven/garden-backend/internal/syncer"
	"github.com/greenhaven/garden-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, reconciler *syncer.Reconciler) *gin.Engine {
	// Initialize services
	authService := services.NewAuthService(db, cfg)
	productService := services.NewProductService(db)
	settingsService := services.NewSettingsService(db)
	syncLogService := services.NewSyncLogService(db)
	catalogService := services.NewCatalogService(productService, settingsService, reconciler, cfg.Images.BaseURL)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(catalogService)
	adminHandler := handlers.NewAdminHandler(reconciler, syncLogService, settingsService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Catalog routes. All public; an optional token switches pricing to
		// the viewer's role.
		products := v1.Group("/products")
		products.Use(middleware.OptionalAuth())
		{
			products.GET("", productHandler.GetProducts)
			products.GET("/popular", productHandler.GetPopularProducts)
			products.GET("/featured", productHandler.GetFeaturedProducts)
			products.GET("/filters", productHandler.GetFilterCounts)
			products.GET("/sku/:sku", productHandler.GetProductBySKU)
			products.POST("/sku/:sku/events", productHandler.TrackProductEvent)
			products.GET("/:slug", productHandler.GetProduct)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AdminRateLimit())
		{
			admin.POST("/sync", adminHandler.TriggerSync)
			admin.GET("/sync-logs", adminHandler.GetSyncLogs)
			admin.GET("/sync-logs/:id", adminHandler.GetSyncLog)
			admin.GET("/settings", adminHandler.GetSettings)
			admin.PUT("/settings/:key", adminHandler.UpdateSetting)
		}
	}

	return r
}
