// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/greenhaven/garden-backend/internal/config"
	"github.com/greenhaven/garden-backend/internal/database"
	"github.com/greenhaven/garden-backend/internal/router"
	"github.com/greenhaven/garden-backend/internal/services"
	"github.com/greenhaven/garden-backend/internal/supplier"
	"github.com/greenhaven/garden-backend/internal/syncer"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Seed admin account and default shop settings
	if err := database.SeedInitialData(db); err != nil {
		log.Fatal("Failed to seed initial data:", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Wire the sync pipeline: supplier client, realtime cache, reconciler and
	// the tiered background scheduler.
	supplierClient := supplier.NewClient(supplier.Config{
		BaseURL:      cfg.Supplier.BaseURL,
		APIKey:       cfg.Supplier.APIKey,
		TimeoutMs:    cfg.Supplier.TimeoutMs,
		RateLimitRPS: cfg.Supplier.RateLimitRPS,
	})

	productService := services.NewProductService(db)
	settingsService := services.NewSettingsService(db)
	syncLogService := services.NewSyncLogService(db)

	// TTL comes from the cache_time setting per lookup; the constructor value
	// is only the fallback.
	realtimeCache := syncer.NewRealtimeCache(0, nil)

	reconciler := syncer.NewReconciler(supplierClient, productService, syncLogService, settingsService, realtimeCache)
	scheduler := syncer.NewScheduler(reconciler, productService, syncLogService, syncLogService, realtimeCache)

	scheduler.Start()
	defer scheduler.Stop()

	// Initialize router
	r := router.Initialize(db, cfg, reconciler)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server, then stop the background tiers via the deferred calls
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
