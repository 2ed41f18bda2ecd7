// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/greenhaven/garden-backend/internal/config"
	"github.com/greenhaven/garden-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Setting{},
		&models.SyncLog{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_role_status ON users(role, status)",

		// Product indexes for storefront filtering and the refresh tiers
		"CREATE INDEX IF NOT EXISTS idx_products_active_category ON products(is_active, category, subcategory)",
		"CREATE INDEX IF NOT EXISTS idx_products_active_stock ON products(is_active, stock_quantity)",
		"CREATE INDEX IF NOT EXISTS idx_products_popularity ON products((cart_count + order_count) DESC)",
		"CREATE INDEX IF NOT EXISTS idx_products_base_price ON products(base_price)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_products_tags ON products USING GIN(tags)",

		// Sync log indexes; the partial unique index backs the
		// one-in-progress-per-type rule at the database level
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_logs_one_active ON sync_logs(type) WHERE status = 'in_progress'",
		"CREATE INDEX IF NOT EXISTS idx_sync_logs_started ON sync_logs(started_at DESC)",

		// Full-text search index
		"CREATE INDEX IF NOT EXISTS idx_products_search ON products USING GIN(to_tsvector('english', name || ' ' || description))",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	// Create default admin user
	var adminCount int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@greenhaven.nl",
			Role:     models.RoleAdmin,
			Status:   models.UserStatusActive,
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	// Create default shop settings
	defaultSettings := []models.Setting{
		{
			Key:         models.SettingPriceMultiplier,
			Value:       models.JSONB{"value": 2.5},
			DataType:    "float",
			Description: "Retail markup applied to the supplier base price",
		},
		{
			Key:         models.SettingAssociateDiscount,
			Value:       models.JSONB{"value": 0.10},
			DataType:    "float",
			Description: "Discount fraction applied to associate accounts",
		},
		{
			Key:         models.SettingVATRate,
			Value:       models.JSONB{"value": 0.21},
			DataType:    "float",
			Description: "VAT rate applied to displayed prices",
		},
		{
			Key:         models.SettingEnableCache,
			Value:       models.JSONB{"value": true},
			DataType:    "boolean",
			Description: "Serve realtime price/stock lookups from the short-lived cache",
		},
		{
			Key:         models.SettingCacheTime,
			Value:       models.JSONB{"value": 300},
			DataType:    "integer",
			Description: "Realtime cache TTL in seconds",
		},
		{
			Key:         models.SettingSyncBatch,
			Value:       models.JSONB{"value": map[string]interface{}{"batch_size": 500, "pause_between_batches_ms": 1000, "max_concurrent_requests": 3}},
			DataType:    "json",
			Description: "Batch tuning for bulk sync runs",
		},
		{
			Key:         models.SettingNewBadgeDays,
			Value:       models.JSONB{"value": 30},
			DataType:    "integer",
			Description: "Days after first sync during which a product shows the new badge",
		},
		{
			Key:         models.SettingFeaturedThreshold,
			Value:       models.JSONB{"value": 10},
			DataType:    "integer",
			Description: "Cart plus order references needed for the featured badge",
		},
	}

	for _, setting := range defaultSettings {
		var count int64
		db.Model(&models.Setting{}).Where("key = ?", setting.Key).Count(&count)

		if count == 0 {
			if err := db.Create(&setting).Error; err != nil {
				log.Printf("Warning: Failed to create setting %s: %v", setting.Key, err)
			}
		}
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
