// internal/services/settings_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greenhaven/garden-backend/internal/models"
	"github.com/greenhaven/garden-backend/internal/pricing"
	"github.com/greenhaven/garden-backend/internal/supplier"
	"github.com/greenhaven/garden-backend/internal/syncer"
)

// Hard fallbacks. A missing or malformed setting row degrades to these, it
// never fails a price calculation or a sync run.
const (
	defaultPriceMultiplier   = 2.5
	defaultAssociateDiscount = 0.10
	defaultVATRate           = 0.21
	defaultCacheEnabled      = true
	defaultCacheTimeSeconds  = 300
	defaultNewBadgeDays      = 30
	defaultFeaturedThreshold = 10
)

// SettingsService reads and writes the admin-owned configuration table.
// Every getter carries its own fallback.
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

func (s *SettingsService) get(key string) (models.JSONB, bool) {
	var setting models.Setting
	if err := s.db.Where("key = ?", key).First(&setting).Error; err != nil {
		return nil, false
	}
	return setting.Value, true
}

// Values are stored in a JSONB envelope under "value".
func (s *SettingsService) getFloat(key string, fallback float64) float64 {
	envelope, ok := s.get(key)
	if !ok {
		return fallback
	}
	if v, ok := envelope["value"].(float64); ok {
		return v
	}
	return fallback
}

func (s *SettingsService) getInt(key string, fallback int) int {
	return int(s.getFloat(key, float64(fallback)))
}

func (s *SettingsService) getBool(key string, fallback bool) bool {
	envelope, ok := s.get(key)
	if !ok {
		return fallback
	}
	if v, ok := envelope["value"].(bool); ok {
		return v
	}
	return fallback
}

func (s *SettingsService) getString(key string) (string, bool) {
	envelope, ok := s.get(key)
	if !ok {
		return "", false
	}
	v, ok := envelope["value"].(string)
	return v, ok
}

// PricingSnapshot reads all three pricing knobs at once so a single request
// prices every product with one consistent configuration.
func (s *SettingsService) PricingSnapshot() pricing.Config {
	return pricing.Config{
		PriceMultiplier:   s.getFloat(models.SettingPriceMultiplier, defaultPriceMultiplier),
		AssociateDiscount: s.getFloat(models.SettingAssociateDiscount, defaultAssociateDiscount),
		VATRate:           s.getFloat(models.SettingVATRate, defaultVATRate),
	}
}

func (s *SettingsService) BatchSettings() syncer.BatchConfig {
	var cfg syncer.BatchConfig
	envelope, ok := s.get(models.SettingSyncBatch)
	if !ok {
		return cfg
	}
	raw, err := json.Marshal(envelope["value"])
	if err != nil {
		return cfg
	}
	// Decode errors leave the zero config; the reconciler applies defaults.
	_ = json.Unmarshal(raw, &cfg)
	return cfg
}

func (s *SettingsService) CacheSettings() (bool, time.Duration) {
	enabled := s.getBool(models.SettingEnableCache, defaultCacheEnabled)
	seconds := s.getInt(models.SettingCacheTime, defaultCacheTimeSeconds)
	if seconds <= 0 {
		seconds = defaultCacheTimeSeconds
	}
	return enabled, time.Duration(seconds) * time.Second
}

// Watermark is the last clean incremental sync time. Before the first clean
// run it is the supplier's sentinel, which makes the first incremental sync a
// full pull.
func (s *SettingsService) Watermark() time.Time {
	raw, ok := s.getString(models.SettingLastSyncDate)
	if !ok {
		return supplier.SentinelSince
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return supplier.SentinelSince
	}
	return t
}

func (s *SettingsService) AdvanceWatermark(t time.Time) error {
	return s.Upsert(models.SettingLastSyncDate, t.UTC().Format(time.RFC3339), "string",
		"Timestamp of the last fully clean incremental sync")
}

func (s *SettingsService) NewBadgeDays() int {
	return s.getInt(models.SettingNewBadgeDays, defaultNewBadgeDays)
}

func (s *SettingsService) FeaturedThreshold() int64 {
	return int64(s.getInt(models.SettingFeaturedThreshold, defaultFeaturedThreshold))
}

// --- admin surface ---

func (s *SettingsService) List() ([]models.Setting, error) {
	var settings []models.Setting
	if err := s.db.Order("key").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}

func (s *SettingsService) Get(key string) (*models.Setting, error) {
	var setting models.Setting
	if err := s.db.Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("setting not found: %s", key)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &setting, nil
}

// Upsert writes one setting row, creating it when absent.
func (s *SettingsService) Upsert(key string, value interface{}, dataType, description string) error {
	setting := models.Setting{
		Key:         key,
		Value:       models.JSONB{"value": value},
		DataType:    dataType,
		Description: description,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "data_type", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}
