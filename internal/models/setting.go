// internal/models/setting.go
package models

// Setting is an admin-owned key/value configuration row. Values live in a
// JSONB envelope under "value" so a single table carries floats, booleans and
// structured blobs alike. Readers must apply a hard-coded fallback when a key
// is missing or malformed so sync and pricing never fail on configuration.
type Setting struct {
	BaseModel
	Key         string `json:"key" gorm:"size:100;uniqueIndex;not null"`
	Value       JSONB  `json:"value" gorm:"type:jsonb;not null"`
	DataType    string `json:"data_type" gorm:"size:20;not null"`
	Description string `json:"description" gorm:"type:text"`
}

// Well-known setting keys.
const (
	SettingPriceMultiplier   = "price_multiplier"
	SettingAssociateDiscount = "associate_discount"
	SettingVATRate           = "vat_rate"
	SettingEnableCache       = "enable_cache"
	SettingCacheTime         = "cache_time"
	SettingSyncBatch         = "sync_batch_settings"
	SettingLastSyncDate      = "last_sync_date"
	SettingNewBadgeDays      = "new_badge_days"
	SettingFeaturedThreshold = "featured_threshold"
)
