// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	RoleCustomer  UserRole = "customer"
	RoleAssociate UserRole = "associate"
	RoleAdmin     UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type SyncStatus string

const (
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusPartial    SyncStatus = "partial"
	SyncStatusError      SyncStatus = "error"
)

type SyncType string

const (
	SyncTypeChanges       SyncType = "sync-changes"
	SyncTypeFull          SyncType = "sync-full"
	SyncTypeCriticalStock SyncType = "sync-critical-stock"
	SyncTypePopular       SyncType = "sync-popular"
	SyncTypeNormal        SyncType = "sync-normal"
	SyncTypeCleanup       SyncType = "cleanup"
)

type StockStatus string

const (
	StockStatusOut StockStatus = "out_of_stock"
	StockStatusLow StockStatus = "low_stock"
	StockStatusIn  StockStatus = "in_stock"
)

// LowStockThreshold is the local low-stock boundary: quantity 0 is out of
// stock, anything below the threshold is low stock, the threshold itself and
// above counts as in stock. It is a shop rule, not a supplier field.
const LowStockThreshold = 5

func DeriveStockStatus(quantity int) StockStatus {
	switch {
	case quantity <= 0:
		return StockStatusOut
	case quantity < LowStockThreshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}
