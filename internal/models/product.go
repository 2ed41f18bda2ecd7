// internal/models/product.go
package models

import (
	"time"

	"github.com/lib/pq"
)

// Product is the locally persisted copy of a supplier catalog record. Rows
// are created on first sync and updated on later syncs; sync never deletes a
// row, it only flips IsActive, so favorites and order history stay intact.
type Product struct {
	BaseModel
	NieuwkoopID    string         `json:"nieuwkoop_id" gorm:"size:50;uniqueIndex;not null"`
	SKU            string         `json:"sku" gorm:"size:50;uniqueIndex;not null"`
	Slug           string         `json:"slug" gorm:"size:255;uniqueIndex;not null"`
	Name           string         `json:"name" gorm:"size:255;not null"`
	Description    string         `json:"description" gorm:"type:text"`
	Category       string         `json:"category" gorm:"size:100;index"`
	Subcategory    string         `json:"subcategory" gorm:"size:100;index"`
	BasePrice      float64        `json:"base_price" gorm:"type:decimal(10,2);not null"`
	StockQuantity  int            `json:"stock_quantity" gorm:"default:0"`
	IsActive       bool           `json:"is_active" gorm:"default:false;index"`
	Sysmodified    time.Time      `json:"sysmodified" gorm:"index"`
	LastStockCheck *time.Time     `json:"last_stock_check" gorm:"index"`
	PictureName    string         `json:"picture_name" gorm:"size:255"`
	Specifications JSONB          `json:"specifications" gorm:"type:jsonb"`
	Tags           pq.StringArray `json:"tags" gorm:"type:text[]"`
	CartCount      int64          `json:"cart_count" gorm:"default:0"`
	OrderCount     int64          `json:"order_count" gorm:"default:0"`
}

// ReferenceCount is the popularity signal used by the popular refresh tier
// and the featured badge.
func (p *Product) ReferenceCount() int64 {
	return p.CartCount + p.OrderCount
}

// ImageURLs are derived from the SKU and picture name at read time; absolute
// URLs are never stored.
func (p *Product) ImageURLs(baseURL string) []string {
	if p.PictureName == "" {
		return nil
	}
	return []string{baseURL + "/" + p.PictureName}
}
