package models

import "time"

// StockItem is one inventory line of the organization
type StockItem struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string    `gorm:"type:varchar(255);not null;index" json:"organizationId"`
	SKU            string    `gorm:"index" json:"sku"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit"` // pcs, kg, box
	Quantity       float64   `json:"quantity"`
	UnitPrice      float64   `json:"unitPrice"`
	ReorderLevel   float64   `json:"reorderLevel"`
	UpdatedAt      time.Time `json:"updatedAt"`
	SyncState
}

func (StockItem) TableName() string { return "stock_items" }

func (s StockItem) GetEntityID() string   { return s.ID }
func (s StockItem) GetEntityType() string { return EntityTypeStock }

// BelowReorderLevel reports whether the item should be restocked
func (s StockItem) BelowReorderLevel() bool {
	return s.ReorderLevel > 0 && s.Quantity <= s.ReorderLevel
}
