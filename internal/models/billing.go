package models

import (
	"time"

	"gorm.io/datatypes"
)

// BillingLine is one stock line on a bill
type BillingLine struct {
	StockItemID string  `json:"stockItemId"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// Billing is an invoice issued to a customer.
// It references customers and stock items by id.
type Billing struct {
	ID             string                          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string                          `gorm:"type:varchar(255);not null;index" json:"organizationId"`
	Number         string                          `gorm:"index" json:"number"`
	CustomerID     string                          `gorm:"type:varchar(64);index" json:"customerId"`
	Status         string                          `gorm:"type:varchar(20)" json:"status"` // draft, issued, paid, cancelled
	Lines          datatypes.JSONSlice[BillingLine] `json:"lines"`
	Tax            float64                         `json:"tax"`
	Total          float64                         `json:"total"`
	IssuedAt       time.Time                       `json:"issuedAt"`
	UpdatedAt      time.Time                       `json:"updatedAt"`
	SyncState
}

func (Billing) TableName() string { return "billings" }

func (b Billing) GetEntityID() string   { return b.ID }
func (b Billing) GetEntityType() string { return EntityTypeBilling }

// Subtotal sums the line amounts without tax
func (b Billing) Subtotal() float64 {
	var sum float64
	for _, l := range b.Lines {
		sum += l.Quantity * l.UnitPrice
	}
	return sum
}
