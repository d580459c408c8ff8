package models

import "time"

// Transaction is a payment or refund recorded against a bill
type Transaction struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string    `gorm:"type:varchar(255);not null;index" json:"organizationId"`
	BillingID      string    `gorm:"type:varchar(64);index" json:"billingId"`
	CustomerID     string    `gorm:"type:varchar(64);index" json:"customerId"`
	Kind           string    `gorm:"type:varchar(20)" json:"kind"`   // payment, refund
	Method         string    `gorm:"type:varchar(20)" json:"method"` // cash, card, upi, bank
	Amount         float64   `json:"amount"`
	Note           string    `json:"note"`
	OccurredAt     time.Time `gorm:"index" json:"occurredAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	SyncState
}

func (Transaction) TableName() string { return "transactions" }

func (t Transaction) GetEntityID() string   { return t.ID }
func (t Transaction) GetEntityType() string { return EntityTypeTransaction }
