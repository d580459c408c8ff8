package models

import "time"

// Entity type tags, shared with the sync layer and stored in pending_operations
const (
	EntityTypeCustomer    = "customers"
	EntityTypeStaff       = "staff"
	EntityTypeStock       = "stock"
	EntityTypeBilling     = "billings"
	EntityTypeTransaction = "transactions"
	EntityTypeSession     = "sessions"
	EntityTypeAttendance  = "attendance"
)

// Customer is the cached read model of a customer or student
type Customer struct {
	ID                 string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID     string    `gorm:"type:varchar(255);not null;index" json:"organizationId"`
	Name               string    `gorm:"index" json:"name"`
	Phone              string    `json:"phone"`
	Email              string    `json:"email"`
	Address            string    `json:"address"`
	TaxID              string    `json:"taxId"`
	OutstandingBalance float64   `json:"outstandingBalance"`
	UpdatedAt          time.Time `json:"updatedAt"`
	SyncState
}

func (Customer) TableName() string { return "customers" }

func (c Customer) GetEntityID() string   { return c.ID }
func (c Customer) GetEntityType() string { return EntityTypeCustomer }
