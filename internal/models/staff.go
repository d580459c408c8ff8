package models

import "time"

// StaffMember is an employee; salary fields feed payroll
type StaffMember struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string    `gorm:"type:varchar(255);not null;index" json:"organizationId"`
	Name           string    `gorm:"index" json:"name"`
	Role           string    `json:"role"` // teacher, cashier, manager...
	Phone          string    `json:"phone"`
	MonthlySalary  float64   `json:"monthlySalary"`
	HourlyRate     float64   `json:"hourlyRate"`
	JoinedAt       time.Time `json:"joinedAt"`
	Active         bool      `json:"active"`
	UpdatedAt      time.Time `json:"updatedAt"`
	SyncState
}

func (StaffMember) TableName() string { return "staff_members" }

func (s StaffMember) GetEntityID() string   { return s.ID }
func (s StaffMember) GetEntityType() string { return EntityTypeStaff }
