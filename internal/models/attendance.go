package models

import "time"

// Attendance is one staff check-in/check-out record, optionally tied to a session
type Attendance struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string     `gorm:"type:varchar(255);not null;index" json:"organizationId"`
	StaffID        string     `gorm:"type:varchar(64);index" json:"staffId"`
	SessionID      string     `gorm:"type:varchar(64)" json:"sessionId"`
	Day            time.Time  `gorm:"index" json:"day"`
	Status         string     `gorm:"type:varchar(20)" json:"status"` // present, absent, leave
	CheckIn        *time.Time `json:"checkIn"`
	CheckOut       *time.Time `json:"checkOut"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	SyncState
}

func (Attendance) TableName() string { return "attendance" }

func (a Attendance) GetEntityID() string   { return a.ID }
func (a Attendance) GetEntityType() string { return EntityTypeAttendance }

// HoursWorked returns the checked-in time in hours, used for hourly payroll
func (a Attendance) HoursWorked() float64 {
	if a.CheckIn == nil || a.CheckOut == nil {
		return 0
	}
	return a.CheckOut.Sub(*a.CheckIn).Hours()
}
