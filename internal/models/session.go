package models

import "time"

// Teaching session lifecycle states
const (
	SessionScheduled  = "scheduled"
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionApproved   = "approved"
)

// TeachingSession is a lesson delivered by a staff member to a customer.
// Start, end and approval are separate remote transitions.
type TeachingSession struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string     `gorm:"type:varchar(255);not null;index" json:"organizationId"`
	StaffID        string     `gorm:"type:varchar(64);index" json:"staffId"`
	CustomerID     string     `gorm:"type:varchar(64);index" json:"customerId"`
	Subject        string     `json:"subject"`
	State          string     `gorm:"type:varchar(20);index" json:"state"`
	ScheduledAt    time.Time  `json:"scheduledAt"`
	StartedAt      *time.Time `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt"`
	ApprovedAt     *time.Time `json:"approvedAt"`
	ApprovedBy     string     `json:"approvedBy"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	SyncState
}

func (TeachingSession) TableName() string { return "teaching_sessions" }

func (s TeachingSession) GetEntityID() string   { return s.ID }
func (s TeachingSession) GetEntityType() string { return EntityTypeSession }

// Duration returns the delivered time, zero until the session has ended
func (s TeachingSession) Duration() time.Duration {
	if s.StartedAt == nil || s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(*s.StartedAt)
}
