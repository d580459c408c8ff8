package models

import "github.com/google/uuid"

// SyncableEntity is implemented by every cached record the sync layer owns
type SyncableEntity interface {
	GetEntityID() string
	GetEntityType() string
}

// NewID returns a client-generated identifier for records created offline.
// Cached tables are keyed by id alone, so ids must be unique across
// organizations; records created locally always take their id from here.
func NewID() string {
	return uuid.NewString()
}

// All returns every model that must be migrated for the sync subsystem
func All() []interface{} {
	return []interface{}{
		&PendingOperation{},
		&SyncMetadata{},
		&Customer{},
		&StaffMember{},
		&StockItem{},
		&Billing{},
		&Transaction{},
		&TeachingSession{},
		&Attendance{},
	}
}
