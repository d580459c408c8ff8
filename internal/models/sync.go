package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncStatus is the per-record replication state shown to the user
type SyncStatus string

const (
	SyncStatusSyncing SyncStatus = "SYNCING" // replay in flight
	SyncStatusPending SyncStatus = "PENDING" // queued local changes
	SyncStatusSynced  SyncStatus = "SYNCED"  // no queued changes
	SyncStatusFailed  SyncStatus = "FAILED"  // needs attention
)

// SyncState is embedded into every cached domain record.
// Only the sync layer writes it.
type SyncState struct {
	SyncStatus SyncStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"syncStatus"`
}

// CurrentSyncStatus returns the stored status
func (s SyncState) CurrentSyncStatus() SyncStatus {
	return s.SyncStatus
}

// PendingOperation is one locally originated mutation that the remote
// system has not confirmed yet. Rows are created together with the cache
// write they describe and removed once the replay succeeds or converges.
type PendingOperation struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityType     string         `gorm:"type:varchar(50);not null;index:idx_pending_key,priority:1;index:idx_pending_entity,priority:1" json:"entityType"`
	EntityID       string         `gorm:"type:varchar(255);not null;index:idx_pending_key,priority:2;index:idx_pending_entity,priority:2" json:"entityId"`
	OperationType  string         `gorm:"type:varchar(32);not null;index:idx_pending_key,priority:3" json:"operationType"`
	OrganizationID string         `gorm:"type:varchar(255);not null;index:idx_pending_key,priority:4;index:idx_pending_org" json:"organizationId"`
	Payload        datatypes.JSON `json:"payload"`
	FailedAttempts int            `gorm:"not null;default:0" json:"failedAttempts"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"createdAt"`
}

// TableName specifies the table name
func (PendingOperation) TableName() string {
	return "pending_operations"
}

// SyncMetadata records the outcome of the last full refresh of one entity
// type for one organization. It is not per record.
type SyncMetadata struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OrganizationID  string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_org_entity" json:"organizationId"`
	EntityType      string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_org_entity" json:"entityType"`
	LastSyncAt      *time.Time `json:"lastSyncAt"`
	LastSyncSuccess bool       `gorm:"not null;default:false" json:"lastSyncSuccess"`
	LastError       *string    `gorm:"type:text" json:"lastError,omitempty"`
	RetryCount      int        `gorm:"not null;default:0" json:"retryCount"`
	RecordsSynced   int        `gorm:"default:0" json:"recordsSynced"`
	SyncDurationMs  int64      `json:"syncDurationMs"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TableName specifies the table name
func (SyncMetadata) TableName() string {
	return "sync_metadata"
}
