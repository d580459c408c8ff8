package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/xelth-com/bizsync/internal/models"
)

// MetadataManager keeps one sync_metadata row per organization and entity
// type. It is written only at the boundaries of a full pull.
type MetadataManager struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMetadataManager creates a manager on db
func NewMetadataManager(db *gorm.DB) *MetadataManager {
	return &MetadataManager{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Begin makes sure the row exists and returns the pull start time
func (m *MetadataManager) Begin(ctx context.Context, org string, entity EntityType) (time.Time, error) {
	start := m.now()
	err := m.update(ctx, org, entity, func(*models.SyncMetadata) {})
	return start, err
}

// RecordSuccess stores a completed full pull
func (m *MetadataManager) RecordSuccess(ctx context.Context, org string, entity EntityType, records int, took time.Duration) error {
	now := m.now()
	return m.update(ctx, org, entity, func(meta *models.SyncMetadata) {
		meta.LastSyncAt = &now
		meta.LastSyncSuccess = true
		meta.LastError = nil
		meta.RetryCount = 0
		meta.RecordsSynced = records
		meta.SyncDurationMs = took.Milliseconds()
	})
}

// RecordFailure stores a failed full pull. LastSyncAt keeps the last success.
func (m *MetadataManager) RecordFailure(ctx context.Context, org string, entity EntityType, cause error, took time.Duration) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return m.update(ctx, org, entity, func(meta *models.SyncMetadata) {
		meta.LastSyncSuccess = false
		meta.LastError = &msg
		meta.RetryCount++
		meta.SyncDurationMs = took.Milliseconds()
	})
}

// Get returns the row for entity, nil when it was never pulled
func (m *MetadataManager) Get(ctx context.Context, org string, entity EntityType) (*models.SyncMetadata, error) {
	var meta models.SyncMetadata
	err := m.db.WithContext(ctx).
		Where("organization_id = ? AND entity_type = ?", org, string(entity)).
		First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// List returns all rows of org
func (m *MetadataManager) List(ctx context.Context, org string) ([]models.SyncMetadata, error) {
	var out []models.SyncMetadata
	err := m.db.WithContext(ctx).
		Where("organization_id = ?", org).
		Order("entity_type").
		Find(&out).Error
	return out, err
}

// ResetRetryCount clears the error history of org without touching cached data
func (m *MetadataManager) ResetRetryCount(ctx context.Context, org string) error {
	return m.db.WithContext(ctx).Model(&models.SyncMetadata{}).
		Where("organization_id = ?", org).
		Updates(map[string]interface{}{"retry_count": 0, "last_error": nil}).Error
}

// NeedsRefresh reports whether entity has no successful pull newer than maxAge
func (m *MetadataManager) NeedsRefresh(ctx context.Context, org string, entity EntityType, maxAge time.Duration) (bool, error) {
	meta, err := m.Get(ctx, org, entity)
	if err != nil {
		return false, err
	}
	if meta == nil || meta.LastSyncAt == nil || !meta.LastSyncSuccess {
		return true, nil
	}
	return m.now().Sub(*meta.LastSyncAt) >= maxAge, nil
}

func (m *MetadataManager) update(ctx context.Context, org string, entity EntityType, mutate func(*models.SyncMetadata)) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meta models.SyncMetadata
		err := tx.Where("organization_id = ? AND entity_type = ?", org, string(entity)).First(&meta).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			meta = models.SyncMetadata{OrganizationID: org, EntityType: string(entity)}
		} else if err != nil {
			return err
		}
		mutate(&meta)
		return tx.Save(&meta).Error
	})
	if err != nil {
		return fmt.Errorf("update sync metadata %s/%s: %w", org, entity, err)
	}
	return nil
}
