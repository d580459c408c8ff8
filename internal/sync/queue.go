package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/xelth-com/bizsync/internal/models"
)

// ErrOperationNotFound is returned when an operation id is no longer queued
var ErrOperationNotFound = errors.New("pending operation not found")

// BatchFilter narrows NextBatch. Zero values mean "no filter".
type BatchFilter struct {
	EntityType     EntityType
	OrganizationID string
	Limit          int
	Offset         int
	// MaxRetries excludes operations with FailedAttempts >= MaxRetries
	MaxRetries int
}

// OperationQueue is the durable log of unconfirmed local mutations.
// Services receive it explicitly; there is no package-level queue.
type OperationQueue interface {
	Enqueue(ctx context.Context, op *models.PendingOperation) error
	Get(ctx context.Context, id uint64) (models.PendingOperation, error)
	// NextBatch returns operations oldest first, ties broken by id
	NextBatch(ctx context.Context, f BatchFilter) ([]models.PendingOperation, error)
	CountPendingFor(ctx context.Context, entity EntityType, org, entityID string) (int64, error)
	// FailureCountFor sums failed attempts over all queued operations of one record
	FailureCountFor(ctx context.Context, entity EntityType, org, entityID string) (int, error)
	PendingEntityIDs(ctx context.Context, entity EntityType, org string) (map[string]struct{}, error)

	Delete(ctx context.Context, id uint64) error
	DeleteByKey(ctx context.Context, key QueueKey) error
	// IncrementFailures bumps one operation and returns its new count
	IncrementFailures(ctx context.Context, id uint64) (int, error)
	IncrementFailureCount(ctx context.Context, key QueueKey) error

	ResetFailures(ctx context.Context, key QueueKey) error
	ResetAllFailures(ctx context.Context, org string) (int64, error)
}

// QueueStat is one row of Stats
type QueueStat struct {
	EntityType     string
	Pending        int64
	Failing        int64
	MaxAttempts    int
	OldestQueuedAt time.Time
}

// GormQueue stores pending operations in the pending_operations table
type GormQueue struct {
	db *gorm.DB
}

var _ OperationQueue = (*GormQueue)(nil)

// NewGormQueue creates a queue on db
func NewGormQueue(db *gorm.DB) *GormQueue {
	return &GormQueue{db: db}
}

func validateOperation(op *models.PendingOperation) error {
	switch {
	case op.EntityType == "":
		return fmt.Errorf("pending operation: entity type is required")
	case op.EntityID == "":
		return fmt.Errorf("pending operation: entity id is required")
	case op.OperationType == "":
		return fmt.Errorf("pending operation: operation type is required")
	case op.OrganizationID == "":
		return fmt.Errorf("pending operation: organization is required")
	}
	return nil
}

func (q *GormQueue) Enqueue(ctx context.Context, op *models.PendingOperation) error {
	return enqueueTx(q.db.WithContext(ctx), op)
}

func enqueueTx(tx *gorm.DB, op *models.PendingOperation) error {
	if err := validateOperation(op); err != nil {
		return err
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	op.ID = 0
	op.FailedAttempts = 0
	if err := tx.Create(op).Error; err != nil {
		return fmt.Errorf("enqueue %s %s: %w", op.OperationType, op.EntityID, err)
	}
	return nil
}

// Record commits a local cache write and the operation describing it in
// one transaction, so neither can exist without the other.
func (q *GormQueue) Record(ctx context.Context, op *models.PendingOperation, apply func(tx *gorm.DB) error) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := apply(tx); err != nil {
			return err
		}
		return enqueueTx(tx, op)
	})
}

func (q *GormQueue) Get(ctx context.Context, id uint64) (models.PendingOperation, error) {
	var op models.PendingOperation
	err := q.db.WithContext(ctx).Where("id = ?", id).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return op, ErrOperationNotFound
	}
	return op, err
}

func (q *GormQueue) NextBatch(ctx context.Context, f BatchFilter) ([]models.PendingOperation, error) {
	query := q.db.WithContext(ctx).Model(&models.PendingOperation{})
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", string(f.EntityType))
	}
	if f.OrganizationID != "" {
		query = query.Where("organization_id = ?", f.OrganizationID)
	}
	if f.MaxRetries > 0 {
		query = query.Where("failed_attempts < ?", f.MaxRetries)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}

	var ops []models.PendingOperation
	if err := query.Order("created_at ASC").Order("id ASC").Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("load pending operations: %w", err)
	}
	return ops, nil
}

func (q *GormQueue) CountPendingFor(ctx context.Context, entity EntityType, org, entityID string) (int64, error) {
	var n int64
	err := q.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Where("entity_type = ? AND organization_id = ? AND entity_id = ?", string(entity), org, entityID).
		Count(&n).Error
	return n, err
}

func (q *GormQueue) FailureCountFor(ctx context.Context, entity EntityType, org, entityID string) (int, error) {
	var total int64
	err := q.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Select("COALESCE(SUM(failed_attempts), 0)").
		Where("entity_type = ? AND organization_id = ? AND entity_id = ?", string(entity), org, entityID).
		Scan(&total).Error
	return int(total), err
}

func (q *GormQueue) PendingEntityIDs(ctx context.Context, entity EntityType, org string) (map[string]struct{}, error) {
	var ids []string
	err := q.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Distinct("entity_id").
		Where("entity_type = ? AND organization_id = ?", string(entity), org).
		Pluck("entity_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load pending ids: %w", err)
	}

	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (q *GormQueue) Delete(ctx context.Context, id uint64) error {
	return q.db.WithContext(ctx).Delete(&models.PendingOperation{}, id).Error
}

func (q *GormQueue) DeleteByKey(ctx context.Context, key QueueKey) error {
	return q.byKey(ctx, key).Delete(&models.PendingOperation{}).Error
}

func (q *GormQueue) IncrementFailures(ctx context.Context, id uint64) (int, error) {
	var count int
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PendingOperation{}).
			Where("id = ?", id).
			UpdateColumn("failed_attempts", gorm.Expr("failed_attempts + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOperationNotFound
		}
		return tx.Model(&models.PendingOperation{}).
			Select("failed_attempts").
			Where("id = ?", id).
			Scan(&count).Error
	})
	return count, err
}

func (q *GormQueue) IncrementFailureCount(ctx context.Context, key QueueKey) error {
	return q.byKey(ctx, key).Model(&models.PendingOperation{}).
		UpdateColumn("failed_attempts", gorm.Expr("failed_attempts + 1")).Error
}

func (q *GormQueue) ResetFailures(ctx context.Context, key QueueKey) error {
	return q.byKey(ctx, key).Model(&models.PendingOperation{}).
		UpdateColumn("failed_attempts", 0).Error
}

func (q *GormQueue) ResetAllFailures(ctx context.Context, org string) (int64, error) {
	res := q.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Where("organization_id = ? AND failed_attempts > 0", org).
		UpdateColumn("failed_attempts", 0)
	return res.RowsAffected, res.Error
}

// Stats summarises the queue of one organization per entity type
func (q *GormQueue) Stats(ctx context.Context, org string) ([]QueueStat, error) {
	type row struct {
		EntityType  string
		Pending     int64
		Failing     int64
		MaxAttempts int
	}
	var rows []row
	err := q.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Select("entity_type, COUNT(*) AS pending, " +
			"SUM(CASE WHEN failed_attempts > 0 THEN 1 ELSE 0 END) AS failing, " +
			"MAX(failed_attempts) AS max_attempts").
		Where("organization_id = ?", org).
		Group("entity_type").
		Order("entity_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	stats := make([]QueueStat, 0, len(rows))
	for _, r := range rows {
		stat := QueueStat{EntityType: r.EntityType, Pending: r.Pending, Failing: r.Failing, MaxAttempts: r.MaxAttempts}
		var oldest models.PendingOperation
		err := q.db.WithContext(ctx).
			Where("organization_id = ? AND entity_type = ?", org, r.EntityType).
			Order("created_at ASC").Order("id ASC").
			First(&oldest).Error
		if err == nil {
			stat.OldestQueuedAt = oldest.CreatedAt
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func (q *GormQueue) byKey(ctx context.Context, key QueueKey) *gorm.DB {
	return q.db.WithContext(ctx).Where(
		"entity_type = ? AND entity_id = ? AND operation_type = ? AND organization_id = ?",
		string(key.EntityType), key.EntityID, string(key.OperationType), key.OrganizationID,
	)
}
