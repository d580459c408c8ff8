package sync

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

// RecordWrite is the producer side used by application code: it stores
// local as PENDING and appends the operation carrying the snapshot rec,
// both in one transaction. kind is CREATE, UPDATE or a session transition.
func RecordWrite[L models.SyncableEntity, R remote.Record](
	ctx context.Context,
	q *GormQueue,
	store *GormStore[L],
	kind OperationType,
	org string,
	local L,
	rec R,
) (*models.PendingOperation, error) {
	if kind == OpDelete {
		return nil, fmt.Errorf("use RecordDelete for %s", kind)
	}
	if local.GetEntityID() != rec.RecordID() {
		return nil, fmt.Errorf("local id %q and snapshot id %q differ", local.GetEntityID(), rec.RecordID())
	}

	op, err := NewPendingOperation(EntityType(local.GetEntityType()), kind, org, rec)
	if err != nil {
		return nil, err
	}

	err = q.Record(ctx, op, func(tx *gorm.DB) error {
		if err := upsertTx(tx, local); err != nil {
			return err
		}
		return setStatusTx[L](tx, local.GetEntityID(), models.SyncStatusPending)
	})
	if err != nil {
		return nil, err
	}
	store.publish(ctx)
	return op, nil
}

// RecordDelete removes the cached record and queues its DELETE in one transaction
func RecordDelete[L models.SyncableEntity, R remote.Record](
	ctx context.Context,
	q *GormQueue,
	store *GormStore[L],
	org string,
	rec R,
) (*models.PendingOperation, error) {
	var zero L
	op, err := NewPendingOperation(EntityType(zero.GetEntityType()), OpDelete, org, rec)
	if err != nil {
		return nil, err
	}

	err = q.Record(ctx, op, func(tx *gorm.DB) error {
		return deleteTx[L](tx, rec.RecordID())
	})
	if err != nil {
		return nil, err
	}
	store.publish(ctx)
	return op, nil
}
