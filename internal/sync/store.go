package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xelth-com/bizsync/internal/models"
)

// LocalStore is the narrow cache contract the replay logic depends on
type LocalStore[T models.SyncableEntity] interface {
	Upsert(ctx context.Context, rec T) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (T, bool, error)
	SetSyncStatus(ctx context.Context, id string, status models.SyncStatus) error
	// Count counts cached records; an empty org counts every organization
	Count(ctx context.Context, org string) (int64, error)
	// SyncedIDs lists records of org that have no local changes
	SyncedIDs(ctx context.Context, org string) ([]string, error)
}

// GormStore is a LocalStore over one gorm model table
type GormStore[T models.SyncableEntity] struct {
	db *gorm.DB

	mu   gosync.Mutex
	subs map[chan []T]struct{}
}

// NewGormStore creates a store for the table of T
func NewGormStore[T models.SyncableEntity](db *gorm.DB) *GormStore[T] {
	return &GormStore[T]{db: db, subs: make(map[chan []T]struct{})}
}

func (s *GormStore[T]) Upsert(ctx context.Context, rec T) error {
	if err := upsertTx(s.db.WithContext(ctx), rec); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

func upsertTx[T models.SyncableEntity](tx *gorm.DB, rec T) error {
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
		return fmt.Errorf("upsert %s %s: %w", rec.GetEntityType(), rec.GetEntityID(), err)
	}
	return nil
}

func (s *GormStore[T]) Delete(ctx context.Context, id string) error {
	if err := deleteTx[T](s.db.WithContext(ctx), id); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

func deleteTx[T models.SyncableEntity](tx *gorm.DB, id string) error {
	var zero T
	if err := tx.Where("id = ?", id).Delete(&zero).Error; err != nil {
		return fmt.Errorf("delete %s %s: %w", zero.GetEntityType(), id, err)
	}
	return nil
}

func (s *GormStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var rec T
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// SetSyncStatus writes only the status column; updated_at keeps the
// business modification time.
func (s *GormStore[T]) SetSyncStatus(ctx context.Context, id string, status models.SyncStatus) error {
	if err := setStatusTx[T](s.db.WithContext(ctx), id, status); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

func setStatusTx[T models.SyncableEntity](tx *gorm.DB, id string, status models.SyncStatus) error {
	var zero T
	return tx.Model(&zero).Where("id = ?", id).UpdateColumn("sync_status", status).Error
}

func (s *GormStore[T]) Count(ctx context.Context, org string) (int64, error) {
	var zero T
	var n int64
	query := s.db.WithContext(ctx).Model(&zero)
	if org != "" {
		query = query.Where("organization_id = ?", org)
	}
	err := query.Count(&n).Error
	return n, err
}

func (s *GormStore[T]) SyncedIDs(ctx context.Context, org string) ([]string, error) {
	var zero T
	var ids []string
	err := s.db.WithContext(ctx).Model(&zero).
		Where("organization_id = ? AND sync_status = ?", org, models.SyncStatusSynced).
		Pluck("id", &ids).Error
	return ids, err
}

// CountPendingFor counts queued operations that touch record id
func (s *GormStore[T]) CountPendingFor(ctx context.Context, id string) (int64, error) {
	var zero T
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Where("entity_type = ? AND entity_id = ?", zero.GetEntityType(), id).
		Count(&n).Error
	return n, err
}

// HasPendingWrites reports whether record id still has local changes queued
func (s *GormStore[T]) HasPendingWrites(ctx context.Context, id string) (bool, error) {
	n, err := s.CountPendingFor(ctx, id)
	return n > 0, err
}

// List returns every cached record of org ordered by id
func (s *GormStore[T]) List(ctx context.Context, org string) ([]T, error) {
	var out []T
	query := s.db.WithContext(ctx)
	if org != "" {
		query = query.Where("organization_id = ?", org)
	}
	err := query.Order("id").Find(&out).Error
	return out, err
}

// StreamAll emits the full table now and again after every committed
// write through this store, until ctx is done. A slow reader only ever
// sees the latest snapshot.
func (s *GormStore[T]) StreamAll(ctx context.Context) <-chan []T {
	ch := make(chan []T, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if snap, err := s.List(ctx, ""); err == nil {
		ch <- snap
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func (s *GormStore[T]) publish(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return
	}

	snap, err := s.List(context.WithoutCancel(ctx), "")
	if err != nil {
		return
	}
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
