package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

func TestStore_UpsertAndGet(t *testing.T) {
	store := NewGormStore[models.Customer](newTestDB(t))
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Upsert(ctx, customerToLocal(customer("c1", "Asha"), testOrg, models.SyncStatusSynced)))
	require.NoError(t, store.Upsert(ctx, customerToLocal(customer("c1", "Asha R"), testOrg, models.SyncStatusPending)))

	c, ok, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Asha R", c.Name)
	assert.Equal(t, models.SyncStatusPending, c.SyncStatus)

	n, err := store.Count(ctx, testOrg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStore_UpsertKeepsFalseFlags(t *testing.T) {
	store := NewGormStore[models.StaffMember](newTestDB(t))
	ctx := context.Background()

	member := remote.StaffMember{ID: "st1", Name: "Nikhil", Role: "teacher", Active: true, JoinedAt: baseTime, UpdatedAt: baseTime}
	require.NoError(t, store.Upsert(ctx, staffToLocal(member, testOrg, models.SyncStatusSynced)))

	member.Active = false
	require.NoError(t, store.Upsert(ctx, staffToLocal(member, testOrg, models.SyncStatusSynced)))

	got, _, err := store.Get(ctx, "st1")
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestStore_SetSyncStatusKeepsUpdatedAt(t *testing.T) {
	store := NewGormStore[models.Customer](newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, customerToLocal(customer("c1", "Asha"), testOrg, models.SyncStatusPending)))
	require.NoError(t, store.SetSyncStatus(ctx, "c1", models.SyncStatusFailed))

	c, _, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, c.SyncStatus)
	assert.True(t, c.UpdatedAt.Equal(baseTime), "status writes are not business modifications")

	// Unknown ids are a no-op
	assert.NoError(t, store.SetSyncStatus(ctx, "missing", models.SyncStatusSynced))
}

func TestStore_CountAndSyncedIDs(t *testing.T) {
	store := NewGormStore[models.Customer](newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, customerToLocal(customer("c1", "A"), testOrg, models.SyncStatusSynced)))
	require.NoError(t, store.Upsert(ctx, customerToLocal(customer("c2", "B"), testOrg, models.SyncStatusPending)))
	require.NoError(t, store.Upsert(ctx, customerToLocal(customer("c3", "C"), "org-2", models.SyncStatusSynced)))

	n, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	ids, err := store.SyncedIDs(ctx, testOrg)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	list, err := store.List(ctx, testOrg)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, store.Delete(ctx, "c1"))
	n, err = store.Count(ctx, testOrg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStore_HasPendingWrites(t *testing.T) {
	db := newTestDB(t)
	q := NewGormQueue(db)
	store := NewGormStore[models.Customer](db)
	ctx := context.Background()

	c := customer("c1", "Asha")
	_, err := RecordWrite(ctx, q, store, OpCreate, testOrg, customerToLocal(c, testOrg, models.SyncStatusSynced), c)
	require.NoError(t, err)

	pending, err := store.HasPendingWrites(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, pending)

	local, _, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPending, local.SyncStatus, "recorded writes are always pending")

	_, err = RecordDelete[models.Customer](ctx, q, store, testOrg, c)
	require.NoError(t, err)
	_, ok, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.CountPendingFor(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRecordWrite_RejectsMismatchedIDs(t *testing.T) {
	db := newTestDB(t)
	q := NewGormQueue(db)
	store := NewGormStore[models.Customer](db)

	_, err := RecordWrite(context.Background(), q, store, OpUpdate, testOrg,
		customerToLocal(customer("c1", "A"), testOrg, models.SyncStatusPending), customer("c2", "A"))
	assert.Error(t, err)

	_, err = RecordWrite(context.Background(), q, store, OpDelete, testOrg,
		customerToLocal(customer("c1", "A"), testOrg, models.SyncStatusPending), customer("c1", "A"))
	assert.Error(t, err)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "stream closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}
	var zero T
	return zero
}

func TestStore_StreamAll(t *testing.T) {
	store := NewGormStore[models.Customer](newTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())

	stream := store.StreamAll(ctx)
	assert.Empty(t, receive(t, stream))

	require.NoError(t, store.Upsert(context.Background(), customerToLocal(customer("c1", "A"), testOrg, models.SyncStatusPending)))
	snap := receive(t, stream)
	require.Len(t, snap, 1)
	assert.Equal(t, models.SyncStatusPending, snap[0].SyncStatus)

	// Unread snapshots are replaced by the newest one
	require.NoError(t, store.SetSyncStatus(context.Background(), "c1", models.SyncStatusSyncing))
	require.NoError(t, store.SetSyncStatus(context.Background(), "c1", models.SyncStatusSynced))
	snap = receive(t, stream)
	require.Len(t, snap, 1)
	assert.Equal(t, models.SyncStatusSynced, snap[0].SyncStatus)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
