package sync

import (
	"context"
	"fmt"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/xelth-com/bizsync/internal/config"
	"github.com/xelth-com/bizsync/internal/database"
	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

const testOrg = "org-1"

var baseTime = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "sync.db"),
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db.DB
}

// callLog is shared by every fake gateway of a test so ordering across
// entity types can be asserted.
type callLog struct {
	mu    gosync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.all() {
		if c == call {
			n++
		}
	}
	return n
}

// fakeGateway is an in-memory backend for one resource
type fakeGateway[R remote.Record] struct {
	name string
	log  *callLog

	mu       gosync.Mutex
	records  map[string]R
	failures map[string]error
	listErr  error
	hook     func(ctx context.Context, call string) error
}

func newFakeGateway[R remote.Record](name string, log *callLog) *fakeGateway[R] {
	return &fakeGateway[R]{
		name:     name,
		log:      log,
		records:  make(map[string]R),
		failures: make(map[string]error),
	}
}

// failOn makes call ("create:c1") fail with err until cleared with nil
func (g *fakeGateway[R]) failOn(call string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, call)
		return
	}
	g.failures[call] = err
}

func (g *fakeGateway[R]) put(rec R) {
	g.mu.Lock()
	g.records[rec.RecordID()] = rec
	g.mu.Unlock()
}

func (g *fakeGateway[R]) get(id string) (R, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[id]
	return rec, ok
}

func (g *fakeGateway[R]) enter(ctx context.Context, call string) error {
	g.log.add(g.name + "." + call)
	g.mu.Lock()
	hook := g.hook
	err := g.failures[call]
	g.mu.Unlock()
	if hook != nil {
		if herr := hook(ctx, call); herr != nil {
			return herr
		}
	}
	return err
}

func (g *fakeGateway[R]) Create(ctx context.Context, org string, rec R) (R, error) {
	if err := g.enter(ctx, "create:"+rec.RecordID()); err != nil {
		var zero R
		return zero, err
	}
	g.put(rec)
	return rec, nil
}

func (g *fakeGateway[R]) Update(ctx context.Context, org string, rec R) (R, error) {
	if err := g.enter(ctx, "update:"+rec.RecordID()); err != nil {
		var zero R
		return zero, err
	}
	if _, ok := g.get(rec.RecordID()); !ok {
		var zero R
		return zero, &remote.NotFoundError{Resource: g.name, ID: rec.RecordID()}
	}
	g.put(rec)
	return rec, nil
}

func (g *fakeGateway[R]) Delete(ctx context.Context, org, id string) error {
	if err := g.enter(ctx, "delete:"+id); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.records[id]; !ok {
		return &remote.NotFoundError{Resource: g.name, ID: id}
	}
	delete(g.records, id)
	return nil
}

func (g *fakeGateway[R]) ListAll(ctx context.Context, org string) ([]R, error) {
	if err := g.enter(ctx, "list"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]R, 0, len(g.records))
	for _, r := range g.records {
		out = append(out, r)
	}
	return out, nil
}

// fakeSessionGateway adds the lifecycle transitions
type fakeSessionGateway struct {
	*fakeGateway[remote.TeachingSession]
}

func (g *fakeSessionGateway) transition(ctx context.Context, call, id string, apply func(*remote.TeachingSession)) (remote.TeachingSession, error) {
	if err := g.enter(ctx, call+":"+id); err != nil {
		return remote.TeachingSession{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.records[id]
	if !ok {
		return remote.TeachingSession{}, &remote.NotFoundError{Resource: "sessions", ID: id}
	}
	apply(&s)
	g.records[id] = s
	return s, nil
}

func (g *fakeSessionGateway) StartSession(ctx context.Context, org, id string, at time.Time) (remote.TeachingSession, error) {
	return g.transition(ctx, "start", id, func(s *remote.TeachingSession) {
		s.State, s.StartedAt = models.SessionInProgress, &at
	})
}

func (g *fakeSessionGateway) EndSession(ctx context.Context, org, id string, at time.Time) (remote.TeachingSession, error) {
	return g.transition(ctx, "end", id, func(s *remote.TeachingSession) {
		s.State, s.EndedAt = models.SessionCompleted, &at
	})
}

func (g *fakeSessionGateway) ApproveSession(ctx context.Context, org, id, approver string) (remote.TeachingSession, error) {
	return g.transition(ctx, "approve", id, func(s *remote.TeachingSession) {
		s.State, s.ApprovedBy = models.SessionApproved, approver
	})
}

// harness wires customer, stock, billing and session services on one database
type harness struct {
	db    *gorm.DB
	queue *GormQueue
	meta  *MetadataManager
	calls *callLog

	customers   *GormStore[models.Customer]
	customerGW  *fakeGateway[remote.Customer]
	customerSvc *CustomerSync

	stock    *GormStore[models.StockItem]
	stockGW  *fakeGateway[remote.StockItem]
	stockSvc *StockSync

	billings   *GormStore[models.Billing]
	billingGW  *fakeGateway[remote.Billing]
	billingSvc *BillingSync

	sessions   *GormStore[models.TeachingSession]
	sessionGW  *fakeSessionGateway
	sessionSvc *SessionSync
}

func newHarness(t *testing.T, opts ServiceOptions) *harness {
	t.Helper()
	db := newTestDB(t)
	calls := &callLog{}
	queue := NewGormQueue(db)
	opts.Logger = zerolog.Nop()

	h := &harness{
		db:         db,
		queue:      queue,
		meta:       NewMetadataManager(db),
		calls:      calls,
		customers:  NewGormStore[models.Customer](db),
		customerGW: newFakeGateway[remote.Customer]("customers", calls),
		stock:      NewGormStore[models.StockItem](db),
		stockGW:    newFakeGateway[remote.StockItem]("stock", calls),
		billings:   NewGormStore[models.Billing](db),
		billingGW:  newFakeGateway[remote.Billing]("billings", calls),
		sessions:   NewGormStore[models.TeachingSession](db),
		sessionGW:  &fakeSessionGateway{newFakeGateway[remote.TeachingSession]("sessions", calls)},
	}
	h.customerSvc = NewCustomerSync(h.customerGW, h.customers, queue, opts)
	h.stockSvc = NewStockSync(h.stockGW, h.stock, queue, opts)
	h.billingSvc = NewBillingSync(h.billingGW, h.billings, queue, opts)
	h.sessionSvc = NewSessionSync(h.sessionGW, h.sessions, queue, opts)
	return h
}

func (h *harness) orchestrator(t *testing.T, opts OrchestratorOptions) *Orchestrator {
	t.Helper()
	opts.Logger = zerolog.Nop()
	orch, err := NewOrchestrator(
		[]EntityType{EntityCustomer, EntityStaff, EntityStock, EntityBilling, EntityTransaction, EntitySession, EntityAttendance},
		[]EntitySyncService{h.sessionSvc, h.billingSvc, h.stockSvc, h.customerSvc},
		h.queue, h.meta, opts,
	)
	require.NoError(t, err)
	return orch
}

func (h *harness) writeCustomer(t *testing.T, kind OperationType, c remote.Customer) *models.PendingOperation {
	t.Helper()
	op, err := RecordWrite(context.Background(), h.queue, h.customers, kind, testOrg,
		customerToLocal(c, testOrg, models.SyncStatusPending), c)
	require.NoError(t, err)
	return op
}

func (h *harness) writeBilling(t *testing.T, kind OperationType, b remote.Billing) {
	t.Helper()
	_, err := RecordWrite(context.Background(), h.queue, h.billings, kind, testOrg,
		billingToLocal(b, testOrg, models.SyncStatusPending), b)
	require.NoError(t, err)
}

func (h *harness) writeSession(t *testing.T, kind OperationType, s remote.TeachingSession) {
	t.Helper()
	_, err := RecordWrite(context.Background(), h.queue, h.sessions, kind, testOrg,
		sessionToLocal(s, testOrg, models.SyncStatusPending), s)
	require.NoError(t, err)
}

// pushEntity loads and pushes the queue of one service directly
func pushEntity(t *testing.T, q OperationQueue, svc EntitySyncService) PushStats {
	t.Helper()
	ops, err := q.NextBatch(context.Background(), BatchFilter{EntityType: svc.Entity(), OrganizationID: testOrg})
	require.NoError(t, err)
	stats, err := svc.Push(context.Background(), ops)
	require.NoError(t, err)
	return stats
}

func customerStatus(t *testing.T, h *harness, id string) models.SyncStatus {
	t.Helper()
	c, ok, err := h.customers.Get(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "customer %s not cached", id)
	return c.SyncStatus
}

func pendingOps(t *testing.T, q *GormQueue, entity EntityType) []models.PendingOperation {
	t.Helper()
	ops, err := q.NextBatch(context.Background(), BatchFilter{EntityType: entity})
	require.NoError(t, err)
	return ops
}

func customer(id, name string) remote.Customer {
	return remote.Customer{ID: id, Name: name, Phone: "+91 98450 00000", UpdatedAt: baseTime}
}

func billing(id, customerID string) remote.Billing {
	return remote.Billing{
		ID:         id,
		Number:     fmt.Sprintf("INV-%s", id),
		CustomerID: customerID,
		Status:     "issued",
		Lines:      []remote.BillingLine{{StockItemID: "sku-1", Description: "Notebook", Quantity: 2, UnitPrice: 45}},
		Total:      90,
		IssuedAt:   baseTime,
		UpdatedAt:  baseTime,
	}
}
