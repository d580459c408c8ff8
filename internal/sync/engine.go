package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xelth-com/bizsync/internal/config"
)

// SyncKind selects what a sync request runs
type SyncKind string

const (
	SyncFull      SyncKind = "full"       // push then pull everything
	SyncPush      SyncKind = "push"       // replay the queue only
	SyncPull      SyncKind = "pull"       // refresh every entity type
	SyncColdStart SyncKind = "cold_start" // pull what is not cached yet
	SyncRefresh   SyncKind = "refresh"    // push, then pull stale entity types
)

// SyncRequest represents a queued sync request
type SyncRequest struct {
	Kind      SyncKind
	Requested time.Time
}

// EngineStatus is a snapshot for status screens and the CLI
type EngineStatus struct {
	IsRunning      bool                   `json:"isRunning"`
	SyncInProgress bool                   `json:"syncInProgress"`
	IsOnline       bool                   `json:"isOnline"`
	CurrentRoute   string                 `json:"currentRoute"`
	LastSync       time.Time              `json:"lastSync"`
	LastKind       SyncKind               `json:"lastKind,omitempty"`
	LastError      string                 `json:"lastError,omitempty"`
	LastReport     *PushReport            `json:"lastReport,omitempty"`
	Routes         map[string]RouteStatus `json:"routes,omitempty"`
}

// Engine runs sync cycles for one organization in the background:
// on startup, on a timer, on reconnect and on explicit request.
type Engine struct {
	mu gosync.RWMutex

	orch *Orchestrator
	conn *ConnectionManager
	cfg  *config.SyncConfig
	org  string
	log  zerolog.Logger

	isRunning      bool
	syncInProgress bool
	lastSync       time.Time
	lastKind       SyncKind
	lastErr        error
	lastReport     *PushReport

	cancel   context.CancelFunc
	syncChan chan SyncRequest
	wg       gosync.WaitGroup
}

// NewEngine creates an engine; conn may be nil when connectivity is not probed
func NewEngine(orch *Orchestrator, conn *ConnectionManager, cfg *config.SyncConfig, org string, log zerolog.Logger) *Engine {
	if conn == nil {
		conn = NewConnectionManager(nil, 0, log)
	}
	return &Engine{
		orch:     orch,
		conn:     conn,
		cfg:      cfg,
		org:      org,
		log:      log.With().Str("org", org).Logger(),
		syncChan: make(chan SyncRequest, 16),
	}
}

// Start starts the worker, the auto-sync loop and connectivity checks
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isRunning {
		return fmt.Errorf("sync engine already running")
	}
	if !e.cfg.Enabled {
		return fmt.Errorf("sync is disabled")
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.isRunning = true
	e.log.Info().Msg("🔄 Sync Engine starting...")

	e.conn.SetOnReconnect(func() {
		e.log.Info().Msg("📡 back online, requesting sync")
		e.RequestSync(SyncFull)
	})
	e.conn.Start(ctx)

	e.wg.Add(1)
	go e.syncWorker(ctx)

	if e.cfg.AutoSyncEnabled {
		e.wg.Add(1)
		go e.autoSyncLoop(ctx)
	}

	if e.cfg.SyncOnStartup {
		e.RequestSync(SyncColdStart)
		e.RequestSync(SyncFull)
	}

	e.log.Info().Msg("✅ Sync Engine started")
	return nil
}

// Stop stops the engine and waits for a running cycle to return
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return
	}
	e.log.Info().Msg("🛑 Stopping Sync Engine...")
	e.isRunning = false
	e.cancel()
	e.mu.Unlock()

	e.conn.Stop()
	e.wg.Wait()
	e.log.Info().Msg("✅ Sync Engine stopped")
}

// RequestSync queues a request without blocking. It returns false when
// the queue is full; a pending request of the same kind covers it.
func (e *Engine) RequestSync(kind SyncKind) bool {
	select {
	case e.syncChan <- SyncRequest{Kind: kind, Requested: time.Now()}:
		return true
	default:
		e.log.Debug().Str("kind", string(kind)).Msg("sync request dropped, queue full")
		return false
	}
}

// syncWorker processes sync requests one at a time
func (e *Engine) syncWorker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case req := <-e.syncChan:
			e.process(ctx, req)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) process(ctx context.Context, req SyncRequest) {
	if !e.conn.IsOnline() {
		e.log.Info().Str("kind", string(req.Kind)).Msg("⚠️ offline, sync skipped")
		return
	}

	e.mu.Lock()
	e.syncInProgress = true
	e.mu.Unlock()

	start := time.Now()
	report, err := e.run(ctx, req.Kind)

	e.mu.Lock()
	e.syncInProgress = false
	e.lastSync = time.Now()
	e.lastKind = req.Kind
	e.lastErr = err
	if report != nil {
		e.lastReport = report
	}
	e.mu.Unlock()

	switch {
	case errors.Is(err, ErrPushInProgress):
		e.log.Info().Str("kind", string(req.Kind)).Msg("⏳ push already running, request skipped")
	case err != nil:
		e.log.Warn().Err(err).Str("kind", string(req.Kind)).Dur("took", time.Since(start)).Msg("sync finished with errors")
	default:
		e.log.Info().Str("kind", string(req.Kind)).Dur("took", time.Since(start)).Msg("sync completed")
	}
}

func (e *Engine) run(ctx context.Context, kind SyncKind) (*PushReport, error) {
	switch kind {
	case SyncFull:
		return e.orch.Sync(ctx, e.org)
	case SyncPush:
		return e.orch.Push(ctx, e.org)
	case SyncPull:
		return nil, e.orch.PullAllInParallel(ctx, e.org)
	case SyncColdStart:
		_, err := e.orch.ColdStart(ctx, e.org)
		return nil, err
	case SyncRefresh:
		report, err := e.orch.Push(ctx, e.org)
		if err != nil {
			return report, err
		}
		_, err = e.orch.RefreshStale(ctx, e.org)
		return report, err
	default:
		return nil, fmt.Errorf("unknown sync kind %q", kind)
	}
}

// autoSyncLoop periodically pushes and refreshes stale entity types
func (e *Engine) autoSyncLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Duration(e.cfg.AutoSyncInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.log.Debug().Msg("auto-sync triggered")
			e.RequestSync(SyncRefresh)
		case <-ctx.Done():
			return
		}
	}
}

// Status returns the current engine status
func (e *Engine) Status() EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := EngineStatus{
		IsRunning:      e.isRunning,
		SyncInProgress: e.syncInProgress,
		IsOnline:       e.conn.IsOnline(),
		CurrentRoute:   e.conn.GetCurrentRoute(),
		LastSync:       e.lastSync,
		LastKind:       e.lastKind,
		LastReport:     e.lastReport,
		Routes:         e.conn.GetAllRouteStatuses(),
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}
