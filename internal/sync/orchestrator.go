package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xelth-com/bizsync/internal/models"
)

const tracerName = "github.com/xelth-com/bizsync/internal/sync"

// Notifier is told about every completed push cycle.
// Its errors are logged and never fail the cycle.
type Notifier interface {
	PushCompleted(ctx context.Context, org string, report *PushReport) error
}

// PushReport describes one completed push cycle
type PushReport struct {
	CycleID        string        `json:"cycleId"`
	OrganizationID string        `json:"organizationId"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
	Entities       []PushStats   `json:"entities"`
	LoadErrors     []string      `json:"loadErrors,omitempty"`
}

// Totals sums the per-entity stats
func (r *PushReport) Totals() PushStats {
	var total PushStats
	for _, s := range r.Entities {
		total.Add(s)
	}
	return total
}

// OrchestratorOptions tune batching and timeouts
type OrchestratorOptions struct {
	BatchSize      int
	PullTimeout    time.Duration
	MetadataMaxAge time.Duration
	Notifier       Notifier
	Logger         zerolog.Logger
	Tracer         trace.Tracer
}

// Orchestrator drives push over services in dependency order and pull in parallel
type Orchestrator struct {
	services []EntitySyncService
	queue    OperationQueue
	meta     *MetadataManager
	opts     OrchestratorOptions
	log      zerolog.Logger
	tracer   trace.Tracer

	mu       gosync.Mutex
	inFlight map[string]struct{}
}

// NewOrchestrator orders services by order. Services missing from order
// run after it in registration order; unknown order entries are ignored.
func NewOrchestrator(order []EntityType, services []EntitySyncService, queue OperationQueue, meta *MetadataManager, opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.PullTimeout <= 0 {
		opts.PullTimeout = time.Minute
	}
	if opts.MetadataMaxAge <= 0 {
		opts.MetadataMaxAge = time.Hour
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	byType := make(map[EntityType]EntitySyncService, len(services))
	for _, svc := range services {
		if _, dup := byType[svc.Entity()]; dup {
			return nil, fmt.Errorf("duplicate sync service for %s", svc.Entity())
		}
		byType[svc.Entity()] = svc
	}

	ordered := make([]EntitySyncService, 0, len(services))
	placed := make(map[EntityType]bool, len(services))
	for _, entity := range order {
		svc, ok := byType[entity]
		if !ok {
			opts.Logger.Warn().Str("entity", string(entity)).Msg("push order names an entity without a service")
			continue
		}
		if placed[entity] {
			continue
		}
		ordered = append(ordered, svc)
		placed[entity] = true
	}
	for _, svc := range services {
		if !placed[svc.Entity()] {
			ordered = append(ordered, svc)
			placed[svc.Entity()] = true
		}
	}

	return &Orchestrator{
		services: ordered,
		queue:    queue,
		meta:     meta,
		opts:     opts,
		log:      opts.Logger,
		tracer:   tracer,
		inFlight: make(map[string]struct{}),
	}, nil
}

// Order returns the effective push order
func (o *Orchestrator) Order() []EntityType {
	out := make([]EntityType, 0, len(o.services))
	for _, svc := range o.services {
		out = append(out, svc.Entity())
	}
	return out
}

func (o *Orchestrator) tryLock(org string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[org]; busy {
		return false
	}
	o.inFlight[org] = struct{}{}
	return true
}

func (o *Orchestrator) unlock(org string) {
	o.mu.Lock()
	delete(o.inFlight, org)
	o.mu.Unlock()
}

// Push drains the queue of org service by service. A service that fails
// never stops the pass; only cancellation does, and a cancelled cycle is
// not reported to the notifier.
func (o *Orchestrator) Push(ctx context.Context, org string) (*PushReport, error) {
	if !o.tryLock(org) {
		return nil, ErrPushInProgress
	}
	defer o.unlock(org)

	report := &PushReport{
		CycleID:        uuid.NewString(),
		OrganizationID: org,
		StartedAt:      time.Now().UTC(),
	}
	log := o.log.With().Str("org", org).Str("cycle", report.CycleID).Logger()

	ctx, span := o.tracer.Start(ctx, "sync.push", trace.WithAttributes(
		attribute.String("sync.org", org),
		attribute.String("sync.cycle", report.CycleID),
	))
	defer span.End()

	log.Info().Msg("🔄 push cycle started")

	for _, svc := range o.services {
		entity := svc.Entity()

		ops, err := o.loadPending(ctx, org, entity)
		if err != nil {
			if ctx.Err() != nil {
				return o.abort(span, report, ctx.Err())
			}
			log.Error().Err(err).Str("entity", string(entity)).Msg("failed to load pending operations")
			report.LoadErrors = append(report.LoadErrors, fmt.Sprintf("%s: %v", entity, err))
			continue
		}
		if len(ops) == 0 {
			report.Entities = append(report.Entities, PushStats{Entity: entity})
			continue
		}

		stats, err := svc.Push(ctx, ops)
		report.Entities = append(report.Entities, stats)
		if err != nil {
			return o.abort(span, report, err)
		}

		log.Info().
			Str("entity", string(entity)).
			Int("applied", stats.Applied).
			Int("converged", stats.Converged).
			Int("failed", stats.Failed+stats.Fatal+stats.Exhausted).
			Int("deferred", stats.Deferred).
			Msg("entity pushed")
	}

	report.Duration = time.Since(report.StartedAt)
	totals := report.Totals()
	span.SetAttributes(
		attribute.Int("sync.applied", totals.Applied),
		attribute.Int("sync.failed", totals.Failed+totals.Fatal),
	)
	log.Info().Dur("took", report.Duration).Int("applied", totals.Applied).Msg("✅ push cycle completed")

	if o.opts.Notifier != nil {
		if err := o.opts.Notifier.PushCompleted(ctx, org, report); err != nil {
			log.Warn().Err(err).Msg("push notification failed")
		}
	}
	return report, nil
}

func (o *Orchestrator) abort(span trace.Span, report *PushReport, err error) (*PushReport, error) {
	report.Duration = time.Since(report.StartedAt)
	span.RecordError(err)
	span.SetStatus(codes.Error, "push cancelled")
	o.log.Warn().Err(err).Str("org", report.OrganizationID).Str("cycle", report.CycleID).Msg("push cycle interrupted")
	return report, err
}

// loadPending reads every queued operation of entity for org, oldest first
func (o *Orchestrator) loadPending(ctx context.Context, org string, entity EntityType) ([]models.PendingOperation, error) {
	var all []models.PendingOperation
	for offset := 0; ; offset += o.opts.BatchSize {
		batch, err := o.queue.NextBatch(ctx, BatchFilter{
			EntityType:     entity,
			OrganizationID: org,
			Limit:          o.opts.BatchSize,
			Offset:         offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < o.opts.BatchSize {
			return all, nil
		}
	}
}

// PullAllInParallel refreshes every entity type concurrently. A failing
// entity does not stop the others; failures come back as *PullError.
func (o *Orchestrator) PullAllInParallel(ctx context.Context, org string) error {
	return o.pull(ctx, org, o.services)
}

// ColdStart pulls only the entity types with nothing cached yet and
// returns the ones it pulled.
func (o *Orchestrator) ColdStart(ctx context.Context, org string) ([]EntityType, error) {
	var empty []EntitySyncService
	for _, svc := range o.services {
		has, err := svc.HasCachedData(ctx)
		if err != nil {
			return nil, err
		}
		if !has {
			empty = append(empty, svc)
		}
	}
	return entityTypes(empty), o.pull(ctx, org, empty)
}

// RefreshStale pulls entity types whose last successful pull is older than MetadataMaxAge
func (o *Orchestrator) RefreshStale(ctx context.Context, org string) ([]EntityType, error) {
	var stale []EntitySyncService
	for _, svc := range o.services {
		due, err := o.meta.NeedsRefresh(ctx, org, svc.Entity(), o.opts.MetadataMaxAge)
		if err != nil {
			return nil, err
		}
		if due {
			stale = append(stale, svc)
		}
	}
	return entityTypes(stale), o.pull(ctx, org, stale)
}

// Sync pushes local changes and then refreshes the cache
func (o *Orchestrator) Sync(ctx context.Context, org string) (*PushReport, error) {
	report, err := o.Push(ctx, org)
	if err != nil {
		return report, err
	}
	return report, o.PullAllInParallel(ctx, org)
}

// ResetFailures clears operation failure counters and metadata retry
// counts of org, for an explicit user retry or an organization switch.
func (o *Orchestrator) ResetFailures(ctx context.Context, org string) (int64, error) {
	n, err := o.queue.ResetAllFailures(ctx, org)
	if err != nil {
		return 0, fmt.Errorf("reset operation failures: %w", err)
	}
	if err := o.meta.ResetRetryCount(ctx, org); err != nil {
		return n, fmt.Errorf("reset metadata retries: %w", err)
	}
	o.log.Info().Str("org", org).Int64("operations", n).Msg("failure counters reset")
	return n, nil
}

// Discard removes one queued operation of org without replaying it, for
// operations that can never succeed as stored. It is refused while a push
// for org is running.
func (o *Orchestrator) Discard(ctx context.Context, org string, id uint64) (*models.PendingOperation, error) {
	if !o.tryLock(org) {
		return nil, ErrPushInProgress
	}
	defer o.unlock(org)

	row, err := o.queue.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.OrganizationID != org {
		return nil, ErrOperationNotFound
	}

	for _, svc := range o.services {
		if svc.Entity() == EntityType(row.EntityType) {
			return &row, svc.Discard(ctx, row)
		}
	}
	// No service owns it, so there is no cached record to settle
	if err := o.queue.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("discard operation %d: %w", id, err)
	}
	o.log.Warn().Str("org", org).Uint64("op_id", id).Str("entity", row.EntityType).Msg("orphan operation discarded")
	return &row, nil
}

func (o *Orchestrator) pull(ctx context.Context, org string, services []EntitySyncService) error {
	if len(services) == 0 {
		return nil
	}

	ctx, span := o.tracer.Start(ctx, "sync.pull", trace.WithAttributes(
		attribute.String("sync.org", org),
		attribute.Int("sync.entities", len(services)),
	))
	defer span.End()

	var (
		mu   gosync.Mutex
		errs = make(map[EntityType]error)
		g    errgroup.Group
	)
	for _, svc := range services {
		svc := svc
		g.Go(func() error {
			if err := o.pullOne(ctx, org, svc); err != nil {
				mu.Lock()
				errs[svc.Entity()] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		pullErr := &PullError{Errors: errs}
		span.RecordError(pullErr)
		span.SetStatus(codes.Error, "partial pull")
		return pullErr
	}
	return nil
}

// pullOne runs one entity's pullAll with its own timeout and metadata bookkeeping
func (o *Orchestrator) pullOne(ctx context.Context, org string, svc EntitySyncService) (err error) {
	entity := svc.Entity()
	log := o.log.With().Str("org", org).Str("entity", string(entity)).Logger()
	bg := context.WithoutCancel(ctx)

	start, metaErr := o.meta.Begin(bg, org, entity)
	if metaErr != nil {
		log.Warn().Err(metaErr).Msg("sync metadata unavailable")
		start = time.Now()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pull %s panicked: %v", entity, r)
			log.Error().Err(err).Msg("pull panicked")
			if metaErr := o.meta.RecordFailure(bg, org, entity, err, time.Since(start)); metaErr != nil {
				log.Warn().Err(metaErr).Msg("failed to record pull failure")
			}
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, o.opts.PullTimeout)
	defer cancel()

	n, err := svc.PullAll(pctx, org)
	took := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("pull timed out after %s: %w", o.opts.PullTimeout, err)
		}
		log.Warn().Err(err).Msg("pull failed")
		if metaErr := o.meta.RecordFailure(bg, org, entity, err, took); metaErr != nil {
			log.Warn().Err(metaErr).Msg("failed to record pull failure")
		}
		return err
	}

	log.Info().Int("records", n).Dur("took", took).Msg("pull completed")
	if metaErr := o.meta.RecordSuccess(bg, org, entity, n, took); metaErr != nil {
		log.Warn().Err(metaErr).Msg("failed to record pull success")
	}
	return nil
}

func entityTypes(services []EntitySyncService) []EntityType {
	out := make([]EntityType, 0, len(services))
	for _, svc := range services {
		out = append(out, svc.Entity())
	}
	return out
}
