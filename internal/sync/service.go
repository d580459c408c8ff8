package sync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

// DefaultMaxFailedAttempts is the failure ceiling above which a record is FAILED
const DefaultMaxFailedAttempts = 5

// EntitySyncService replays and refreshes one entity type
type EntitySyncService interface {
	Entity() EntityType
	// Push replays ops in the given order. Replay failures are absorbed
	// into the queue and the records' sync status; the returned error is
	// only ever a context error.
	Push(ctx context.Context, ops []models.PendingOperation) (PushStats, error)
	// PullAll refreshes the cache of org and returns the records merged
	PullAll(ctx context.Context, org string) (int, error)
	HasCachedData(ctx context.Context) (bool, error)
	// Discard drops a queued operation without replaying it
	Discard(ctx context.Context, row models.PendingOperation) error
}

// PushStats counts what happened to the operations of one Push
type PushStats struct {
	Entity    EntityType `json:"entity"`
	Applied   int        `json:"applied"`
	Converged int        `json:"converged"`
	Failed    int        `json:"failed"`
	Fatal     int        `json:"fatal"`
	Exhausted int        `json:"exhausted"`
	Deferred  int        `json:"deferred"`
}

// Add accumulates other into s
func (s *PushStats) Add(other PushStats) {
	s.Applied += other.Applied
	s.Converged += other.Converged
	s.Failed += other.Failed
	s.Fatal += other.Fatal
	s.Exhausted += other.Exhausted
	s.Deferred += other.Deferred
}

// Clean reports whether every operation reached the remote
func (s PushStats) Clean() bool {
	return s.Failed == 0 && s.Fatal == 0 && s.Exhausted == 0 && s.Deferred == 0
}

// ServiceOptions are shared by every entity service
type ServiceOptions struct {
	MaxFailedAttempts int
	PruneOnPull       bool
	Logger            zerolog.Logger
}

// LifecycleFunc performs an entity-specific transition with the decoded snapshot
type LifecycleFunc[R remote.Record] func(ctx context.Context, org string, op Operation, rec R) (R, error)

// EntityService is the replay skeleton shared by all entity types.
// Each entity supplies its gateway, store, mapping and validation.
type EntityService[R remote.Record, L models.SyncableEntity] struct {
	entity    EntityType
	gateway   remote.Gateway[R]
	store     LocalStore[L]
	queue     OperationQueue
	toLocal   func(R, string, models.SyncStatus) L
	validate  func(R) error
	lifecycle LifecycleFunc[R]

	maxFailures int
	prune       bool
	log         zerolog.Logger
}

func newEntityService[R remote.Record, L models.SyncableEntity](
	entity EntityType,
	gateway remote.Gateway[R],
	store LocalStore[L],
	queue OperationQueue,
	toLocal func(R, string, models.SyncStatus) L,
	validate func(R) error,
	opts ServiceOptions,
) *EntityService[R, L] {
	limit := opts.MaxFailedAttempts
	if limit <= 0 {
		limit = DefaultMaxFailedAttempts
	}
	return &EntityService[R, L]{
		entity:      entity,
		gateway:     gateway,
		store:       store,
		queue:       queue,
		toLocal:     toLocal,
		validate:    validate,
		maxFailures: limit,
		prune:       opts.PruneOnPull,
		log:         opts.Logger.With().Str("entity", string(entity)).Logger(),
	}
}

func (s *EntityService[R, L]) Entity() EntityType { return s.entity }

func (s *EntityService[R, L]) HasCachedData(ctx context.Context) (bool, error) {
	n, err := s.store.Count(ctx, "")
	if err != nil {
		return false, fmt.Errorf("count cached %s: %w", s.entity, err)
	}
	return n > 0, nil
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeConverged
	outcomeFailed
	outcomeFatal
	outcomeCanceled
)

// Push replays ops one at a time. Once an operation of a record did not
// go through, the later operations of that record wait for the next
// cycle so a record's mutations never reach the remote out of order.
func (s *EntityService[R, L]) Push(ctx context.Context, ops []models.PendingOperation) (PushStats, error) {
	stats := PushStats{Entity: s.entity}
	blocked := make(map[string]bool)

	for _, row := range ops {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if blocked[row.EntityID] {
			stats.Deferred++
			continue
		}

		if row.FailedAttempts > s.maxFailures {
			// Excluded from automatic retry until the counter is reset
			stats.Exhausted++
			blocked[row.EntityID] = true
			s.setStatus(ctx, row.EntityID, models.SyncStatusFailed)
			continue
		}

		switch s.replay(ctx, row) {
		case outcomeApplied:
			stats.Applied++
		case outcomeConverged:
			stats.Converged++
		case outcomeFailed:
			stats.Failed++
			blocked[row.EntityID] = true
		case outcomeFatal:
			stats.Fatal++
			blocked[row.EntityID] = true
		case outcomeCanceled:
			return stats, ctx.Err()
		}
	}
	return stats, nil
}

func (s *EntityService[R, L]) replay(ctx context.Context, row models.PendingOperation) outcome {
	op, err := DecodeOperation(row)
	if err != nil {
		return s.fatal(ctx, row.OrganizationID, row.ID, row.EntityID, err)
	}
	meta := op.Meta()
	if meta.EntityType != s.entity {
		return s.fatal(ctx, meta.OrganizationID, meta.ID, meta.EntityID, &FatalError{Reason: fmt.Sprintf("operation routed to %s service", s.entity)})
	}

	s.setStatus(ctx, meta.EntityID, models.SyncStatusSyncing)

	rec, hasRecord, callErr := s.apply(ctx, op)

	// The remote call has returned; local bookkeeping must finish even if
	// the cycle is being cancelled.
	bg := context.WithoutCancel(ctx)

	if callErr == nil {
		return s.succeed(bg, op, rec, hasRecord)
	}
	if ctx.Err() != nil {
		s.setStatus(bg, meta.EntityID, s.statusFor(bg, meta.OrganizationID, meta.EntityID))
		return outcomeCanceled
	}

	switch classifyFor(op, callErr) {
	case Convergent:
		return s.converge(bg, op, callErr)
	case Fatal:
		return s.fatal(bg, meta.OrganizationID, meta.ID, meta.EntityID, callErr)
	default:
		return s.fail(bg, op, callErr)
	}
}

// apply performs the remote call matching the operation variant
func (s *EntityService[R, L]) apply(ctx context.Context, op Operation) (R, bool, error) {
	var zero R
	meta := op.Meta()

	switch op.(type) {
	case Create, Update:
		rec, err := s.decode(op)
		if err != nil {
			return zero, false, err
		}
		var out R
		if _, ok := op.(Create); ok {
			out, err = s.gateway.Create(ctx, meta.OrganizationID, rec)
		} else {
			out, err = s.gateway.Update(ctx, meta.OrganizationID, rec)
		}
		return out, err == nil, err

	case Delete:
		return zero, false, s.gateway.Delete(ctx, meta.OrganizationID, meta.EntityID)

	case StartSession, EndSession, ApproveSession:
		if s.lifecycle == nil {
			return zero, false, &FatalError{Reason: fmt.Sprintf("%s does not support %s", s.entity, op.Kind())}
		}
		rec, err := s.decode(op)
		if err != nil {
			return zero, false, err
		}
		out, err := s.lifecycle(ctx, meta.OrganizationID, op, rec)
		return out, err == nil, err

	default:
		return zero, false, &FatalError{Reason: fmt.Sprintf("unsupported operation %T", op)}
	}
}

func (s *EntityService[R, L]) decode(op Operation) (R, error) {
	rec, err := DecodePayload[R](op)
	if err != nil {
		return rec, err
	}
	if s.validate != nil {
		if err := s.validate(rec); err != nil {
			return rec, &FatalError{Reason: "invalid payload", Err: err}
		}
	}
	return rec, nil
}

// succeed deletes the operation and settles the record. While later
// operations of the record are still queued the cached row keeps its
// newer local fields and only the status changes.
func (s *EntityService[R, L]) succeed(ctx context.Context, op Operation, rec R, hasRecord bool) outcome {
	meta := op.Meta()
	log := s.opLogger(op)

	pending, err := s.queue.CountPendingFor(ctx, s.entity, meta.OrganizationID, meta.EntityID)
	if err != nil {
		log.Error().Err(err).Msg("count pending failed after successful replay")
	}
	remaining := pending - 1
	if remaining < 0 {
		remaining = 0
	}

	switch {
	case op.Kind() == OpDelete:
		if err := s.store.Delete(ctx, meta.EntityID); err != nil {
			log.Error().Err(err).Msg("local delete failed")
		}
	case remaining == 0 && hasRecord:
		if err := s.store.Upsert(ctx, s.toLocal(rec, meta.OrganizationID, models.SyncStatusSynced)); err != nil {
			log.Error().Err(err).Msg("cache upsert failed")
		}
	}

	if err := s.queue.Delete(ctx, meta.ID); err != nil {
		log.Error().Err(err).Msg("failed to delete replayed operation")
		return outcomeFailed
	}

	if op.Kind() != OpDelete {
		status := models.SyncStatusSynced
		if remaining > 0 {
			status = s.statusFor(ctx, meta.OrganizationID, meta.EntityID)
		}
		s.setStatus(ctx, meta.EntityID, status)
	}

	log.Debug().Int64("remaining", remaining).Msg("operation replayed")
	return outcomeApplied
}

// converge handles a remote "not found": the goal is already reached
func (s *EntityService[R, L]) converge(ctx context.Context, op Operation, cause error) outcome {
	meta := op.Meta()
	log := s.opLogger(op)

	if err := s.store.Delete(ctx, meta.EntityID); err != nil {
		log.Error().Err(err).Msg("local delete failed")
	}
	if err := s.queue.Delete(ctx, meta.ID); err != nil {
		log.Error().Err(err).Msg("failed to delete converged operation")
		return outcomeFailed
	}

	log.Info().Err(cause).Msg("record gone upstream, local copy removed")
	return outcomeConverged
}

// fail counts a retryable failure; the operation stays queued
func (s *EntityService[R, L]) fail(ctx context.Context, op Operation, cause error) outcome {
	meta := op.Meta()
	log := s.opLogger(op)

	attempts, err := s.queue.IncrementFailures(ctx, meta.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to record replay failure")
	}

	status := s.statusFor(ctx, meta.OrganizationID, meta.EntityID)
	s.setStatus(ctx, meta.EntityID, status)

	log.Warn().Err(cause).Int("attempts", attempts).Str("status", string(status)).Msg("replay failed")
	return outcomeFailed
}

// fatal logs an operation that cannot replay as stored. It stays queued
// with its counter untouched, holding back the later operations of the
// record, until it is discarded.
func (s *EntityService[R, L]) fatal(ctx context.Context, org string, opID uint64, entityID string, cause error) outcome {
	s.log.Error().Err(cause).
		Str("org", org).
		Uint64("op", opID).
		Str("entity_id", entityID).
		Msg("operation cannot be replayed, discard it to unblock the record")
	s.setStatus(ctx, entityID, s.statusFor(ctx, org, entityID))
	return outcomeFatal
}

// Discard deletes row from the queue and settles the record's status
// from the operations left behind.
func (s *EntityService[R, L]) Discard(ctx context.Context, row models.PendingOperation) error {
	if EntityType(row.EntityType) != s.entity {
		return fmt.Errorf("operation %d belongs to %s, not %s", row.ID, row.EntityType, s.entity)
	}
	if err := s.queue.Delete(ctx, row.ID); err != nil {
		return fmt.Errorf("discard operation %d: %w", row.ID, err)
	}

	remaining, err := s.queue.CountPendingFor(ctx, s.entity, row.OrganizationID, row.EntityID)
	if err != nil {
		return fmt.Errorf("count pending %s: %w", row.EntityID, err)
	}
	status := models.SyncStatusSynced
	if remaining > 0 {
		status = s.statusFor(ctx, row.OrganizationID, row.EntityID)
	}
	s.setStatus(ctx, row.EntityID, status)

	s.log.Warn().
		Str("org", row.OrganizationID).
		Uint64("op_id", row.ID).
		Str("entity_id", row.EntityID).
		Str("op", row.OperationType).
		Int64("remaining", remaining).
		Msg("operation discarded")
	return nil
}

// statusFor derives PENDING or FAILED from the record's accumulated failures
func (s *EntityService[R, L]) statusFor(ctx context.Context, org, entityID string) models.SyncStatus {
	failures, err := s.queue.FailureCountFor(ctx, s.entity, org, entityID)
	if err != nil {
		s.log.Error().Err(err).Str("entity_id", entityID).Msg("failed to read failure count")
		return models.SyncStatusPending
	}
	if failures > s.maxFailures {
		return models.SyncStatusFailed
	}
	return models.SyncStatusPending
}

func (s *EntityService[R, L]) setStatus(ctx context.Context, entityID string, status models.SyncStatus) {
	if err := s.store.SetSyncStatus(ctx, entityID, status); err != nil {
		s.log.Error().Err(err).Str("entity_id", entityID).Str("status", string(status)).Msg("failed to set sync status")
	}
}

func (s *EntityService[R, L]) opLogger(op Operation) zerolog.Logger {
	meta := op.Meta()
	return s.log.With().
		Str("org", meta.OrganizationID).
		Str("entity_id", meta.EntityID).
		Str("op", string(op.Kind())).
		Uint64("op_id", meta.ID).
		Logger()
}

// PullAll merges the full remote listing into the cache. Records with
// queued local changes are left alone until their operations replay.
// With pruning on, SYNCED records missing from the listing are removed.
func (s *EntityService[R, L]) PullAll(ctx context.Context, org string) (int, error) {
	records, err := s.gateway.ListAll(ctx, org)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", s.entity, err)
	}

	pending, err := s.queue.PendingEntityIDs(ctx, s.entity, org)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(records))
	merged := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return merged, err
		}
		id := rec.RecordID()
		seen[id] = struct{}{}
		if _, ok := pending[id]; ok {
			continue
		}
		if err := s.store.Upsert(ctx, s.toLocal(rec, org, models.SyncStatusSynced)); err != nil {
			return merged, err
		}
		merged++
	}

	if s.prune {
		removed, err := s.pruneMissing(ctx, org, seen, pending)
		if err != nil {
			return merged, err
		}
		if removed > 0 {
			s.log.Info().Str("org", org).Int("removed", removed).Msg("pruned records deleted upstream")
		}
	}
	return merged, nil
}

func (s *EntityService[R, L]) pruneMissing(ctx context.Context, org string, seen, pending map[string]struct{}) (int, error) {
	ids, err := s.store.SyncedIDs(ctx, org)
	if err != nil {
		return 0, fmt.Errorf("list synced %s: %w", s.entity, err)
	}

	removed := 0
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, ok := pending[id]; ok {
			continue
		}
		if err := s.store.Delete(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
