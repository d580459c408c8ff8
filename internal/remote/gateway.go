package remote

import (
	"context"
	"time"
)

// Gateway is the per-entity remote contract.
// Implementations must return *NotFoundError when the addressed record is
// gone, and one of the other typed errors for everything else.
type Gateway[R Record] interface {
	Create(ctx context.Context, org string, rec R) (R, error)
	Update(ctx context.Context, org string, rec R) (R, error)
	Delete(ctx context.Context, org, id string) error
	ListAll(ctx context.Context, org string) ([]R, error)
}

// SessionGateway adds the teaching-session lifecycle transitions
type SessionGateway interface {
	Gateway[TeachingSession]
	StartSession(ctx context.Context, org, id string, at time.Time) (TeachingSession, error)
	EndSession(ctx context.Context, org, id string, at time.Time) (TeachingSession, error)
	ApproveSession(ctx context.Context, org, id, approver string) (TeachingSession, error)
}
