package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

// SessionSync replays teaching sessions, including the start, end and
// approve transitions.
type SessionSync = EntityService[remote.TeachingSession, models.TeachingSession]

func NewSessionSync(gw remote.SessionGateway, store LocalStore[models.TeachingSession], queue OperationQueue, opts ServiceOptions) *SessionSync {
	svc := newEntityService(EntitySession, remote.Gateway[remote.TeachingSession](gw), store, queue, sessionToLocal, validateSession, opts)
	svc.lifecycle = sessionLifecycle(gw)
	return svc
}

func validateSession(s remote.TeachingSession) error {
	switch {
	case s.ID == "":
		return errors.New("session id is required")
	case s.StaffID == "":
		return errors.New("session has no staff member")
	case s.CustomerID == "":
		return errors.New("session has no customer")
	}
	return nil
}

// sessionLifecycle maps transitions onto the session endpoints. The
// snapshot carries the local transition time; a backend answering
// without a body leaves the snapshot as the result.
func sessionLifecycle(gw remote.SessionGateway) LifecycleFunc[remote.TeachingSession] {
	return func(ctx context.Context, org string, op Operation, rec remote.TeachingSession) (remote.TeachingSession, error) {
		var out remote.TeachingSession
		var err error

		switch op.(type) {
		case StartSession:
			if rec.StartedAt == nil {
				return out, &FatalError{Reason: fmt.Sprintf("session %s start has no time", rec.ID)}
			}
			out, err = gw.StartSession(ctx, org, rec.ID, *rec.StartedAt)
		case EndSession:
			if rec.EndedAt == nil {
				return out, &FatalError{Reason: fmt.Sprintf("session %s end has no time", rec.ID)}
			}
			out, err = gw.EndSession(ctx, org, rec.ID, *rec.EndedAt)
		case ApproveSession:
			if rec.ApprovedBy == "" {
				return out, &FatalError{Reason: fmt.Sprintf("session %s approval has no approver", rec.ID)}
			}
			out, err = gw.ApproveSession(ctx, org, rec.ID, rec.ApprovedBy)
		default:
			return out, &FatalError{Reason: fmt.Sprintf("%s is not a session transition", op.Kind())}
		}

		if err != nil {
			return out, err
		}
		if out.ID == "" {
			out = rec
		}
		return out, nil
	}
}
