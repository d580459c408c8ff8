package sync

import (
	"fmt"

	"github.com/xelth-com/bizsync/internal/models"
)

// EntityType identifies which EntitySyncService owns a pending operation
type EntityType string

const (
	EntityCustomer    EntityType = models.EntityTypeCustomer
	EntityStaff       EntityType = models.EntityTypeStaff
	EntityStock       EntityType = models.EntityTypeStock
	EntityBilling     EntityType = models.EntityTypeBilling
	EntityTransaction EntityType = models.EntityTypeTransaction
	EntitySession     EntityType = models.EntityTypeSession
	EntityAttendance  EntityType = models.EntityTypeAttendance
)

// OperationType is the stored tag of a pending operation
type OperationType string

const (
	OpCreate         OperationType = "CREATE"
	OpUpdate         OperationType = "UPDATE"
	OpDelete         OperationType = "DELETE"
	OpStartSession   OperationType = "START_SESSION"
	OpEndSession     OperationType = "END_SESSION"
	OpApproveSession OperationType = "APPROVE_SESSION"
)

// IsLifecycle reports whether t is a session transition
func (t OperationType) IsLifecycle() bool {
	switch t {
	case OpStartSession, OpEndSession, OpApproveSession:
		return true
	}
	return false
}

// QueueKey addresses pending operations the way the queue indexes them
type QueueKey struct {
	EntityType     EntityType
	EntityID       string
	OperationType  OperationType
	OrganizationID string
}

func (k QueueKey) String() string {
	return fmt.Sprintf("%s/%s/%s@%s", k.EntityType, k.EntityID, k.OperationType, k.OrganizationID)
}

// OpMeta is the part every operation variant shares
type OpMeta struct {
	ID             uint64
	EntityType     EntityType
	EntityID       string
	OrganizationID string
	Payload        []byte
	FailedAttempts int
}

func (m OpMeta) Meta() OpMeta { return m }

func (m OpMeta) isOperation() {}

// Operation is a decoded pending operation. The set of variants is closed:
// Create, Update, Delete, StartSession, EndSession, ApproveSession.
type Operation interface {
	Kind() OperationType
	Meta() OpMeta
	isOperation()
}

type (
	Create         struct{ OpMeta }
	Update         struct{ OpMeta }
	Delete         struct{ OpMeta }
	StartSession   struct{ OpMeta }
	EndSession     struct{ OpMeta }
	ApproveSession struct{ OpMeta }
)

func (Create) Kind() OperationType         { return OpCreate }
func (Update) Kind() OperationType         { return OpUpdate }
func (Delete) Kind() OperationType         { return OpDelete }
func (StartSession) Kind() OperationType   { return OpStartSession }
func (EndSession) Kind() OperationType     { return OpEndSession }
func (ApproveSession) Kind() OperationType { return OpApproveSession }

// KeyOf returns the queue key of op
func KeyOf(op Operation) QueueKey {
	m := op.Meta()
	return QueueKey{
		EntityType:     m.EntityType,
		EntityID:       m.EntityID,
		OperationType:  op.Kind(),
		OrganizationID: m.OrganizationID,
	}
}

// DecodeOperation turns a stored row into its variant.
// Unknown operation tags are a FatalError.
func DecodeOperation(row models.PendingOperation) (Operation, error) {
	meta := OpMeta{
		ID:             row.ID,
		EntityType:     EntityType(row.EntityType),
		EntityID:       row.EntityID,
		OrganizationID: row.OrganizationID,
		Payload:        []byte(row.Payload),
		FailedAttempts: row.FailedAttempts,
	}

	switch OperationType(row.OperationType) {
	case OpCreate:
		return Create{meta}, nil
	case OpUpdate:
		return Update{meta}, nil
	case OpDelete:
		return Delete{meta}, nil
	case OpStartSession:
		return StartSession{meta}, nil
	case OpEndSession:
		return EndSession{meta}, nil
	case OpApproveSession:
		return ApproveSession{meta}, nil
	default:
		return nil, &FatalError{Reason: fmt.Sprintf("unknown operation type %q", row.OperationType)}
	}
}
