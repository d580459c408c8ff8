package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

// EncodePayload serializes the remote-shaped snapshot stored with an operation
func EncodePayload[R remote.Record](rec R) (datatypes.JSON, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %T payload: %w", rec, err)
	}
	return datatypes.JSON(data), nil
}

// DecodePayload restores the snapshot of op. A missing or unreadable
// payload can never replay, so it is a FatalError.
func DecodePayload[R remote.Record](op Operation) (R, error) {
	var rec R
	meta := op.Meta()
	if len(meta.Payload) == 0 {
		return rec, &FatalError{Reason: fmt.Sprintf("%s %s has no payload", op.Kind(), meta.EntityID)}
	}
	if err := json.Unmarshal(meta.Payload, &rec); err != nil {
		return rec, &FatalError{Reason: fmt.Sprintf("decode %s payload", meta.EntityType), Err: err}
	}
	if rec.RecordID() != meta.EntityID {
		return rec, &FatalError{Reason: fmt.Sprintf("payload id %q does not match entity %q", rec.RecordID(), meta.EntityID)}
	}
	return rec, nil
}

// NewPendingOperation builds the queue row describing one local mutation
func NewPendingOperation[R remote.Record](entity EntityType, kind OperationType, org string, rec R) (*models.PendingOperation, error) {
	payload, err := EncodePayload(rec)
	if err != nil {
		return nil, err
	}
	return &models.PendingOperation{
		EntityType:     string(entity),
		EntityID:       rec.RecordID(),
		OperationType:  string(kind),
		OrganizationID: org,
		Payload:        payload,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
