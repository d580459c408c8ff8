package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xelth-com/bizsync/internal/remote"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorClass
	}{
		{&remote.NotFoundError{Resource: "customers", ID: "c1"}, Convergent},
		{fmt.Errorf("update: %w", &remote.NotFoundError{Resource: "customers", ID: "c1"}), Convergent},
		{&FatalError{Reason: "bad payload"}, Fatal},
		{&remote.ServerError{StatusCode: 503}, Retryable},
		{&remote.ValidationError{StatusCode: 422}, Retryable},
		{&remote.TransportError{Op: "GET", Err: errors.New("connection refused")}, Retryable},
		{context.DeadlineExceeded, Retryable},
		{errors.New("something odd"), Retryable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}

func TestClassifyFor_CreateNotFoundRetries(t *testing.T) {
	nf := &remote.NotFoundError{Resource: "billings", ID: "b1"}

	assert.Equal(t, Retryable, classifyFor(Create{}, nf))
	assert.Equal(t, Convergent, classifyFor(Update{}, nf))
	assert.Equal(t, Convergent, classifyFor(Delete{}, nf))
	assert.Equal(t, Convergent, classifyFor(EndSession{}, nf))
	assert.Equal(t, Fatal, classifyFor(Create{}, &FatalError{Reason: "x"}))
}

func TestFatalError(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := &FatalError{Reason: "decode customers payload", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "fatal: decode customers payload: unexpected EOF", err.Error())
	assert.Equal(t, "fatal: no payload", (&FatalError{Reason: "no payload"}).Error())
}

func TestPullError(t *testing.T) {
	err := &PullError{Errors: map[EntityType]error{
		EntityStock:    context.DeadlineExceeded,
		EntityCustomer: errors.New("boom"),
	}}

	assert.Equal(t, "pull failed for customers: boom; stock: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, err.Failed(EntityStock))
	assert.False(t, err.Failed(EntityBilling))
}

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "retryable", Retryable.String())
	assert.Equal(t, "convergent", Convergent.String())
	assert.Equal(t, "fatal", Fatal.String())
}
