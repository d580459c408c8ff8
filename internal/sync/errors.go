package sync

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xelth-com/bizsync/internal/remote"
)

// ErrPushInProgress is returned when a push for the same organization is already running
var ErrPushInProgress = errors.New("push already in progress for organization")

// ErrorClass decides what a replay failure does to the queue
type ErrorClass int

const (
	// Retryable failures are counted toward the failure ceiling
	Retryable ErrorClass = iota
	// Convergent failures mean the remote already reflects the goal
	Convergent
	// Fatal failures can never succeed as stored
	Fatal
)

func (c ErrorClass) String() string {
	switch c {
	case Convergent:
		return "convergent"
	case Fatal:
		return "fatal"
	default:
		return "retryable"
	}
}

// FatalError marks malformed payloads and unsupported operations
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
	}
	return "fatal: " + e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }

// Classify maps an error onto the replay taxonomy.
// Anything not recognised is retryable.
func Classify(err error) ErrorClass {
	var nf *remote.NotFoundError
	var fatal *FatalError
	switch {
	case err == nil:
		return Retryable
	case errors.As(err, &fatal):
		return Fatal
	case errors.As(err, &nf):
		return Convergent
	default:
		return Retryable
	}
}

// classifyFor applies the per-kind rule on top of Classify: a missing
// record only converges an operation that expects it to exist.
// A CREATE that hits a 404 usually means a parent route is missing.
func classifyFor(op Operation, err error) ErrorClass {
	class := Classify(err)
	if class == Convergent {
		if _, ok := op.(Create); ok {
			return Retryable
		}
	}
	return class
}

// PullError collects per-entity failures of one parallel pull
type PullError struct {
	Errors map[EntityType]error
}

func (e *PullError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, e.Errors[EntityType(k)]))
	}
	return "pull failed for " + strings.Join(parts, "; ")
}

func (e *PullError) Unwrap() []error {
	out := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		out = append(out, err)
	}
	return out
}

// Failed reports whether entity failed in this pull
func (e *PullError) Failed(entity EntityType) bool {
	_, ok := e.Errors[entity]
	return ok
}
