package remote

import "fmt"

// NotFoundError means the addressed record does not exist upstream
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// TransportError is a failure to reach the backend at all
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a 5xx or throttling response
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: server error %d: %s", e.Op, e.StatusCode, e.Message)
}

// ValidationError is a rejection of the request body.
// The backend can reject a record whose references are not replayed yet,
// so callers retry it.
type ValidationError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: rejected (%d): %s", e.Op, e.StatusCode, e.Message)
}
