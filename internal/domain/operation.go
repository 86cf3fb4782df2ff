package domain

import (
	"encoding/json"
	"time"
)

// Operation status values tracked locally. An operation is running until a
// wait on it either succeeds or fails.
const (
	OperationStatusRunning = "running"
	OperationStatusSuccess = "success"
	OperationStatusError   = "error"
)

// OperationRef identifies a background task on the hypervisor together with
// the container and command that produced it.
type OperationRef struct {
	// ID is the normalized operation id (no "/1.0/operations/" prefix).
	ID        string
	Container string
	// Command describes the action, e.g. "create", "start", "stop", "exec".
	Command string
}

// Operation is the hypervisor's view of a background task.
type Operation struct {
	ID         string          `json:"id"`
	Class      string          `json:"class"`
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Err        string          `json:"err"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Metadata   json.RawMessage `json:"metadata"`
}

// OperationObserver is notified about operations a provider waits on.
// Implementations must not block for long; they run on the caller's goroutine.
type OperationObserver interface {
	OperationStarted(ref OperationRef)
	OperationFinished(ref OperationRef, err error)
}
