package opstore

import "time"

// OperationRecord is a hypervisor operation the CLI waited on. Records
// left in "running" can have their wait re-issued on a later invocation.
type OperationRecord struct {
	// ID is the auto-increment primary key (assigned on insert).
	ID int64

	// OperationID is the normalized hypervisor operation id.
	OperationID string

	// Remote is the configured remote name the operation belongs to.
	Remote string

	// Container is the container the operation acts on.
	Container string

	// Command describes the action, e.g. "create", "start", "exec".
	Command string

	// Status is "running", "success", or "error".
	Status string

	// ErrorMessage contains a human-readable explanation when Status is "error".
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}
