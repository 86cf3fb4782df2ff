package domain

import (
	"io"
	"time"
)

// ExecOptions controls a single command execution inside a container.
type ExecOptions struct {
	// Environment is passed to the remote process.
	Environment map[string]string

	// Stream receives the combined output as it arrives. May be nil.
	Stream io.Writer

	// Stdin, when set, is forwarded to the remote process. It is read on
	// a goroutine that is not stopped when the exec returns: a Read that
	// blocks, as on a terminal, keeps that goroutine alive until it returns.
	// Callers that need it to end should unblock the reader themselves,
	// e.g. by closing it.
	Stdin io.Reader

	// Timeout bounds each operation wait. Zero means the provider default.
	Timeout time.Duration

	// KeepWaiting, when set, is asked about every failed wait. Returning
	// true re-issues the wait on the same operation; the command is never
	// run again. When nil a single wait decides the outcome.
	KeepWaiting func(err error) bool

	// Width and Height set the remote terminal size when non-zero.
	Width  int
	Height int
}

// ExecResult is the outcome of a completed exec operation.
type ExecResult struct {
	OperationID string `json:"operation_id"`
	ExitCode    int    `json:"exit_code"`
}

// Succeeded reports whether the remote process exited with status 0.
func (r *ExecResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}
