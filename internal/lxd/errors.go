package lxd

import (
	"fmt"
	"net/http"

	"nathanbeddoewebdev/lxdm/internal/domain"
)

// StatusError is returned when a response status is outside the expected set.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the remote's error text, when it sent one.
	Message string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("lxd: %s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *StatusError) Unwrap() []error {
	errs := []error{domain.ErrUnexpectedStatus}
	switch e.StatusCode {
	case http.StatusNotFound:
		errs = append(errs, domain.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		errs = append(errs, domain.ErrUnauthorized)
	case http.StatusConflict:
		errs = append(errs, domain.ErrConflict)
	}
	return errs
}

// OperationError is returned when a wait ends without the operation
// succeeding: it is still running, it failed, or the wait itself failed.
type OperationError struct {
	ID         string
	StatusCode int
	Status     string
	// Err is the remote's failure text for failed operations.
	Err   string
	Cause error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("lxd: operation %s did not complete", e.ID)
	if e.Status != "" {
		msg += fmt.Sprintf(" (status %s)", e.Status)
	} else if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status code %d)", e.StatusCode)
	}
	if e.Err != "" {
		msg += ": " + e.Err
	}
	return msg
}

func (e *OperationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{domain.ErrOperationTimeout, e.Cause}
	}
	return []error{domain.ErrOperationTimeout}
}

// ProtocolError reports malformed or incomplete metadata from the remote.
type ProtocolError struct {
	Op  string
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("lxd: protocol error: %s: %s", e.Op, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() []error {
	if e.Err != nil {
		return []error{domain.ErrProtocol, e.Err}
	}
	return []error{domain.ErrProtocol}
}

// Pending reports whether the operation may still complete: the wait ended
// while it was running, or the wait itself was cut short locally.
func (e *OperationError) Pending() bool {
	return e.StatusCode < http.StatusBadRequest
}
