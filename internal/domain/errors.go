package domain

import "errors"

// Sentinel errors for cross-provider error classification.
// Providers should wrap these so the CLI can handle error categories
// uniformly without importing provider-specific packages.
//
//	return fmt.Errorf("failed to delete container: %w", domain.ErrNotFound)
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the client certificate is not trusted by
	// the remote.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates a state or uniqueness conflict, such as
	// a duplicate container name.
	ErrConflict = errors.New("conflict")

	// ErrUnexpectedStatus indicates an HTTP response outside the set the
	// call expected. It is never retried.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrOperationTimeout indicates a long-poll wait ended without the
	// operation reaching success.
	ErrOperationTimeout = errors.New("operation did not complete")

	// ErrProtocol indicates malformed or incomplete operation metadata.
	ErrProtocol = errors.New("protocol error")

	// ErrInvalidVersion indicates the remote does not advertise the
	// configured API version.
	ErrInvalidVersion = errors.New("api version not supported by remote")

	// ErrExecRequestFailed indicates the remote refused to start an exec session.
	ErrExecRequestFailed = errors.New("exec request failed")
)
