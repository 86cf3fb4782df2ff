package domain

import (
	"context"
	"io"
	"time"
)

// Provider is the container lifecycle surface of a hypervisor remote.
type Provider interface {
	GetDisplayName() string

	// ListServers returns a minimal, pending Server per container. Callers
	// reload individual entries for full details.
	ListServers(ctx context.Context) ([]Server, error)

	// Reload refreshes server from the remote. A missing container yields a
	// terminated server rather than an error.
	Reload(ctx context.Context, server *Server) (*Server, error)

	// CreateServer creates and starts a container that has no remote
	// identity yet. It is a no-op for persisted servers.
	CreateServer(ctx context.Context, server *Server) (*Server, error)

	StartServer(ctx context.Context, server *Server) (*Server, error)
	StopServer(ctx context.Context, server *Server, force bool) (*Server, error)

	// DestroyServer deletes a persisted container, stopping it first when
	// running. It returns false when server was never persisted.
	DestroyServer(ctx context.Context, server *Server) (bool, error)
}

// Executor runs commands inside containers.
type Executor interface {
	Execute(ctx context.Context, server *Server, command string, opts ExecOptions) (*ExecResult, error)
}

// FileTransferer streams files in and out of containers.
type FileTransferer interface {
	GetFile(ctx context.Context, server *Server, path string) (*File, error)
	PutFile(ctx context.Context, server *Server, r io.Reader, path string, opts *FileOpts) error
}

// OperationWaiter is implemented by providers whose actions complete
// asynchronously and can be waited on by reference.
type OperationWaiter interface {
	WaitForOperation(ctx context.Context, ref string, timeout time.Duration) error
}

// ObservableProvider is implemented by providers that report the
// operations they wait on.
type ObservableProvider interface {
	SetOperationObserver(observer OperationObserver)
}

// RemoteInfo describes the remote endpoint after connecting.
type RemoteInfo struct {
	APIVersion string `json:"api_version"`
	Auth       string `json:"auth"`
	Trusted    bool   `json:"trusted"`
}

// Connector is implemented by providers that support the trust bootstrap.
type Connector interface {
	Connect(ctx context.Context) (*RemoteInfo, error)
}
