package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/database"
	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/providers"
)

// mockProvider is an in-memory remote. It implements domain.Provider,
// domain.Executor, domain.FileTransferer and domain.OperationWaiter.
type mockProvider struct {
	mu       sync.Mutex
	observer domain.OperationObserver
	servers  map[string]domain.Server

	listErr   error
	createErr error
	startErr  error

	created   *domain.Server
	stopForce bool
	destroyed []string

	execCommand string
	execOpts    domain.ExecOptions
	execStdin   string
	execOutput  string
	execExit    int
	execErr     error

	// execWaitErrs are returned by successive waits before one succeeds.
	execWaitErrs []error
	execWaits    int

	files   map[string]*mockFile
	putPath string
	putData string
	putOpts *domain.FileOpts

	waited  []string
	waitErr error
}

type mockFile struct {
	data string
	mode int
	typ  string
}

func newMockProvider(servers ...domain.Server) *mockProvider {
	m := &mockProvider{servers: map[string]domain.Server{}, files: map[string]*mockFile{}}
	for _, s := range servers {
		if s.ID == "" {
			s.ID = s.Name
		}
		s.Provider = "mock"
		m.servers[s.Name] = s
	}
	return m
}

func (m *mockProvider) GetDisplayName() string { return "Mock" }

func (m *mockProvider) ListServers(context.Context) ([]domain.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]domain.Server, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Server{Name: n, State: domain.StatePending, ImageID: domain.ValueUnknown, FlavorID: domain.ValueUnknown})
	}
	return out, nil
}

func (m *mockProvider) Reload(_ context.Context, server *domain.Server) (*domain.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := server.ID
	if name == "" {
		name = server.Name
	}
	s, ok := m.servers[name]
	if !ok {
		return &domain.Server{Name: name, State: domain.StateTerminated, Status: "terminated", ImageID: domain.ValueNone, FlavorID: domain.ValueNone}, nil
	}
	return &s, nil
}

func (m *mockProvider) CreateServer(_ context.Context, server *domain.Server) (*domain.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *server
	m.created = &copied
	if m.createErr != nil {
		return nil, m.createErr
	}
	out := *server
	out.ID = out.Name
	out.State = domain.StateRunning
	out.Status = "running"
	out.Provider = "mock"
	m.servers[out.Name] = out
	return &out, nil
}

func (m *mockProvider) StartServer(_ context.Context, server *domain.Server) (*domain.Server, error) {
	ref := domain.OperationRef{ID: "op-start", Container: server.Name, Command: "start"}
	if m.observer != nil {
		m.observer.OperationStarted(ref)
	}
	m.mu.Lock()
	err := m.startErr
	m.mu.Unlock()
	if m.observer != nil {
		m.observer.OperationFinished(ref, err)
	}
	if err != nil {
		return nil, err
	}
	return m.setState(server.Name, domain.StateRunning), nil
}

func (m *mockProvider) StopServer(_ context.Context, server *domain.Server, force bool) (*domain.Server, error) {
	m.mu.Lock()
	m.stopForce = force
	m.mu.Unlock()
	return m.setState(server.Name, domain.StateStopped), nil
}

func (m *mockProvider) setState(name string, state domain.State) *domain.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.servers[name]
	s.State = state
	s.Status = string(state)
	m.servers[name] = s
	return &s
}

func (m *mockProvider) DestroyServer(_ context.Context, server *domain.Server) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !server.Persisted() {
		return false, nil
	}
	delete(m.servers, server.Name)
	m.destroyed = append(m.destroyed, server.Name)
	return true, nil
}

func (m *mockProvider) Execute(_ context.Context, server *domain.Server, command string, opts domain.ExecOptions) (*domain.ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execCommand = command
	m.execOpts = opts
	if opts.Stdin != nil {
		data, _ := io.ReadAll(opts.Stdin)
		m.execStdin = string(data)
	}
	if m.execErr != nil {
		return nil, m.execErr
	}
	for _, waitErr := range m.execWaitErrs {
		m.execWaits++
		if opts.KeepWaiting == nil || !opts.KeepWaiting(waitErr) {
			return nil, waitErr
		}
	}
	m.execWaits++
	if opts.Stream != nil && m.execOutput != "" {
		io.WriteString(opts.Stream, m.execOutput)
	}
	return &domain.ExecResult{OperationID: "op-exec", ExitCode: m.execExit}, nil
}

func (m *mockProvider) GetFile(_ context.Context, server *domain.Server, path string) (*domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, domain.ErrNotFound)
	}
	typ := f.typ
	if typ == "" {
		typ = "file"
	}
	return &domain.File{
		ReadCloser: io.NopCloser(strings.NewReader(f.data)),
		UID:        1000,
		GID:        1000,
		Mode:       os.FileMode(f.mode),
		Type:       typ,
	}, nil
}

func (m *mockProvider) PutFile(_ context.Context, server *domain.Server, r io.Reader, path string, opts *domain.FileOpts) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putPath = path
	m.putData = string(data)
	m.putOpts = opts
	return nil
}

func (m *mockProvider) WaitForOperation(_ context.Context, ref string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waited = append(m.waited, ref)
	return m.waitErr
}

// testEnv points config and the database at temp files and registers mock
// as the "mock" driver behind the default remote "lab".
type testEnv struct {
	configPath string
	dbPath     string
	deps       providers.Deps
}

func setupTestEnv(t *testing.T, mock *mockProvider) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		configPath: filepath.Join(dir, "config.json"),
		dbPath:     filepath.Join(dir, "lxdm.db"),
	}

	config.SetPath(env.configPath)
	t.Cleanup(config.ResetPath)
	database.SetPath(env.dbPath)
	t.Cleanup(database.ResetPath)

	cfg := &config.Config{
		DefaultRemote: "lab",
		Remotes: map[string]config.Remote{
			"lab":   {Driver: "mock", Endpoint: "https://10.0.0.1:8443"},
			"other": {Driver: "mock", Endpoint: "https://10.0.0.2:8443"},
		},
	}
	if err := cfg.SaveTo(env.configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	providers.Reset()
	t.Cleanup(providers.Reset)
	providers.Register("mock", func(remote config.Remote, deps providers.Deps) (domain.Provider, error) {
		env.deps = deps
		mock.observer = deps.Observer
		return mock, nil
	})

	return env
}

// execContainer runs the container command with args and returns its
// output streams and error.
func execContainer(t *testing.T, stdin io.Reader, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func runningServer(name string) domain.Server {
	return domain.Server{
		Name:      name,
		State:     domain.StateRunning,
		Status:    "running",
		ImageID:   "ubuntu/24.04",
		FlavorID:  "default",
		Addresses: []domain.Address{{Version: 4, Address: "10.0.0.5"}},
		Custom:    map[string]any{"ephemeral": false},
	}
}
