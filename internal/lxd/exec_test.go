package lxd

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// --- Fake descriptor channels ---

type fakeConn struct {
	fd  string
	log *callLog

	mu      sync.Mutex
	pending [][]byte
	written [][]byte

	drained   chan struct{}
	input     chan struct{}
	inputOnce sync.Once
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn(fd string, log *callLog, messages [][]byte) *fakeConn {
	c := &fakeConn{
		fd:      fd,
		log:     log,
		pending: messages,
		drained: make(chan struct{}),
		input:   make(chan struct{}),
		closed:  make(chan struct{}),
	}
	if len(messages) == 0 {
		close(c.drained)
	}
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		msg := c.pending[0]
		c.pending = c.pending[1:]
		if len(c.pending) == 0 {
			close(c.drained)
		}
		c.mu.Unlock()
		return websocket.BinaryMessage, msg, nil
	}
	c.mu.Unlock()

	<-c.closed
	return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	c.inputOnce.Do(func() { close(c.input) })
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error {
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.log.add("close " + c.fd)
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	log    *callLog
	output map[string][][]byte

	mu    sync.Mutex
	urls  []string
	conns map[string]*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, rawURL string, _ *tls.Config) (StreamConn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	// Secrets in these tests are "secret-<fd>".
	fd := strings.TrimPrefix(u.Query().Get("secret"), "secret-")

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conns == nil {
		d.conns = map[string]*fakeConn{}
	}
	conn := newFakeConn(fd, d.log, d.output[fd])
	d.conns[fd] = conn
	d.urls = append(d.urls, rawURL)
	return conn, nil
}

func (d *fakeDialer) conn(fd string) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[fd]
}

// execBackend describes one fake exec session.
type execBackend struct {
	fds        map[string]string
	waitStatus int
	result     map[string]any
	// awaitInput holds the wait until stdin reached the I/O channel.
	awaitInput bool
	// runningWaits is how many waits report the process still running
	// before waitStatus is returned.
	runningWaits int32
}

func newExecServer(t *testing.T, b execBackend, dialer *fakeDialer) (*Client, *callLog, string, func() []map[string]any) {
	t.Helper()
	opID := uuid.NewString()
	var bodies []map[string]any
	var mu sync.Mutex
	var waits atomic.Int32

	srv, log := newRouter(t, map[string]http.HandlerFunc{
		"POST /1.0/containers/web1/exec": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			bodies = append(bodies, body)
			mu.Unlock()
			writeJSON(w, http.StatusAccepted, asyncEnvelope(opID, operationJSON(opID, 103, map[string]any{"fds": b.fds})))
		},
		"GET /1.0/operations/" + opID + "/wait": func(w http.ResponseWriter, r *http.Request) {
			// Let buffered output reach the sink before the session ends.
			if conn := dialer.conn(fdIO); conn != nil {
				select {
				case <-conn.drained:
				case <-time.After(2 * time.Second):
					t.Error("output was not consumed while the wait was outstanding")
				}
				if b.awaitInput {
					select {
					case <-conn.input:
					case <-time.After(2 * time.Second):
						t.Error("stdin was not forwarded while the wait was outstanding")
					}
				}
			}
			status := b.waitStatus
			if status == 0 {
				status = 200
			}
			if waits.Add(1) <= b.runningWaits {
				status = 103
			}
			writeJSON(w, http.StatusOK, syncEnvelope(operationJSON(opID, status, nil)))
		},
		"GET /1.0/operations/" + opID: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, syncEnvelope(operationJSON(opID, 200, b.result)))
		},
	})
	dialer.log = log
	c := newTestClient(t, srv, WithDialer(dialer))
	return c, log, opID, func() []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return append([]map[string]any(nil), bodies...)
	}
}

func defaultFds() map[string]string {
	return map[string]string{"control": "secret-control", "0": "secret-0"}
}

var runningServer = &domain.Server{ID: "web1", Name: "web1", State: domain.StateRunning}

func TestExecute_ReturnsExitCode(t *testing.T) {
	dialer := &fakeDialer{output: map[string][][]byte{"0": {[]byte("hi\n")}}}
	c, _, opID, bodies := newExecServer(t, execBackend{fds: defaultFds(), result: map[string]any{"return": 0}}, dialer)

	var out bytes.Buffer
	got, err := c.Execute(context.Background(), runningServer, "echo hi", domain.ExecOptions{
		Stream:      &out,
		Environment: map[string]string{"TERM": "xterm"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := &domain.ExecResult{OperationID: opID, ExitCode: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Execute() mismatch (-want +got):\n%s", diff)
	}
	if !got.Succeeded() {
		t.Error("Succeeded() = false, want true")
	}
	if out.String() != "hi\n" {
		t.Errorf("stream = %q, want %q", out.String(), "hi\n")
	}

	wantBody := map[string]any{
		"command":            []any{"echo", "hi"},
		"environment":        map[string]any{"TERM": "xterm"},
		"wait-for-websocket": true,
		"interactive":        true,
	}
	if diff := cmp.Diff(wantBody, bodies()[0]); diff != "" {
		t.Errorf("exec body mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_NonZeroExit(t *testing.T) {
	dialer := &fakeDialer{}
	c, _, _, _ := newExecServer(t, execBackend{fds: defaultFds(), result: map[string]any{"return": 3}}, dialer)

	got, err := c.Execute(context.Background(), runningServer, "false", domain.ExecOptions{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got.ExitCode != 3 || got.Succeeded() {
		t.Errorf("ExitCode = %d, Succeeded = %v, want 3/false", got.ExitCode, got.Succeeded())
	}
}

func TestExecute_ShellWords(t *testing.T) {
	dialer := &fakeDialer{}
	c, _, _, bodies := newExecServer(t, execBackend{fds: defaultFds(), result: map[string]any{"return": 0}}, dialer)

	if _, err := c.Execute(context.Background(), runningServer, `sh -c "echo a  b" 'x y'`, domain.ExecOptions{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []any{"sh", "-c", "echo a  b", "x y"}
	if diff := cmp.Diff(want, bodies()[0]["command"]); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_OneChannelPerDescriptor(t *testing.T) {
	dialer := &fakeDialer{}
	c, _, opID, _ := newExecServer(t, execBackend{fds: defaultFds(), result: map[string]any{"return": 0}}, dialer)

	if _, err := c.Execute(context.Background(), runningServer, "true", domain.ExecOptions{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	host := strings.TrimPrefix(c.remote.Endpoint, "http://")
	want := []string{
		"ws://" + host + "/1.0/operations/" + opID + "/websocket?secret=secret-0",
		"ws://" + host + "/1.0/operations/" + opID + "/websocket?secret=secret-control",
	}
	if diff := cmp.Diff(want, dialer.urls); diff != "" {
		t.Errorf("dialed URLs mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_ClosesChannelsBeforeFetchingExitCode(t *testing.T) {
	dialer := &fakeDialer{}
	c, log, opID, _ := newExecServer(t, execBackend{fds: defaultFds(), result: map[string]any{"return": 0}}, dialer)

	if _, err := c.Execute(context.Background(), runningServer, "true", domain.ExecOptions{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	fetch := log.index("GET /1.0/operations/" + opID)
	if fetch < 0 {
		t.Fatalf("exit code never fetched: %v", log.snapshot())
	}
	for _, fd := range []string{"close 0", "close control"} {
		i := log.index(fd)
		if i < 0 || i > fetch {
			t.Errorf("%q at %d, want before fetch at %d: %v", fd, i, fetch, log.snapshot())
		}
	}
	if wait := log.index("GET /1.0/operations/" + opID + "/wait"); wait > log.index("close 0") {
		t.Errorf("channels closed before the wait completed: %v", log.snapshot())
	}
}

func TestExecute_WaitTimeoutDoesNotReadExitCode(t *testing.T) {
	dialer := &fakeDialer{}
	c, log, opID, _ := newExecServer(t, execBackend{fds: defaultFds(), waitStatus: 103, result: map[string]any{"return": 0}}, dialer)

	got, err := c.Execute(context.Background(), runningServer, "sleep 100", domain.ExecOptions{Timeout: time.Second})
	if !errors.Is(err, domain.ErrOperationTimeout) {
		t.Fatalf("error = %v, want ErrOperationTimeout", err)
	}
	if got != nil {
		t.Errorf("Execute() = %+v, want nil result", got)
	}
	if n := log.count("GET /1.0/operations/" + opID); n != 0 {
		t.Errorf("exit code fetched %d times after a timed out wait", n)
	}
	for _, fd := range []string{"0", "control"} {
		if !dialer.conn(fd).isClosed() {
			t.Errorf("descriptor %q left open", fd)
		}
	}
}

func stillRunning(err error) bool {
	var p interface{ Pending() bool }
	return errors.As(err, &p) && p.Pending()
}

func TestExecute_KeepWaitingReissuesOnlyTheWait(t *testing.T) {
	dialer := &fakeDialer{}
	c, log, opID, bodies := newExecServer(t, execBackend{fds: defaultFds(), runningWaits: 2, result: map[string]any{"return": 0}}, dialer)

	asked := 0
	got, err := c.Execute(context.Background(), runningServer, "bash", domain.ExecOptions{
		KeepWaiting: func(err error) bool {
			asked++
			return stillRunning(err)
		},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", got.ExitCode)
	}
	if asked != 2 {
		t.Errorf("KeepWaiting asked %d times, want 2", asked)
	}

	waitKey := "GET /1.0/operations/" + opID + "/wait"
	if n := log.count(waitKey); n != 3 {
		t.Errorf("waits = %d, want 3", n)
	}
	if n := len(bodies()); n != 1 {
		t.Errorf("exec requests = %d, want 1", n)
	}
	if n := len(dialer.urls); n != 2 {
		t.Errorf("dialed %d channels, want 2", n)
	}

	entries := log.snapshot()
	lastWait := -1
	for i, e := range entries {
		if e == waitKey {
			lastWait = i
		}
	}
	if closed := log.index("close 0"); closed < lastWait {
		t.Errorf("I/O channel closed at %d before the last wait at %d: %v", closed, lastWait, entries)
	}
}

func TestExecute_KeepWaitingStopsOnFailure(t *testing.T) {
	dialer := &fakeDialer{}
	c, log, opID, _ := newExecServer(t, execBackend{fds: defaultFds(), waitStatus: 400}, dialer)

	_, err := c.Execute(context.Background(), runningServer, "false", domain.ExecOptions{KeepWaiting: stillRunning})
	if !errors.Is(err, domain.ErrOperationTimeout) {
		t.Fatalf("error = %v, want ErrOperationTimeout", err)
	}
	if n := log.count("GET /1.0/operations/" + opID + "/wait"); n != 1 {
		t.Errorf("waits = %d, want 1", n)
	}
}

func TestExecute_ExtraDescriptorsShareTheStream(t *testing.T) {
	const perFd = 50
	output := map[string][][]byte{}
	for fd, b := range map[string]string{"0": "a", "1": "b", "2": "c"} {
		for range perFd {
			output[fd] = append(output[fd], []byte(b))
		}
	}
	dialer := &fakeDialer{output: output}
	fds := defaultFds()
	fds["1"] = "secret-1"
	fds["2"] = "secret-2"
	c, _, _, _ := newExecServer(t, execBackend{fds: fds, result: map[string]any{"return": 0}}, dialer)

	var out bytes.Buffer
	if _, err := c.Execute(context.Background(), runningServer, "true", domain.ExecOptions{Stream: &out}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, b := range []string{"a", "b", "c"} {
		if n := strings.Count(out.String(), b); n != perFd {
			t.Errorf("stream has %d %q, want %d", n, b, perFd)
		}
	}
}

func TestExecute_MissingSecret(t *testing.T) {
	dialer := &fakeDialer{}
	c, _, _, _ := newExecServer(t, execBackend{fds: map[string]string{"0": "secret-0"}}, dialer)

	_, err := c.Execute(context.Background(), runningServer, "true", domain.ExecOptions{})
	if !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("error = %v, want ErrProtocol", err)
	}
	if len(dialer.urls) != 0 {
		t.Errorf("dialed %v, want no channels", dialer.urls)
	}
}

func TestExecute_MissingExitCode(t *testing.T) {
	dialer := &fakeDialer{}
	c, _, _, _ := newExecServer(t, execBackend{fds: defaultFds(), result: map[string]any{}}, dialer)

	_, err := c.Execute(context.Background(), runningServer, "true", domain.ExecOptions{})
	if !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("error = %v, want ErrProtocol", err)
	}
}

func TestExecute_RequestRejected(t *testing.T) {
	srv, _ := newRouter(t, map[string]http.HandlerFunc{
		"POST /1.0/containers/web1/exec": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, errorEnvelope(400, "container is not running"))
		},
	})
	c := newTestClient(t, srv, WithDialer(&fakeDialer{}))

	_, err := c.Execute(context.Background(), runningServer, "true", domain.ExecOptions{})
	if !errors.Is(err, domain.ErrExecRequestFailed) {
		t.Fatalf("error = %v, want ErrExecRequestFailed", err)
	}
	if !strings.Contains(err.Error(), "container is not running") {
		t.Errorf("error = %q, want remote message", err)
	}
}

func TestExecute_EmptyCommand(t *testing.T) {
	srv, log := newRouter(t, nil)
	c := newTestClient(t, srv)

	if _, err := c.Execute(context.Background(), runningServer, "   ", domain.ExecOptions{}); err == nil {
		t.Fatal("Execute() error = nil, want error")
	}
	if n := len(log.snapshot()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestExecute_ForwardsStdin(t *testing.T) {
	dialer := &fakeDialer{}
	c, _, _, _ := newExecServer(t, execBackend{fds: defaultFds(), result: map[string]any{"return": 0}, awaitInput: true}, dialer)

	if _, err := c.Execute(context.Background(), runningServer, "sh", domain.ExecOptions{Stdin: strings.NewReader("ls\n")}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	conn := dialer.conn("0")
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.written) == 0 || string(conn.written[0]) != "ls\n" {
		t.Errorf("stdin forwarded %q, want %q", conn.written, "ls\n")
	}
}

func TestExecute_BlockedStdinDoesNotHoldTheSession(t *testing.T) {
	dialer := &fakeDialer{}
	c, _, _, _ := newExecServer(t, execBackend{fds: defaultFds(), result: map[string]any{"return": 0}}, dialer)

	stdin, stdinW := io.Pipe()
	t.Cleanup(func() { stdinW.Close() })

	done := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), runningServer, "true", domain.ExecOptions{Stdin: stdin})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Execute() did not return while stdin was blocked")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{endpoint: "https://lxd.example.com:8443", want: "wss://lxd.example.com:8443/1.0/operations/op-1/websocket?secret=s3cr%2Ft"},
		{endpoint: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080/1.0/operations/op-1/websocket?secret=s3cr%2Ft"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			c, err := NewClient(config.Remote{Endpoint: tt.endpoint})
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			got, err := c.websocketURL("op-1", "s3cr/t")
			if err != nil {
				t.Fatalf("websocketURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("websocketURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
