package lxd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"nathanbeddoewebdev/lxdm/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Exec descriptor names. "0" carries combined stdin/stdout/stderr for
// interactive sessions.
const (
	fdControl = "control"
	fdIO      = "0"
)

// StreamConn is one exec descriptor channel. *websocket.Conn satisfies it.
type StreamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// StreamDialer opens descriptor channels using the client's TLS identity.
type StreamDialer interface {
	Dial(ctx context.Context, rawURL string, conf *tls.Config) (StreamConn, error)
}

type websocketDialer struct{}

func (websocketDialer) Dial(ctx context.Context, rawURL string, conf *tls.Config) (StreamConn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 30 * time.Second,
		TLSClientConfig:  conf,
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

type execBody struct {
	Command          []string          `json:"command"`
	Environment      map[string]string `json:"environment,omitempty"`
	WaitForWebsocket bool              `json:"wait-for-websocket"`
	Interactive      bool              `json:"interactive"`
	Width            int               `json:"width,omitempty"`
	Height           int               `json:"height,omitempty"`
}

type execFds struct {
	Fds map[string]string `json:"fds"`
}

type execReturn struct {
	Return *int `json:"return"`
}

// websocketURL builds the descriptor URL for an exec operation.
func (c *Client) websocketURL(operationID, secret string) (string, error) {
	u, err := url.Parse(c.remote.Endpoint)
	if err != nil {
		return "", fmt.Errorf("lxd: invalid endpoint %q: %w", c.remote.Endpoint, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + c.version() + "/operations/" + url.PathEscape(operationID) + "/websocket"
	u.RawQuery = url.Values{"secret": {secret}}.Encode()
	return u.String(), nil
}

// Execute runs command inside server and returns its exit code.
//
// The command is split into an argument vector with shell quoting rules.
// Output arriving on the I/O descriptor is forwarded to opts.Stream while
// the operation wait is outstanding. Every descriptor channel is closed
// before the exit code is fetched, on success and on error alike. When the
// wait ends without success the exit code is never read and the wait error
// is returned. opts.KeepWaiting lets the caller re-issue the wait, never
// the command, while the process is still running.
func (c *Client) Execute(ctx context.Context, server *domain.Server, command string, opts domain.ExecOptions) (*domain.ExecResult, error) {
	if !server.Persisted() {
		return nil, fmt.Errorf("container has not been created: %w", domain.ErrNotFound)
	}

	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, errors.New("lxd: command is empty")
	}

	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "containers/" + url.PathEscape(server.ID) + "/exec",
		JSON: execBody{
			Command:          argv,
			Environment:      opts.Environment,
			WaitForWebsocket: true,
			Interactive:      true,
			Width:            opts.Width,
			Height:           opts.Height,
		},
		Expects: []int{http.StatusAccepted},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExecRequestFailed, err)
	}

	opID := NormalizeOperationID(resp.Operation, c.version())
	if opID == "" {
		return nil, &ProtocolError{Op: "exec", Msg: "response carried no operation reference"}
	}
	secrets, err := execSecrets(resp.Envelope)
	if err != nil {
		return nil, err
	}

	conns, err := c.dialDescriptors(ctx, opID, secrets)
	if err != nil {
		return nil, err
	}

	var stream io.Writer = io.Discard
	if opts.Stream != nil {
		stream = &syncWriter{w: opts.Stream}
	}

	ioDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(ioDone)
		return pumpOutput(conns[fdIO], stream)
	})
	g.Go(func() error { return drain(conns[fdControl]) })
	for fd, conn := range conns {
		if fd != fdIO && fd != fdControl {
			g.Go(func() error { return pumpOutput(conn, stream) })
		}
	}
	if opts.Stdin != nil {
		// Not part of the group: reads from a terminal may block past the
		// end of the session. Writes fail once the channel is closed.
		go pumpInput(opts.Stdin, conns[fdIO])
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	ref := domain.OperationRef{ID: opID, Container: server.ID, Command: "exec"}
	waitErr := c.wait(gctx, ref, timeout)
	for waitErr != nil && opts.KeepWaiting != nil && gctx.Err() == nil && opts.KeepWaiting(waitErr) {
		c.logger.Debug("exec still running, waiting again", zap.String("operation", opID))
		waitErr = c.wait(gctx, ref, timeout)
	}
	if waitErr == nil {
		c.awaitOutput(ioDone)
	}

	c.closeDescriptors(conns)
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to stream exec output: %w", err)
	}
	if waitErr != nil {
		return nil, waitErr
	}

	op, err := c.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	var ret execReturn
	if len(op.Metadata) > 0 {
		if err := json.Unmarshal(op.Metadata, &ret); err != nil {
			return nil, &ProtocolError{Op: "exec", Msg: "malformed operation metadata", Err: err}
		}
	}
	if ret.Return == nil {
		return nil, &ProtocolError{Op: "exec", Msg: "operation metadata has no exit code"}
	}
	return &domain.ExecResult{OperationID: opID, ExitCode: *ret.Return}, nil
}

// execSecrets extracts the descriptor secrets from an exec response. The
// control and I/O descriptors are required.
func execSecrets(env Envelope) (map[string]string, error) {
	var op domain.Operation
	if err := env.DecodeMetadata("exec", &op); err != nil {
		return nil, err
	}
	var fds execFds
	if len(op.Metadata) > 0 {
		if err := json.Unmarshal(op.Metadata, &fds); err != nil {
			return nil, &ProtocolError{Op: "exec", Msg: "malformed descriptor metadata", Err: err}
		}
	}
	for _, fd := range []string{fdControl, fdIO} {
		if fds.Fds[fd] == "" {
			return nil, &ProtocolError{Op: "exec", Msg: fmt.Sprintf("missing secret for descriptor %q", fd)}
		}
	}
	return fds.Fds, nil
}

// dialDescriptors opens exactly one channel per descriptor. On failure any
// channel already opened is closed.
func (c *Client) dialDescriptors(ctx context.Context, opID string, secrets map[string]string) (map[string]StreamConn, error) {
	conf, err := c.tlsConfig()
	if err != nil {
		return nil, err
	}

	fds := make([]string, 0, len(secrets))
	for fd := range secrets {
		fds = append(fds, fd)
	}
	sort.Strings(fds)

	conns := make(map[string]StreamConn, len(fds))
	for _, fd := range fds {
		target, err := c.websocketURL(opID, secrets[fd])
		if err != nil {
			c.closeDescriptors(conns)
			return nil, err
		}
		conn, err := c.dialer.Dial(ctx, target, conf)
		if err != nil {
			c.closeDescriptors(conns)
			return nil, fmt.Errorf("failed to open exec descriptor %q: %w", fd, err)
		}
		c.logger.Debug("exec descriptor opened", zap.String("operation", opID), zap.String("fd", fd))
		conns[fd] = conn
	}
	return conns, nil
}

func (c *Client) closeDescriptors(conns map[string]StreamConn) {
	deadline := time.Now().Add(time.Second)
	for fd, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		if err := conn.Close(); err != nil {
			c.logger.Debug("exec descriptor close failed", zap.String("fd", fd), zap.Error(err))
		}
	}
}

// awaitOutput gives the I/O channel up to outputGrace to deliver output
// still in flight after the operation finished. The remote closes the
// channel once the process output is fully sent.
func (c *Client) awaitOutput(done <-chan struct{}) {
	if c.outputGrace <= 0 {
		return
	}
	timer := time.NewTimer(c.outputGrace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		c.logger.Debug("exec output channel still open, closing")
	}
}

// syncWriter serializes writes from concurrent descriptor pumps.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// pumpOutput copies messages to w until the channel closes.
func pumpOutput(conn StreamConn, w io.Writer) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		if len(data) == 0 {
			continue
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
}

// drain discards control messages until the channel closes.
func drain(conn StreamConn) error {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func pumpInput(r io.Reader, conn StreamConn) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
