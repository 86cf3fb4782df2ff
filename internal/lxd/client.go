// Package lxd drives the LXD REST and WebSocket API: container lifecycle,
// operation waits, interactive exec sessions and file transfer.
//
// Requests are never retried. Hypervisor actions such as create, start,
// stop and delete are not idempotent, so a failed call surfaces to the
// caller as a typed error and the caller decides what to do next.
package lxd

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/domain"

	"go.uber.org/zap"
)

// Compile-time checks for the optional provider capabilities.
var (
	_ domain.Provider           = (*Client)(nil)
	_ domain.Executor           = (*Client)(nil)
	_ domain.FileTransferer     = (*Client)(nil)
	_ domain.OperationWaiter    = (*Client)(nil)
	_ domain.ObservableProvider = (*Client)(nil)
	_ domain.Connector          = (*Client)(nil)
)

// defaultOutputGrace is how long a finished exec waits for trailing output.
const defaultOutputGrace = 2 * time.Second

// ProviderName is the value stored in domain.Server.Provider.
const ProviderName = "lxd"

// Client talks to a single remote. It is safe for concurrent use.
type Client struct {
	remote   config.Remote
	password string
	logger   *zap.Logger
	observer domain.OperationObserver
	dialer   StreamDialer

	// outputGrace bounds how long a finished exec waits for its I/O
	// channel to be closed by the remote.
	outputGrace time.Duration

	// Built lazily on first use and reused for the client's lifetime.
	tlsOnce sync.Once
	tlsConf *tls.Config
	tlsErr  error

	httpOnce   sync.Once
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from the remote's TLS
// settings. Intended for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpOnce.Do(func() { c.httpClient = hc })
	}
}

// WithDialer replaces the WebSocket dialer used for exec descriptors.
func WithDialer(d StreamDialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPassword sets the trust password used by Connect when the remote does
// not yet trust the client certificate.
func WithPassword(p string) Option {
	return func(c *Client) { c.password = p }
}

// WithObserver sets the observer notified about waited operations.
func WithObserver(o domain.OperationObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient returns a client for remote. No network or file access happens
// until the first request.
func NewClient(remote config.Remote, opts ...Option) (*Client, error) {
	remote = remote.WithDefaults()
	if remote.Endpoint == "" {
		return nil, fmt.Errorf("lxd: remote has no endpoint")
	}
	if _, err := url.Parse(remote.Endpoint); err != nil {
		return nil, fmt.Errorf("lxd: invalid endpoint %q: %w", remote.Endpoint, err)
	}

	c := &Client{
		remote: remote,
		logger: zap.NewNop(),
		dialer: websocketDialer{},

		outputGrace: defaultOutputGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) GetDisplayName() string {
	return "LXD"
}

// SetOperationObserver implements domain.ObservableProvider.
func (c *Client) SetOperationObserver(o domain.OperationObserver) {
	c.observer = o
}

func (c *Client) version() string {
	return c.remote.Version
}

func (c *Client) tlsConfig() (*tls.Config, error) {
	c.tlsOnce.Do(func() {
		c.tlsConf, c.tlsErr = buildTLSConfig(c.remote)
	})
	return c.tlsConf, c.tlsErr
}

// client returns the HTTP client, building it from the TLS identity on
// first use. A TLS build failure is cached and returned on every call.
func (c *Client) client() (*http.Client, error) {
	c.httpOnce.Do(func() {
		conf, err := c.tlsConfig()
		if err != nil {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = conf
		c.httpClient = &http.Client{Transport: transport}
	})
	if c.httpClient == nil {
		_, err := c.tlsConfig()
		return nil, err
	}
	return c.httpClient, nil
}

// Request describes one call against the remote.
type Request struct {
	// Method defaults to GET.
	Method string

	// Path is relative to "{endpoint}/{version}".
	Path string

	// Endpoint, when set, replaces "{endpoint}/{version}" as the base URL.
	Endpoint string

	Params  url.Values
	JSON    any
	Body    io.Reader
	Headers http.Header

	// Chunked sends Body with Transfer-Encoding: chunked.
	Chunked bool

	// Expects lists acceptable status codes. Empty means any 2xx.
	Expects []int

	// Stream leaves the response body unread in Response.Raw.
	Stream bool
}

// Response is a completed call. Raw.Body is only open for Stream requests.
type Response struct {
	StatusCode int
	Envelope   Envelope
	// Operation is the raw operation reference of async responses.
	Operation string
	Raw       *http.Response
}

// Envelope is the standard LXD response wrapper.
type Envelope struct {
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Operation  string          `json:"operation"`
	ErrorCode  int             `json:"error_code"`
	Error      string          `json:"error"`
	Metadata   json.RawMessage `json:"metadata"`
}

// HasMetadata reports whether the envelope carried a non-null metadata field.
func (e *Envelope) HasMetadata() bool {
	m := bytes.TrimSpace(e.Metadata)
	return len(m) > 0 && !bytes.Equal(m, []byte("null"))
}

// DecodeMetadata unmarshals the metadata field into v.
func (e *Envelope) DecodeMetadata(op string, v any) error {
	if !e.HasMetadata() {
		return &ProtocolError{Op: op, Msg: "response has no metadata"}
	}
	if err := json.Unmarshal(e.Metadata, v); err != nil {
		return &ProtocolError{Op: op, Msg: "malformed metadata", Err: err}
	}
	return nil
}

// Do performs req and checks the status against req.Expects.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	base := req.Endpoint
	if base == "" {
		base = c.remote.VersionedEndpoint()
	}
	target := base
	if req.Path != "" {
		target += "/" + strings.TrimPrefix(req.Path, "/")
	}
	if len(req.Params) > 0 {
		target += "?" + req.Params.Encode()
	}

	var body io.Reader
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("lxd: failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	case req.Body != nil:
		body = req.Body
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("lxd: failed to build request: %w", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.JSON != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Chunked {
		httpReq.ContentLength = -1
		httpReq.TransferEncoding = []string{"chunked"}
	}

	hc, err := c.client()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := hc.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method), zap.String("path", req.Path), zap.Error(err))
		return nil, fmt.Errorf("lxd: %s %s: %w", method, req.Path, err)
	}
	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if !expected(resp.StatusCode, req.Expects) {
		defer resp.Body.Close()
		serr := &StatusError{Method: method, Path: req.Path, StatusCode: resp.StatusCode}
		var env Envelope
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(data) > 0 {
			if json.Unmarshal(data, &env) == nil {
				serr.Message = env.Error
			}
		}
		return nil, serr
	}

	out := &Response{StatusCode: resp.StatusCode, Raw: resp}
	if req.Stream {
		return out, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lxd: %s %s: failed to read response: %w", method, req.Path, err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &out.Envelope); err != nil && resp.StatusCode < 300 {
			return nil, &ProtocolError{Op: method + " " + req.Path, Msg: "response is not a valid envelope", Err: err}
		}
	}
	out.Operation = out.Envelope.Operation
	return out, nil
}

func expected(status int, expects []int) bool {
	if len(expects) == 0 {
		return status >= 200 && status < 300
	}
	for _, e := range expects {
		if status == e {
			return true
		}
	}
	return false
}
