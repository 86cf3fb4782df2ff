package lxd

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/lxdm/internal/domain"

	"go.uber.org/zap"
)

const (
	// DefaultOperationTimeout is used when a wait is given no timeout.
	DefaultOperationTimeout = 30 * time.Second

	// ActionTimeout bounds waits on simple state changes (create, start, stop).
	ActionTimeout = 20 * time.Second

	// waitGrace is added to the remote long-poll timeout to bound the local
	// request, so a remote that never answers cannot hang the caller.
	waitGrace = 10 * time.Second
)

// NormalizeOperationID strips the "/{version}/operations/" prefix from an
// operation reference. Bare ids are returned unchanged.
func NormalizeOperationID(ref, version string) string {
	return strings.TrimPrefix(ref, "/"+version+"/operations/")
}

// WaitForOperation blocks on the remote long-poll endpoint until the
// operation succeeds or timeout elapses. It never re-issues the wait; an
// operation that is still running or has failed yields an *OperationError.
func (c *Client) WaitForOperation(ctx context.Context, ref string, timeout time.Duration) error {
	id := NormalizeOperationID(ref, c.version())
	if id == "" {
		return &ProtocolError{Op: "wait", Msg: "empty operation reference"}
	}
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout+waitGrace)
	defer cancel()

	params := url.Values{
		"status_code": {"200"},
		"timeout":     {strconv.Itoa(int(math.Ceil(timeout.Seconds())))},
	}

	c.logger.Debug("waiting for operation", zap.String("operation", id), zap.Duration("timeout", timeout))

	resp, err := c.Do(waitCtx, Request{
		Path:    "operations/" + url.PathEscape(id) + "/wait",
		Params:  params,
		Expects: []int{http.StatusOK},
	})
	if err != nil {
		var serr *StatusError
		if errors.As(err, &serr) {
			return &OperationError{ID: id, StatusCode: serr.StatusCode, Err: serr.Message, Cause: err}
		}
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return &OperationError{ID: id, Cause: err}
		}
		return err
	}

	if !resp.Envelope.HasMetadata() {
		return nil
	}
	var op domain.Operation
	if err := resp.Envelope.DecodeMetadata("wait", &op); err != nil {
		return err
	}
	if op.StatusCode != 0 && op.StatusCode != http.StatusOK {
		c.logger.Debug("operation not successful",
			zap.String("operation", id), zap.String("status", op.Status), zap.String("err", op.Err))
		return &OperationError{ID: id, StatusCode: op.StatusCode, Status: op.Status, Err: op.Err}
	}
	return nil
}

// GetOperation fetches the current state of an operation.
func (c *Client) GetOperation(ctx context.Context, ref string) (*domain.Operation, error) {
	id := NormalizeOperationID(ref, c.version())
	if id == "" {
		return nil, &ProtocolError{Op: "get operation", Msg: "empty operation reference"}
	}

	resp, err := c.Do(ctx, Request{Path: "operations/" + url.PathEscape(id)})
	if err != nil {
		return nil, err
	}

	var op domain.Operation
	if err := resp.Envelope.DecodeMetadata("get operation", &op); err != nil {
		return nil, err
	}
	if op.ID == "" {
		op.ID = id
	}
	return &op, nil
}

// wait is WaitForOperation plus observer notifications.
func (c *Client) wait(ctx context.Context, ref domain.OperationRef, timeout time.Duration) error {
	ref.ID = NormalizeOperationID(ref.ID, c.version())
	if ref.ID == "" {
		return &ProtocolError{Op: ref.Command, Msg: "response carried no operation reference"}
	}
	if c.observer != nil {
		c.observer.OperationStarted(ref)
	}
	err := c.WaitForOperation(ctx, ref.ID, timeout)
	if c.observer != nil {
		c.observer.OperationFinished(ref, err)
	}
	return err
}
