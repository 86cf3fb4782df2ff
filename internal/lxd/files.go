package lxd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"nathanbeddoewebdev/lxdm/internal/domain"
)

// File metadata headers.
const (
	headerUID  = "X-LXD-uid"
	headerGID  = "X-LXD-gid"
	headerMode = "X-LXD-mode"
	headerType = "X-LXD-type"
)

func filesPath(server *domain.Server) string {
	return "containers/" + url.PathEscape(server.ID) + "/files"
}

// GetFile opens path inside server for reading. The body is streamed; the
// caller must close the returned File.
func (c *Client) GetFile(ctx context.Context, server *domain.Server, path string) (*domain.File, error) {
	if !server.Persisted() {
		return nil, fmt.Errorf("container has not been created: %w", domain.ErrNotFound)
	}

	resp, err := c.Do(ctx, Request{
		Path:    filesPath(server),
		Params:  url.Values{"path": {path}},
		Expects: []int{http.StatusOK},
		Stream:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %q: %w", path, server.ID, err)
	}

	h := resp.Raw.Header
	f := &domain.File{ReadCloser: resp.Raw.Body, Type: h.Get(headerType)}
	f.UID, _ = strconv.Atoi(h.Get(headerUID))
	f.GID, _ = strconv.Atoi(h.Get(headerGID))
	if mode, err := strconv.ParseUint(h.Get(headerMode), 8, 32); err == nil {
		f.Mode = os.FileMode(mode)
	}
	if f.Type == "" {
		f.Type = "file"
	}
	return f, nil
}

// PutFile uploads r to path inside server using chunked encoding. A nil
// opts uploads as root with mode 0700. Failed uploads are not resumed.
func (c *Client) PutFile(ctx context.Context, server *domain.Server, r io.Reader, path string, opts *domain.FileOpts) error {
	if !server.Persisted() {
		return fmt.Errorf("container has not been created: %w", domain.ErrNotFound)
	}
	o := domain.DefaultFileOpts()
	if opts != nil {
		o = *opts
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/octet-stream")
	headers.Set(headerUID, strconv.Itoa(o.UID))
	headers.Set(headerGID, strconv.Itoa(o.GID))
	headers.Set(headerMode, fmt.Sprintf("%04o", o.Mode.Perm()))
	headers.Set(headerType, "file")

	_, err := c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    filesPath(server),
		Params:  url.Values{"path": {path}},
		Body:    r,
		Headers: headers,
		Chunked: true,
	})
	if err != nil {
		return fmt.Errorf("failed to write %s to %q: %w", path, server.ID, err)
	}
	return nil
}
