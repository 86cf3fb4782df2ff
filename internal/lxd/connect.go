package lxd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"nathanbeddoewebdev/lxdm/internal/domain"

	"go.uber.org/zap"
)

type rootMetadata []string

type versionMetadata struct {
	APIVersion string `json:"api_version"`
	Auth       string `json:"auth"`
}

type certificateBody struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Connect checks that the remote advertises the configured API version and
// reports whether it trusts the client certificate. An untrusted client is
// registered with Authenticate when a password was configured.
func (c *Client) Connect(ctx context.Context) (*domain.RemoteInfo, error) {
	root, err := c.Do(ctx, Request{Endpoint: c.remote.Endpoint})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.remote.Endpoint, err)
	}
	var versions rootMetadata
	if root.Envelope.HasMetadata() {
		if err := root.Envelope.DecodeMetadata("connect", &versions); err != nil {
			return nil, err
		}
	}
	supported := false
	for _, v := range versions {
		if strings.HasSuffix(v, "/"+c.version()) {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("remote %s advertises %v, want %s: %w",
			c.remote.Endpoint, []string(versions), c.version(), domain.ErrInvalidVersion)
	}

	resp, err := c.Do(ctx, Request{})
	if err != nil {
		return nil, fmt.Errorf("failed to read remote info: %w", err)
	}
	var meta versionMetadata
	if err := resp.Envelope.DecodeMetadata("connect", &meta); err != nil {
		return nil, err
	}

	info := &domain.RemoteInfo{APIVersion: meta.APIVersion, Auth: meta.Auth, Trusted: meta.Auth == "trusted"}
	if info.APIVersion == "" {
		info.APIVersion = c.version()
	}
	if !info.Trusted && c.password != "" {
		c.logger.Debug("client not trusted, registering certificate", zap.String("endpoint", c.remote.Endpoint))
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		info.Auth = "trusted"
		info.Trusted = true
	}
	return info, nil
}

// Authenticate registers the client certificate with the remote using the
// trust password.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.password == "" {
		return fmt.Errorf("lxd: no trust password configured for %s: %w", c.remote.Endpoint, domain.ErrUnauthorized)
	}
	_, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "certificates",
		JSON: certificateBody{
			Type:     "client",
			Name:     c.remote.ClientName,
			Password: c.password,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register client certificate: %w", err)
	}
	return nil
}
