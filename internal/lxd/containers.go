package lxd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/lxdm/internal/domain"

	"go.uber.org/zap"
)

// stateMap translates hypervisor status strings. Anything else reported
// for an existing container is pending.
var stateMap = map[string]domain.State{
	"running": domain.StateRunning,
	"stopped": domain.StateStopped,
}

// --- API request/response types ---

type containerMetadata struct {
	Name      string            `json:"name"`
	Status    containerStatus   `json:"status"`
	Profiles  []string          `json:"profiles"`
	Ephemeral bool              `json:"ephemeral"`
	Config    map[string]string `json:"config"`
	CreatedAt time.Time         `json:"created_at"`
	Userdata  string            `json:"userdata"`
}

// containerStatus accepts both the nested {"status": ..., "ips": [...]}
// object and a bare status string.
type containerStatus struct {
	Status string        `json:"status"`
	IPs    []containerIP `json:"ips"`
}

func (s *containerStatus) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Status)
	}
	type plain containerStatus
	return json.Unmarshal(data, (*plain)(s))
}

type containerIP struct {
	Interface string `json:"interface"`
	Protocol  string `json:"protocol"`
	Address   string `json:"address"`
}

type containerSource struct {
	Type  string `json:"type"`
	Alias string `json:"alias"`
}

type createContainerBody struct {
	Name      string            `json:"name"`
	Profiles  []string          `json:"profiles,omitempty"`
	Ephemeral bool              `json:"ephemeral"`
	Config    map[string]string `json:"config,omitempty"`
	Source    containerSource   `json:"source"`
}

type stateChangeBody struct {
	Action string `json:"action"`
	Force  bool   `json:"force,omitempty"`
}

// --- Lifecycle ---

// ListServers returns one pending Server per container name. Use Reload
// to fetch details.
func (c *Client) ListServers(ctx context.Context) ([]domain.Server, error) {
	resp, err := c.Do(ctx, Request{Path: "containers"})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var refs []string
	if resp.Envelope.HasMetadata() {
		if err := resp.Envelope.DecodeMetadata("list containers", &refs); err != nil {
			return nil, err
		}
	}

	prefix := "/" + c.version() + "/containers/"
	servers := make([]domain.Server, 0, len(refs))
	for _, ref := range refs {
		name := strings.TrimPrefix(ref, prefix)
		s := domain.Server{
			ID:       name,
			Name:     name,
			State:    domain.StatePending,
			Status:   domain.ValueUnknown,
			ImageID:  domain.ValueUnknown,
			FlavorID: domain.ValueUnknown,
			Provider: ProviderName,
		}
		if err := s.Validate(); err != nil {
			return nil, &ProtocolError{Op: "list containers", Msg: fmt.Sprintf("bad entry %q", ref), Err: err}
		}
		servers = append(servers, s)
	}
	return servers, nil
}

// Reload repopulates server from the remote. A container that no longer
// exists is reported as terminated, not as an error.
func (c *Client) Reload(ctx context.Context, server *domain.Server) (*domain.Server, error) {
	if server == nil {
		return nil, errors.New("lxd: server is nil")
	}
	name := server.ID
	if name == "" {
		name = server.Name
	}
	if name == "" {
		return nil, errors.New("lxd: server has neither id nor name")
	}

	resp, err := c.Do(ctx, Request{
		Path:    "containers/" + url.PathEscape(name),
		Expects: []int{http.StatusOK, http.StatusNotFound},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reload container %q: %w", name, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		if server.Name == "" {
			server.Name = name
		}
		server.State = domain.StateTerminated
		server.Status = string(domain.StateTerminated)
		server.Addresses = []domain.Address{}
		server.ImageID = domain.ValueNone
		server.FlavorID = domain.ValueNone
		server.Provider = ProviderName
		return server, server.Validate()
	}

	var meta containerMetadata
	if err := resp.Envelope.DecodeMetadata("reload "+name, &meta); err != nil {
		return nil, err
	}
	applyMetadata(server, meta)
	return server, server.Validate()
}

func applyMetadata(server *domain.Server, meta containerMetadata) {
	status := strings.ToLower(meta.Status.Status)
	if status == "" {
		status = domain.ValueUnknown
	}
	state, ok := stateMap[status]
	if !ok {
		state = domain.StatePending
	}

	addresses := make([]domain.Address, 0, len(meta.Status.IPs))
	for _, ip := range meta.Status.IPs {
		version, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(ip.Protocol), "ipv"))
		if err != nil {
			continue
		}
		addresses = append(addresses, domain.Address{Version: version, Address: ip.Address})
	}

	image := meta.Config["volatile.base_image"]
	if image == "" {
		image = domain.ValueUnknown
	}
	flavor := domain.ValueNone
	if len(meta.Profiles) > 0 {
		flavor = meta.Profiles[0]
	}
	userdata := meta.Config["user.user-data"]
	if userdata == "" {
		userdata = meta.Userdata
	}

	server.ID = meta.Name
	server.Name = meta.Name
	server.State = state
	server.Status = status
	server.Addresses = addresses
	server.ImageID = image
	server.FlavorID = flavor
	server.UserData = userdata
	server.CreatedAt = meta.CreatedAt
	server.Provider = ProviderName
	if server.Custom == nil {
		server.Custom = map[string]any{}
	}
	server.Custom["ephemeral"] = meta.Ephemeral
}

// CreateServer creates the container described by server and starts it.
// Updating an existing container is not supported, so persisted servers are
// returned unchanged.
//
// A fresh container's start can race the backend becoming ready, so start
// is re-issued until a reload reports the container running. Each attempt
// is bounded by ActionTimeout; ctx bounds the whole loop.
func (c *Client) CreateServer(ctx context.Context, server *domain.Server) (*domain.Server, error) {
	if server == nil {
		return nil, errors.New("lxd: server is nil")
	}
	if server.Persisted() {
		return server, nil
	}
	if server.Name == "" {
		return nil, errors.New("lxd: server name is required")
	}

	body := createContainerBody{
		Name:      server.Name,
		Ephemeral: server.Ephemeral(),
		Source:    containerSource{Type: "image", Alias: server.ImageID},
	}
	if server.FlavorID != "" {
		body.Profiles = []string{server.FlavorID}
	}
	if server.UserData != "" {
		body.Config = map[string]string{"user.user-data": server.UserData}
	}

	resp, err := c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "containers",
		JSON:    body,
		Expects: []int{http.StatusAccepted},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create container %q: %w", server.Name, err)
	}
	ref := domain.OperationRef{ID: resp.Operation, Container: server.Name, Command: "create"}
	if err := c.wait(ctx, ref, ActionTimeout); err != nil {
		return nil, fmt.Errorf("failed to create container %q: %w", server.Name, err)
	}

	var current *domain.Server
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := c.changeState(ctx, server.Name, stateChangeBody{Action: "start"})
		if err != nil && !errors.Is(err, domain.ErrOperationTimeout) {
			return nil, fmt.Errorf("failed to start container %q: %w", server.Name, err)
		}

		// Reload into a scratch value so server never carries an id while
		// the container is not yet running.
		current, err = c.Reload(ctx, &domain.Server{ID: server.Name, Name: server.Name})
		if err != nil {
			return nil, err
		}
		if current.State == domain.StateRunning {
			break
		}
		if current.State == domain.StateTerminated {
			return nil, fmt.Errorf("container %q disappeared while starting: %w", server.Name, domain.ErrNotFound)
		}
		c.logger.Debug("container not running yet",
			zap.String("container", server.Name), zap.Int("attempt", attempt), zap.String("status", current.Status))
	}

	custom := maps.Clone(server.Custom)
	if custom == nil {
		custom = map[string]any{}
	}
	maps.Copy(custom, current.Custom)

	*server = *current
	server.Custom = custom
	server.ID = server.Name
	return server, nil
}

// StartServer starts a persisted container and reloads it.
func (c *Client) StartServer(ctx context.Context, server *domain.Server) (*domain.Server, error) {
	if !server.Persisted() {
		return nil, fmt.Errorf("container has not been created: %w", domain.ErrNotFound)
	}
	if err := c.changeState(ctx, server.ID, stateChangeBody{Action: "start"}); err != nil {
		return nil, fmt.Errorf("failed to start container %q: %w", server.ID, err)
	}
	return c.Reload(ctx, server)
}

// StopServer stops a persisted container and reloads it.
func (c *Client) StopServer(ctx context.Context, server *domain.Server, force bool) (*domain.Server, error) {
	if !server.Persisted() {
		return nil, fmt.Errorf("container has not been created: %w", domain.ErrNotFound)
	}
	if err := c.changeState(ctx, server.ID, stateChangeBody{Action: "stop", Force: force}); err != nil {
		return nil, fmt.Errorf("failed to stop container %q: %w", server.ID, err)
	}
	return c.Reload(ctx, server)
}

// DestroyServer deletes a persisted container. A running container is
// force-stopped first and the delete is only issued once that stop has
// completed. The delete itself is accepted asynchronously and not waited on.
func (c *Client) DestroyServer(ctx context.Context, server *domain.Server) (bool, error) {
	if !server.Persisted() {
		return false, nil
	}

	if server.State == domain.StateRunning {
		if err := c.changeState(ctx, server.ID, stateChangeBody{Action: "stop", Force: true}); err != nil {
			return false, fmt.Errorf("failed to stop container %q before delete: %w", server.ID, err)
		}
	}

	_, err := c.Do(ctx, Request{
		Method:  http.MethodDelete,
		Path:    "containers/" + url.PathEscape(server.ID),
		Expects: []int{http.StatusAccepted},
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete container %q: %w", server.ID, err)
	}
	return true, nil
}

// changeState issues a state action and waits for its operation.
func (c *Client) changeState(ctx context.Context, name string, body stateChangeBody) error {
	resp, err := c.Do(ctx, Request{
		Method:  http.MethodPut,
		Path:    "containers/" + url.PathEscape(name) + "/state",
		JSON:    body,
		Expects: []int{http.StatusAccepted},
	})
	if err != nil {
		return err
	}
	return c.wait(ctx, domain.OperationRef{ID: resp.Operation, Container: name, Command: body.Action}, ActionTimeout)
}
