package domain

import (
	"errors"
	"fmt"
	"time"
)

// State is the reconciled lifecycle state of a container.
type State string

const (
	StatePending    State = "pending"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
	StateTerminated State = "terminated"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateRunning, StateStopped, StateTerminated:
		return true
	}
	return false
}

// Sentinel values used when the hypervisor no longer reports a field.
const (
	ValueUnknown = "unknown"
	ValueNone    = "none"
)

// Address is a single IP address reported for a container.
type Address struct {
	Version int    `json:"version" yaml:"version"` // 4 or 6
	Address string `json:"address" yaml:"address"`
}

// Server represents a container instance on a hypervisor remote.
type Server struct {
	// ID is empty until the container has been created remotely.
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	State     State          `json:"state" yaml:"state"`
	Status    string         `json:"status" yaml:"status"`
	Addresses []Address      `json:"addresses" yaml:"addresses"`
	ImageID   string         `json:"image_id" yaml:"image_id"`
	FlavorID  string         `json:"flavor_id" yaml:"flavor_id"` // profile name
	UserData  string         `json:"userdata,omitempty" yaml:"userdata,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	Provider  string         `json:"provider" yaml:"provider"`
	Custom    map[string]any `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// Persisted reports whether the server has an identity on the remote side.
func (s *Server) Persisted() bool {
	return s != nil && s.ID != ""
}

// Ephemeral returns the ephemeral flag carried in the custom bag.
func (s *Server) Ephemeral() bool {
	if s == nil || s.Custom == nil {
		return false
	}
	v, _ := s.Custom["ephemeral"].(bool)
	return v
}

// IPv4 returns the first IPv4 address, or "".
func (s *Server) IPv4() string {
	for _, a := range s.Addresses {
		if a.Version == 4 {
			return a.Address
		}
	}
	return ""
}

// Validate checks the fields every server handed back to callers must carry.
func (s *Server) Validate() error {
	if s == nil {
		return errors.New("server is nil")
	}
	if s.Name == "" {
		return errors.New("server name is required")
	}
	if !s.State.Valid() {
		return fmt.Errorf("server %q has invalid state %q", s.Name, s.State)
	}
	return nil
}
