package config

import (
	"fmt"
	"strconv"
	"strings"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "endpoint").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Global keys live at the top level of Config; the rest are per remote.
	Global bool

	// Get returns the current value. r is nil for global keys.
	Get func(cfg *Config, r *Remote) string

	// Set applies a value in memory; the caller is responsible for Save.
	Set func(cfg *Config, r *Remote, value string) error
}

func remoteString(field func(r *Remote) *string) (func(*Config, *Remote) string, func(*Config, *Remote, string) error) {
	get := func(_ *Config, r *Remote) string { return *field(r) }
	set := func(_ *Config, r *Remote, v string) error {
		*field(r) = v
		return nil
	}
	return get, set
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config or Remote and append a KeySpec here.
var Keys = func() []KeySpec {
	keys := []KeySpec{
		{
			Name:        "default-remote",
			Description: "Remote used when --remote is not specified",
			Global:      true,
			Get:         func(cfg *Config, _ *Remote) string { return cfg.DefaultRemote },
			Set: func(cfg *Config, _ *Remote, v string) error {
				cfg.DefaultRemote = v
				return nil
			},
		},
	}

	strs := []struct {
		name, desc string
		field      func(r *Remote) *string
	}{
		{"driver", "Hypervisor driver (default \"lxd\")", func(r *Remote) *string { return &r.Driver }},
		{"endpoint", "Remote API endpoint, e.g. https://10.0.0.1:8443", func(r *Remote) *string { return &r.Endpoint }},
		{"api-version", "API version to require (default \"1.0\")", func(r *Remote) *string { return &r.Version }},
		{"client-cert", "Path to the PEM client certificate", func(r *Remote) *string { return &r.ClientCert }},
		{"client-key", "Path to the PEM client private key", func(r *Remote) *string { return &r.ClientKey }},
		{"server-cert", "Path to a PEM certificate the remote must present", func(r *Remote) *string { return &r.ServerCert }},
		{"image-server", "Image server URL offered to callers", func(r *Remote) *string { return &r.ImageServer }},
		{"client-name", "Name registered with the remote on trust bootstrap", func(r *Remote) *string { return &r.ClientName }},
	}
	for _, s := range strs {
		get, set := remoteString(s.field)
		keys = append(keys, KeySpec{Name: s.name, Description: s.desc, Get: get, Set: set})
	}

	keys = append(keys, KeySpec{
		Name:        "insecure-skip-verify",
		Description: "Skip verification of the remote's certificate (true/false)",
		Get: func(_ *Config, r *Remote) string {
			return strconv.FormatBool(r.InsecureSkipVerify)
		},
		Set: func(_ *Config, r *Remote, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean %q", v)
			}
			r.InsecureSkipVerify = b
			return nil
		},
	})
	return keys
}()

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
