// Package config handles persistent user configuration for lxdm.
//
// Configuration is stored as JSON at ~/.config/lxdm/config.json (or the
// platform-equivalent path returned by os.UserConfigDir).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir   = "lxdm"
	fileName = "config.json"
)

// Defaults applied to remotes that leave a field empty.
const (
	DefaultDriver      = "lxd"
	DefaultAPIVersion  = "1.0"
	DefaultImageServer = "https://images.linuxcontainers.org:8443"
)

// pathOverride, when non-empty, replaces the default config file path.
// Intended for testing. Use SetPath / ResetPath to manage.
var pathOverride string

// SetPath overrides the config file path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override, reverting to the default. Intended for testing.
func ResetPath() { pathOverride = "" }

// Remote describes one hypervisor endpoint and the client identity used
// to talk to it.
type Remote struct {
	Driver             string `json:"driver,omitempty"`
	Endpoint           string `json:"endpoint,omitempty"`
	Version            string `json:"version,omitempty"`
	ClientCert         string `json:"client_cert,omitempty"`
	ClientKey          string `json:"client_key,omitempty"`
	ServerCert         string `json:"server_cert,omitempty"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty"`
	ImageServer        string `json:"image_server,omitempty"`
	ClientName         string `json:"client_name,omitempty"`
}

// WithDefaults returns a copy of r with empty fields filled in and the
// endpoint's trailing slash removed.
func (r Remote) WithDefaults() Remote {
	if r.Driver == "" {
		r.Driver = DefaultDriver
	}
	if r.Version == "" {
		r.Version = DefaultAPIVersion
	}
	if r.ImageServer == "" {
		r.ImageServer = DefaultImageServer
	}
	if r.ClientName == "" {
		if host, err := os.Hostname(); err == nil {
			r.ClientName = host
		}
	}
	r.Endpoint = strings.TrimRight(r.Endpoint, "/")
	return r
}

// VersionedEndpoint returns "{endpoint}/{version}".
func (r Remote) VersionedEndpoint() string {
	r = r.WithDefaults()
	return r.Endpoint + "/" + r.Version
}

// Config holds user preferences that persist across invocations.
type Config struct {
	DefaultRemote string            `json:"default_remote,omitempty"`
	Remotes       map[string]Remote `json:"remotes,omitempty"`
}

// Remote returns the named remote with defaults applied.
func (c *Config) Remote(name string) (Remote, error) {
	if name == "" {
		return Remote{}, errors.New("config: no remote specified")
	}
	r, ok := c.Remotes[name]
	if !ok {
		return Remote{}, fmt.Errorf("config: unknown remote %q", name)
	}
	r = r.WithDefaults()
	if r.Endpoint == "" {
		return Remote{}, fmt.Errorf("config: remote %q has no endpoint (set one with 'lxdm config set endpoint <url> --remote %s')", name, name)
	}
	return r, nil
}

// Path returns the absolute path to the config file.
// If SetPath has been called, that value is returned instead.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load reads the config file from disk and returns the parsed Config.
// If the file does not exist, a zero-value Config is returned (not an error).
func Load() (*Config, error) {
	return loadFrom("")
}

func loadFrom(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the config to disk, creating the parent directory if needed.
// The file holds key paths, so it is written owner-only.
func (c *Config) Save() error {
	return c.saveTo("")
}

func (c *Config) saveTo(path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}

	return nil
}

// LoadFrom reads the config from the given path. Intended for testing.
func LoadFrom(path string) (*Config, error) {
	return loadFrom(path)
}

// SaveTo writes the config to the given path. Intended for testing.
func (c *Config) SaveTo(path string) error {
	return c.saveTo(path)
}
