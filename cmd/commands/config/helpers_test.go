package config

import (
	"bytes"
	"path/filepath"
	"testing"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/providers"
)

// setupTestConfig points the config package at a temp file.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	config.SetPath(path)
	t.Cleanup(config.ResetPath)
	return path
}

// registerTestDriver registers a stub driver in the global registry.
func registerTestDriver(t *testing.T, name string) {
	t.Helper()
	providers.Reset()
	t.Cleanup(providers.Reset)
	providers.Register(name, func(config.Remote, providers.Deps) (domain.Provider, error) {
		return nil, nil
	})
}

// execConfig runs the config command with args and returns what was
// written to stdout and stderr.
func execConfig(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.Execute()
	return outBuf.String(), errBuf.String()
}

func saveConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
}
