package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/logging"
	"nathanbeddoewebdev/lxdm/internal/opstore"
	"nathanbeddoewebdev/lxdm/internal/providers"
	"nathanbeddoewebdev/lxdm/internal/services/auth"
	"nathanbeddoewebdev/lxdm/internal/services/operation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// session is a resolved remote together with its provider and the
// operation tracker observing it.
type session struct {
	remoteName string
	remote     config.Remote
	provider   domain.Provider
	ops        *operation.Service
	logger     *zap.Logger
}

// openSession opens the remote named by --remote.
func openSession(cmd *cobra.Command) (*session, error) {
	return openRemote(cmd, cmd.Flag("remote").Value.String())
}

// openRemote loads the named remote and builds its provider. Operation
// tracking is best effort: if the local store cannot be opened the provider
// still works, it just is not observed.
func openRemote(cmd *cobra.Command, remoteName string) (*session, error) {
	logger := newLogger(cmd)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	remote, err := cfg.Remote(remoteName)
	if err != nil {
		return nil, err
	}

	var repo opstore.Repository
	if r, err := opstore.Open(); err != nil {
		logger.Debug("operation tracking disabled", zap.Error(err))
	} else {
		repo = r
	}
	ops := operation.NewService(remoteName, nil, repo, logger)

	provider, err := providers.Get(remote, providers.Deps{
		RemoteName: remoteName,
		Store:      auth.DefaultStore(),
		Logger:     logger,
		Observer:   ops,
	})
	if err != nil {
		ops.Close()
		return nil, err
	}
	if w, ok := provider.(domain.OperationWaiter); ok {
		ops.SetWaiter(w)
	}

	return &session{
		remoteName: remoteName,
		remote:     remote,
		provider:   provider,
		ops:        ops,
		logger:     logger,
	}, nil
}

func (s *session) Close() {
	if err := s.ops.Close(); err != nil {
		s.logger.Debug("failed to close operation store", zap.Error(err))
	}
}

// lookup reloads the named container. A container the remote does not
// know is reported as domain.ErrNotFound.
func (s *session) lookup(ctx context.Context, name string) (*domain.Server, error) {
	server, err := s.provider.Reload(ctx, &domain.Server{Name: name})
	if err != nil {
		return nil, err
	}
	if server.State == domain.StateTerminated {
		return nil, fmt.Errorf("container %q: %w", name, domain.ErrNotFound)
	}
	return server, nil
}

func newLogger(cmd *cobra.Command) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return logging.New(cmd.ErrOrStderr(), debug)
}

// requireName returns the trimmed --name flag or an error.
func requireName(cmd *cobra.Command) (string, error) {
	name, _ := cmd.Flags().GetString("name")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("--name is required")
	}
	return name, nil
}

// interactive reports whether cmd writes to a terminal.
func interactive(cmd *cobra.Command) bool {
	return cmd.OutOrStdout() == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
}
