package auth

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/logging"
	"nathanbeddoewebdev/lxdm/internal/providers"
	"nathanbeddoewebdev/lxdm/internal/services/auth"

	"github.com/spf13/cobra"
)

// newStore returns the secret store. Replaced in tests.
var newStore = auth.DefaultStore

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage trust with hypervisor remotes",
		Long: `Manage trust between this client certificate and hypervisor remotes.

Use this command group to register the client with a remote using its
trust password, and to check which remotes trust the client.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}

// connect builds the provider for name and runs the connection check.
// store may be nil to skip the trust bootstrap.
func connect(ctx context.Context, cmd *cobra.Command, name string, remote config.Remote, store auth.Store) (*domain.RemoteInfo, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	provider, err := providers.Get(remote, providers.Deps{
		RemoteName: name,
		Store:      store,
		Logger:     logging.New(cmd.ErrOrStderr(), debug),
	})
	if err != nil {
		return nil, err
	}
	connector, ok := provider.(domain.Connector)
	if !ok {
		return nil, fmt.Errorf("driver %q does not support connecting", remote.Driver)
	}
	return connector.Connect(ctx)
}
