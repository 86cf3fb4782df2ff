package container

import (
	"fmt"

	"nathanbeddoewebdev/lxdm/internal/config"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "container",
		Aliases: []string{"c"},
		Short:   "Manage containers on a hypervisor remote",
		Long: `Create, inspect, run commands in, and delete containers on a configured
hypervisor remote.

Long-running actions are tracked locally; see "lxdm container operations".`,
		PersistentPreRunE: resolveRemote,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(ShowCommand())
	cmd.AddCommand(CreateCommand())
	cmd.AddCommand(StartCommand())
	cmd.AddCommand(StopCommand())
	cmd.AddCommand(DeleteCommand())
	cmd.AddCommand(ExecCommand())
	cmd.AddCommand(PullCommand())
	cmd.AddCommand(PushCommand())
	cmd.AddCommand(OperationsCommand())

	cmd.PersistentFlags().String("remote", "", "Remote to use (overrides default)")

	return cmd
}

// resolveRemote ensures the --remote flag has a value, falling back to the
// configured default when the flag was not explicitly passed.
func resolveRemote(cmd *cobra.Command, args []string) error {
	if cmd.Flag("remote").Changed {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DefaultRemote != "" {
		return cmd.Flag("remote").Value.Set(cfg.DefaultRemote)
	}

	return fmt.Errorf("no remote specified: use --remote flag or set a default with 'lxdm config set default-remote <name>'")
}
