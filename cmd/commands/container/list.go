package container

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/providers"
	"nathanbeddoewebdev/lxdm/internal/tui"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all containers",
		Long: `List all containers on the remote. Each container is reloaded so the
table shows its current state and addresses.

Examples:
  lxdm container list
  lxdm container list -o yaml --remote lab`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	addOutputFlag(cmd)

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	var servers []domain.Server
	fetch := func(ctx context.Context) error {
		var err error
		servers, err = providers.ListAll(ctx, s.provider)
		return err
	}
	if interactive(cmd) {
		err = tui.Spin(ctx, cmd.ErrOrStderr(), "Fetching containers...", fetch)
	} else {
		err = fetch(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	if format != formatTable {
		return encode(cmd.OutOrStdout(), format, servers)
	}

	if len(servers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No containers found.")
		return nil
	}
	printServerTable(cmd, servers)
	return nil
}
