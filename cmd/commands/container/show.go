package container

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func ShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show details for a container",
		Long: `Reload a container from the remote and print its details.

Examples:
  lxdm container show --name web
  lxdm container show --name web -o json`,
		Args:         cobra.NoArgs,
		RunE:         runShow,
		SilenceUsage: true,
	}

	cmd.Flags().String("name", "", "Container name (required)")
	addOutputFlag(cmd)

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	name, err := requireName(cmd)
	if err != nil {
		return err
	}
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

	server, err := s.lookup(ctx, name)
	if err != nil {
		return err
	}
	return printServer(cmd, format, server)
}
