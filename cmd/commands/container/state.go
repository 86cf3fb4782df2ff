package container

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// StartCommand returns a cobra.Command that starts a stopped container.
func StartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a container",
		Long: `Start a stopped container and wait for the start operation to finish.

If the wait is interrupted the operation stays tracked locally and can be
resumed with "lxdm container operations --resume".

Examples:
  lxdm container start --name web`,
		Args:         cobra.NoArgs,
		RunE:         runStart,
		SilenceUsage: true,
	}

	cmd.Flags().String("name", "", "Container to start (required)")

	return cmd
}

// StopCommand returns a cobra.Command that stops a running container.
func StopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a container",
		Long: `Stop a running container and wait for the stop operation to finish.

Examples:
  lxdm container stop --name web
  lxdm container stop --name web --force`,
		Args:         cobra.NoArgs,
		RunE:         runStop,
		SilenceUsage: true,
	}

	cmd.Flags().String("name", "", "Container to stop (required)")
	cmd.Flags().Bool("force", false, "Kill the container instead of a clean shutdown")

	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	return changeState(cmd, "start")
}

func runStop(cmd *cobra.Command, args []string) error {
	return changeState(cmd, "stop")
}

func changeState(cmd *cobra.Command, action string) error {
	name, err := requireName(cmd)
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

	if action == "start" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Starting container %q...\n", name)
		server, err = s.provider.StartServer(ctx, server)
	} else {
		force, _ := cmd.Flags().GetBool("force")
		fmt.Fprintf(cmd.ErrOrStderr(), "Stopping container %q...\n", name)
		server, err = s.provider.StopServer(ctx, server, force)
	}
	if err != nil {
		return fmt.Errorf("failed to %s container: %w", action, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Container %q is %s.\n", server.Name, server.State)
	return nil
}
