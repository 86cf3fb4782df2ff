package container

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/tui"

	"github.com/spf13/cobra"
)

func DeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a container",
		Long: `Delete a container. A running container is force-stopped first.

When --name is omitted in a terminal, an interactive picker lists the
remote's containers and asks for confirmation.

Examples:
  lxdm container delete                # interactive
  lxdm container delete --name web`,
		Args:         cobra.NoArgs,
		RunE:         runDelete,
		SilenceUsage: true,
	}

	cmd.Flags().String("name", "", "Container to delete")

	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	if name == "" && !interactive(cmd) {
		return errors.New("--name is required when not running in a terminal")
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	var server *domain.Server
	if name == "" {
		server, err = tui.DeleteContainerForm(ctx, s.provider)
		if err != nil {
			if errors.Is(err, tui.ErrDeleteAborted) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Deletion cancelled.")
				return nil
			}
			return err
		}
	} else {
		server, err = s.lookup(ctx, name)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Deleting container %q...\n", server.Name)

	deleted, err := s.provider.DestroyServer(ctx, server)
	if err != nil {
		return fmt.Errorf("failed to delete container: %w", err)
	}
	if !deleted {
		return fmt.Errorf("container %q: %w", server.Name, domain.ErrNotFound)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Container %q deleted.\n", server.Name)
	return nil
}
