package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/tui"
	"nathanbeddoewebdev/lxdm/internal/util"

	"github.com/spf13/cobra"
)

func CreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and start a container",
		Long: `Create a container from an image alias and start it. The command returns
once the container reports running.

When --name is omitted in a terminal, an interactive form collects the
container settings.

Examples:
  lxdm container create --name web --image ubuntu/24.04
  lxdm container create --name scratch --image alpine/3.20 --ephemeral
  lxdm container create --name app --image debian/12 --user-data-file cloud.yaml`,
		Args:         cobra.NoArgs,
		RunE:         runCreate,
		SilenceUsage: true,
	}

	cmd.Flags().String("name", "", "Container name")
	cmd.Flags().String("image", "", "Image alias to create the container from")
	cmd.Flags().String("profile", "", "Profile to apply")
	cmd.Flags().Bool("ephemeral", false, "Delete the container when it stops")
	cmd.Flags().String("user-data", "", "Cloud-init user data")
	cmd.Flags().String("user-data-file", "", "Read cloud-init user data from a file")
	cmd.MarkFlagsMutuallyExclusive("user-data", "user-data-file")
	addOutputFlag(cmd)

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	server, err := createRequest(cmd)
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

	fmt.Fprintf(cmd.ErrOrStderr(), "Creating container %q from %s...\n", server.Name, server.ImageID)

	var created *domain.Server
	create := func(ctx context.Context) error {
		var err error
		created, err = s.provider.CreateServer(ctx, server)
		return err
	}
	if interactive(cmd) {
		err = tui.Spin(ctx, cmd.ErrOrStderr(), "Waiting for container to start...", create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Container %q is %s.\n", created.Name, created.State)
	return printServer(cmd, format, created)
}

// createRequest builds the unpersisted server from flags, falling back to
// the interactive form when no name was given on a terminal.
func createRequest(cmd *cobra.Command) (*domain.Server, error) {
	name, _ := cmd.Flags().GetString("name")
	image, _ := cmd.Flags().GetString("image")
	profile, _ := cmd.Flags().GetString("profile")
	ephemeral, _ := cmd.Flags().GetBool("ephemeral")
	userData, _ := cmd.Flags().GetString("user-data")

	if path, _ := cmd.Flags().GetString("user-data-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read user data: %w", err)
		}
		userData = string(data)
	}

	server := &domain.Server{
		Name:     strings.TrimSpace(name),
		ImageID:  strings.TrimSpace(image),
		FlavorID: strings.TrimSpace(profile),
		UserData: userData,
		State:    domain.StatePending,
		Custom:   map[string]any{"ephemeral": ephemeral},
	}

	if server.Name == "" && interactive(cmd) {
		filled, err := tui.CreateContainerForm(*server)
		if err != nil {
			if errors.Is(err, tui.ErrAborted) {
				return nil, errors.New("container creation aborted")
			}
			return nil, err
		}
		server = filled
	}

	if err := util.ValidateContainerName(server.Name); err != nil {
		return nil, err
	}
	if server.ImageID == "" {
		return nil, errors.New("--image is required")
	}
	return server, nil
}
