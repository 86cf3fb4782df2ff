package container

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"nathanbeddoewebdev/lxdm/internal/domain"

	"github.com/spf13/cobra"
)

func PullCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download a file from a container",
		Long: `Stream a file out of a container. Without --dest the contents are
written to standard output.

Examples:
  lxdm container pull --name web --path /etc/hostname
  lxdm container pull --name web --path /var/log/syslog --dest syslog`,
		Args:         cobra.NoArgs,
		RunE:         runPull,
		SilenceUsage: true,
	}

	cmd.Flags().String("name", "", "Container to read from (required)")
	cmd.Flags().String("path", "", "Absolute path inside the container (required)")
	cmd.Flags().String("dest", "", "Local file to write (default stdout)")
	cmd.MarkFlagRequired("path")

	return cmd
}

func PushCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload a file into a container",
		Long: `Stream a local file into a container, setting its owner and mode.
Use --src - to read from standard input.

Examples:
  lxdm container push --name web --src app.conf --path /etc/app.conf --mode 0644
  echo hello | lxdm container push --name web --src - --path /tmp/hello`,
		Args:         cobra.NoArgs,
		RunE:         runPush,
		SilenceUsage: true,
	}

	defaults := domain.DefaultFileOpts()
	cmd.Flags().String("name", "", "Container to write to (required)")
	cmd.Flags().String("src", "", "Local file to upload, or - for stdin (required)")
	cmd.Flags().String("path", "", "Absolute path inside the container (required)")
	cmd.Flags().Int("uid", defaults.UID, "Owner user id")
	cmd.Flags().Int("gid", defaults.GID, "Owner group id")
	cmd.Flags().String("mode", fmt.Sprintf("%04o", defaults.Mode), "Octal file mode")
	cmd.MarkFlagRequired("src")
	cmd.MarkFlagRequired("path")

	return cmd
}

func fileTransferer(s *session) (domain.FileTransferer, error) {
	ft, ok := s.provider.(domain.FileTransferer)
	if !ok {
		return nil, fmt.Errorf("driver %q does not support file transfer", s.remote.Driver)
	}
	return ft, nil
}

func runPull(cmd *cobra.Command, args []string) error {
	name, err := requireName(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("path")
	dest, _ := cmd.Flags().GetString("dest")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ft, err := fileTransferer(s)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	server, err := s.lookup(ctx, name)
	if err != nil {
		return err
	}

	file, err := ft.GetFile(ctx, server, path)
	if err != nil {
		return fmt.Errorf("failed to pull %s: %w", path, err)
	}
	defer file.Close()

	if file.Type != "file" {
		return fmt.Errorf("%s is a %s, not a file", path, file.Type)
	}

	if dest == "" {
		_, err = io.Copy(cmd.OutOrStdout(), file)
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, file.Mode.Perm())
	if err != nil {
		return err
	}
	n, err := io.Copy(out, file)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Pulled %s (%d bytes, mode %04o, uid %d, gid %d) to %s.\n",
		path, n, file.Mode.Perm(), file.UID, file.GID, dest)
	return nil
}

func runPush(cmd *cobra.Command, args []string) error {
	name, err := requireName(cmd)
	if err != nil {
		return err
	}
	src, _ := cmd.Flags().GetString("src")
	path, _ := cmd.Flags().GetString("path")
	uid, _ := cmd.Flags().GetInt("uid")
	gid, _ := cmd.Flags().GetInt("gid")
	modeFlag, _ := cmd.Flags().GetString("mode")

	mode, err := strconv.ParseUint(modeFlag, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid --mode %q: expected an octal value such as 0644", modeFlag)
	}
	opts := &domain.FileOpts{UID: uid, GID: gid, Mode: os.FileMode(mode)}

	var r io.Reader
	if src == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ft, err := fileTransferer(s)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	server, err := s.lookup(ctx, name)
	if err != nil {
		return err
	}

	if err := ft.PutFile(ctx, server, r, path, opts); err != nil {
		return fmt.Errorf("failed to push %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushed %s to %s:%s.\n", src, name, path)
	return nil
}
