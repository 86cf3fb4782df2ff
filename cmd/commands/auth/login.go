package auth

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"nathanbeddoewebdev/lxdm/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <remote>",
		Short: "Register this client with a remote",
		Long: `Connect to a remote, check its API version, and register the client
certificate using the remote's trust password when the remote does not
trust it yet. The password is kept in the local keychain.

Example:
  lxdm auth login lab
  lxdm auth login lab --password s3cret`,
		Args:         cobra.ExactArgs(1),
		RunE:         runLogin,
		SilenceUsage: true,
	}

	cmd.Flags().String("password", "", "Trust password (optional, overrides prompt)")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fmt.Errorf("remote is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	remote, err := cfg.Remote(name)
	if err != nil {
		return err
	}

	password, _ := cmd.Flags().GetString("password")
	password = strings.TrimSpace(password)
	if password == "" && !cmd.Flags().Changed("password") && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Trust password (leave empty if already trusted): ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		password = strings.TrimSpace(string(raw))
	}

	store := newStore()
	if password != "" {
		if err := store.SetPassword(name, password); err != nil {
			return fmt.Errorf("failed to store password: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	fmt.Fprintf(cmd.ErrOrStderr(), "Connecting to %s (%s)...\n", name, remote.Endpoint)

	info, err := connect(ctx, cmd, name, remote, store)
	if err != nil {
		if password != "" {
			_ = store.DeletePassword(name)
		}
		return fmt.Errorf("failed to connect to %s: %w", name, err)
	}
	if !info.Trusted {
		return fmt.Errorf("remote %q does not trust this client: rerun with --password", name)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Remote %s trusts this client (API %s).\n", name, info.APIVersion)
	return nil
}
