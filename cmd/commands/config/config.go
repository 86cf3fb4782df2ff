package config

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/lxdm/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage lxdm configuration",
		Long: "View and modify persistent lxdm settings.\n\n" +
			"Configuration is stored at ~/.config/lxdm/config.json. Keys other than\n" +
			"default-remote belong to a remote, chosen with --remote (defaults to\n" +
			"default-remote).\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())

	cmd.PersistentFlags().String("remote", "", "Remote the key belongs to (overrides default)")

	return cmd
}

// remoteName returns the --remote flag value, or the configured default.
func remoteName(cmd *cobra.Command, cfg *config.Config) string {
	if name, _ := cmd.Flags().GetString("remote"); name != "" {
		return name
	}
	return cfg.DefaultRemote
}

var errNoRemote = errors.New("no remote specified: use --remote or set default-remote first")

func unknownKey(key string) error {
	return fmt.Errorf("unknown configuration key %q (valid: %s)", key, joinKeys())
}
