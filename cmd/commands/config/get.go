package config

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/lxdm/internal/config"

	"github.com/spf13/cobra"
)

// GetCommand returns the "config get" command.
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get a configuration value",
		Long: "Get a persistent configuration value. Without a key, every global\n" +
			"value and every value of the selected remote is printed.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  lxdm config get\n" +
			"  lxdm config get endpoint --remote lab",
		Args:         cobra.MaximumNArgs(1),
		RunE:         runGet,
		SilenceUsage: true,
	}

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	name := remoteName(cmd, cfg)
	remote, hasRemote := cfg.Remotes[name]

	if len(args) == 0 {
		for _, spec := range config.Keys {
			if !spec.Global && !hasRemote {
				continue
			}
			value := spec.Get(cfg, &remote)
			if value == "" {
				value = "(not set)"
			}
			if spec.Global {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", spec.Name, value)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s: %s\n", name, spec.Name, value)
			}
		}
		return nil
	}

	spec := config.Lookup(args[0])
	if spec == nil {
		return unknownKey(args[0])
	}

	var value string
	switch {
	case spec.Global:
		value = spec.Get(cfg, nil)
	case name == "":
		return errNoRemote
	case !hasRemote:
		return fmt.Errorf("unknown remote %q", name)
	default:
		value = spec.Get(cfg, &remote)
	}

	if value == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "not set")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}

func joinKeys() string {
	return strings.Join(config.KeyNames(), ", ")
}
