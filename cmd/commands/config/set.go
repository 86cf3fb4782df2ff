package config

import (
	"fmt"
	"net/url"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/providers"
	"nathanbeddoewebdev/lxdm/internal/util"

	"github.com/spf13/cobra"
)

// SetCommand returns the "config set" command.
func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a persistent configuration value. Setting a key on a remote that\n" +
			"does not exist yet creates it.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  lxdm config set endpoint https://10.0.0.1:8443 --remote lab\n" +
			"  lxdm config set default-remote lab",
		Args:         cobra.ExactArgs(2),
		RunE:         runSet,
		SilenceUsage: true,
	}

	return cmd
}

// validators maps key names to optional pre-save validation functions.
// Keys not present in this map have no extra validation.
var validators = map[string]func(cfg *config.Config, value string) error{
	"default-remote": validateRemote,
	"driver":         validateDriver,
	"endpoint":       validateEndpoint,
}

func runSet(cmd *cobra.Command, args []string) error {
	spec := config.Lookup(args[0])
	if spec == nil {
		return unknownKey(args[0])
	}
	value := args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if validate, ok := validators[spec.Name]; ok {
		if err := validate(cfg, value); err != nil {
			return err
		}
	}

	if spec.Global {
		if err := spec.Set(cfg, nil, value); err != nil {
			return err
		}
	} else {
		name := remoteName(cmd, cfg)
		if name == "" {
			return errNoRemote
		}
		if cfg.Remotes == nil {
			cfg.Remotes = map[string]config.Remote{}
		}
		remote := cfg.Remotes[name]
		if err := spec.Set(cfg, &remote, value); err != nil {
			return err
		}
		cfg.Remotes[name] = remote
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q\n", spec.Name, value)
	return nil
}

func validateRemote(cfg *config.Config, name string) error {
	if _, ok := cfg.Remotes[name]; !ok {
		return fmt.Errorf("unknown remote %q: configure its endpoint first", name)
	}
	return nil
}

// validateDriver checks that the given name is a registered driver.
func validateDriver(_ *config.Config, name string) error {
	normalized := util.NormalizeKey(name)
	known := providers.List()
	for _, p := range known {
		if p == normalized {
			return nil
		}
	}
	return fmt.Errorf("unknown driver %q (registered: %v)", name, known)
}

func validateEndpoint(_ *config.Config, value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("invalid endpoint %q: expected a URL such as https://10.0.0.1:8443", value)
	}
	return nil
}
