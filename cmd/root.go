package cmd

import (
	"errors"
	"fmt"
	"os"

	"nathanbeddoewebdev/lxdm/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/lxdm/cmd/commands/config"
	"nathanbeddoewebdev/lxdm/cmd/commands/container"
	"nathanbeddoewebdev/lxdm/internal/providers"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "lxdm",
		Short: "A CLI tool for managing containers on LXD hypervisors",
		Long: `lxdm is a command-line tool for managing containers on remote LXD
hypervisors. It creates, starts, stops and deletes containers, runs
commands inside them over WebSockets, and streams files in and out.

Quick start:
  lxdm config set endpoint https://10.0.0.1:8443 --remote lab
  lxdm config set client-cert ~/.config/lxc/client.crt --remote lab
  lxdm config set client-key ~/.config/lxc/client.key --remote lab
  lxdm config set default-remote lab
  lxdm auth login lab                   # trust this client
  lxdm container create --name web --image ubuntu/24.04
  lxdm container exec --name web -- uname -a`,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().Bool("debug", false, "Log requests and operation waits to stderr")

	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(container.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	providers.RegisterLXD()

	var root = rootCmd()
	err := root.Execute()
	if err == nil {
		return
	}

	var exitErr *container.ExitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	os.Exit(1)
}
