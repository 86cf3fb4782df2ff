package auth

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/services/auth"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [remote]",
		Short: "Show trust status for remotes",
		Long: `Show, for each configured remote, whether a trust password is stored
and whether the remote currently trusts this client. Checking never
registers the client; use "lxdm auth login" for that.

Example:
  lxdm auth status
  lxdm auth status lab`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         runStatus,
		SilenceUsage: true,
	}

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	names := make([]string, 0, len(cfg.Remotes))
	if len(args) == 1 {
		if _, ok := cfg.Remotes[args[0]]; !ok {
			return fmt.Errorf("unknown remote %q", args[0])
		}
		names = append(names, args[0])
	} else {
		for name := range cfg.Remotes {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No remotes configured.")
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	store := newStore()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "REMOTE\tENDPOINT\tPASSWORD\tSTATUS")
	fmt.Fprintln(w, "------\t--------\t--------\t------")

	for _, name := range names {
		endpoint := cfg.Remotes[name].Endpoint

		password := "stored"
		if _, err := store.GetPassword(name); err != nil {
			if errors.Is(err, auth.ErrPasswordNotFound) {
				password = "none"
			} else {
				password = fmt.Sprintf("error (%v)", err)
			}
		}

		var status string
		remote, err := cfg.Remote(name)
		if err == nil {
			info, cerr := connect(ctx, cmd, name, remote, nil)
			switch {
			case cerr != nil:
				status = fmt.Sprintf("error (%v)", cerr)
			case info.Trusted:
				status = fmt.Sprintf("trusted (API %s)", info.APIVersion)
			default:
				status = fmt.Sprintf("untrusted (API %s)", info.APIVersion)
			}
		} else {
			status = fmt.Sprintf("error (%v)", err)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, endpoint, password, status)
	}

	return w.Flush()
}
