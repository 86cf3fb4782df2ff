package container

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/opstore"
	"nathanbeddoewebdev/lxdm/internal/tui/styles"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", formatTable, "Output format: table, json or yaml")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", formatTable:
		return formatTable, nil
	case formatJSON, formatYAML:
		return format, nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: table, json, yaml)", format)
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printServer writes a single server in the requested format.
func printServer(cmd *cobra.Command, format string, server *domain.Server) error {
	if format != formatTable {
		return encode(cmd.OutOrStdout(), format, server)
	}
	printServerDetail(cmd, server)
	return nil
}

// printServerDetail prints a vertical key-value table of the server fields.
func printServerDetail(cmd *cobra.Command, server *domain.Server) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "  Name:\t%s\n", server.Name)
	fmt.Fprintf(w, "  State:\t%s\n", stateText(cmd, server.State))
	if server.Status != "" && server.Status != string(server.State) {
		fmt.Fprintf(w, "  Status:\t%s\n", server.Status)
	}
	fmt.Fprintf(w, "  Provider:\t%s\n", server.Provider)
	fmt.Fprintf(w, "  Image:\t%s\n", server.ImageID)
	fmt.Fprintf(w, "  Profile:\t%s\n", server.FlavorID)

	for _, a := range server.Addresses {
		fmt.Fprintf(w, "  IPv%d:\t%s\n", a.Version, a.Address)
	}
	if server.Ephemeral() {
		fmt.Fprintf(w, "  Ephemeral:\tyes\n")
	}
	if !server.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  Created:\t%s\n", server.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}

	w.Flush()
}

// printServerTable prints one row per server. The state column is last so
// terminal colors do not disturb the column alignment.
func printServerTable(cmd *cobra.Command, servers []domain.Server) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tIPv4\tIMAGE\tPROFILE\tSTATE")
	fmt.Fprintln(w, "----\t----\t-----\t-------\t-----")

	for _, s := range servers {
		ip := s.IPv4()
		if ip == "" {
			ip = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.Name,
			ip,
			s.ImageID,
			s.FlavorID,
			stateText(cmd, s.State),
		)
	}

	w.Flush()
}

func stateText(cmd *cobra.Command, state domain.State) string {
	if interactive(cmd) {
		return styles.StateStyle(state).Render(string(state))
	}
	return string(state)
}

func printOperations(cmd *cobra.Command, records []opstore.OperationRecord) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREMOTE\tCONTAINER\tCOMMAND\tOPERATION\tAGE\tSTATUS")

	for _, r := range records {
		status := r.Status
		if r.Status == domain.OperationStatusError && r.ErrorMessage != "" {
			status = fmt.Sprintf("error: %s", truncate(r.ErrorMessage, 40))
		}
		if interactive(cmd) {
			status = styles.OperationStatusStyle(r.Status).Render(status)
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Remote, r.Container, r.Command, r.OperationID,
			formatDuration(time.Since(r.CreatedAt).Truncate(time.Second)), status)
	}

	w.Flush()
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
