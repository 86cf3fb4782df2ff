package container

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"nathanbeddoewebdev/lxdm/internal/lxd"
	"nathanbeddoewebdev/lxdm/internal/opstore"

	"github.com/spf13/cobra"
)

// recentLimit caps the records shown by --all.
const recentLimit = 20

// OperationsCommand returns a cobra.Command that lists and resumes tracked
// operations.
func OperationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "List or resume tracked operations",
		Long: `Show hypervisor operations that previous invocations waited on.

By default only pending operations are shown: waits that were interrupted
or timed out while the operation could still complete. Use --all to
include finished operations as well.

--resume waits on every pending operation again. Only the wait is
repeated; the action that started the operation is never re-issued.

Examples:
  lxdm container operations
  lxdm container operations --all
  lxdm container operations --resume --timeout 2m`,
		Args:         cobra.NoArgs,
		RunE:         runOperations,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("all", false, "Show all recent operations, not just pending")
	cmd.Flags().Bool("resume", false, "Wait again on all pending operations")
	cmd.Flags().Duration("timeout", lxd.DefaultOperationTimeout, "Wait timeout per resumed operation")

	return cmd
}

func runOperations(cmd *cobra.Command, args []string) error {
	showAll, _ := cmd.Flags().GetBool("all")
	resume, _ := cmd.Flags().GetBool("resume")

	repo, err := opstore.Open()
	if err != nil {
		return fmt.Errorf("failed to open operation store: %w", err)
	}
	defer repo.Close()

	if resume {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		return resumePending(cmd, repo, timeout)
	}

	var records []opstore.OperationRecord
	if showAll {
		records, err = repo.ListRecent(recentLimit)
	} else {
		records, err = repo.ListPending()
	}
	if err != nil {
		return fmt.Errorf("failed to list operations: %w", err)
	}

	if len(records) == 0 {
		if showAll {
			fmt.Fprintln(cmd.OutOrStdout(), "No recent operations.")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "No pending operations.")
		}
		return nil
	}

	printOperations(cmd, records)

	if !showAll {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nUse --resume to wait on these operations again.\n")
	}
	return nil
}

// resumePending re-issues the wait for every pending record, grouped by
// the remote each record belongs to.
func resumePending(cmd *cobra.Command, repo opstore.Repository, timeout time.Duration) error {
	pending, err := repo.ListPending()
	if err != nil {
		return fmt.Errorf("failed to list pending operations: %w", err)
	}

	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending operations to resume.")
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Resuming %d pending operation(s)...\n\n", len(pending))

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	byRemote := map[string][]opstore.OperationRecord{}
	var order []string
	for _, r := range pending {
		if _, ok := byRemote[r.Remote]; !ok {
			order = append(order, r.Remote)
		}
		byRemote[r.Remote] = append(byRemote[r.Remote], r)
	}

	failed := 0
	for _, remote := range order {
		failed += resumeRemote(ctx, cmd, remote, byRemote[remote], timeout)
	}

	if failed > 0 {
		return fmt.Errorf("%d operation(s) did not complete", failed)
	}
	return nil
}

// resumeRemote resumes records of one remote and returns how many failed.
func resumeRemote(ctx context.Context, cmd *cobra.Command, remote string, records []opstore.OperationRecord, timeout time.Duration) int {
	s, err := openRemote(cmd, remote)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] Error opening remote: %v\n", remote, err)
		return len(records)
	}
	defer s.Close()

	failed := 0
	for _, record := range records {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] Resuming %s on %s (operation %s)...\n",
			remote, record.Command, record.Container, record.OperationID)

		if err := s.ops.Resume(ctx, &record, timeout); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] Error: %v\n", remote, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Operation %s (%s %s) completed.\n", record.OperationID, record.Command, record.Container)
	}
	return failed
}
