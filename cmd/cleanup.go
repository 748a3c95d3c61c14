package cmd

import (
	"fmt"

	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/jayteealao/gitsvc/internal/lock"
	"github.com/jayteealao/gitsvc/internal/state"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Reconcile interrupted operations",
	Long: `Reconcile the operation journal after a crash.

Operations still marked running whose repository lock is not held by a live
process are marked failed. Operations on a repository another process is
reading or writing are left alone.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var cleanupDryRunFlag bool

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().BoolVar(&cleanupDryRunFlag, "dry-run", false, "show what would be cleaned without making changes")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := initStore()
	if err != nil {
		return err
	}
	defer store.Close()

	locks, err := initLockManager()
	if err != nil {
		return err
	}

	if cleanupDryRunFlag {
		fmt.Fprintln(out, "(dry run mode - no changes will be made)")
	}

	fmt.Fprintln(out, "Checking for interrupted operations...")
	interrupted, err := store.GetInterruptedOperations(ctx)
	if err != nil {
		return err
	}

	marked := 0
	for _, op := range interrupted {
		if busy, pid := repoBusy(locks, op.RepoPath); busy {
			if pid > 0 {
				fmt.Fprintf(out, "  Skipping %s on %s: in progress (PID %d)\n", op.Verb, op.RepoPath, pid)
			} else {
				fmt.Fprintf(out, "  Skipping %s on %s: in progress\n", op.Verb, op.RepoPath)
			}
			continue
		}
		fmt.Fprintf(out, "  Found interrupted %s on %s (started %s)\n",
			op.Verb, op.RepoPath, op.StartedAt.Local().Format("2006-01-02 15:04:05"))
		if cleanupDryRunFlag {
			continue
		}
		err := store.FinishOperation(ctx, op.ID, state.StatusFailed,
			string(errors.KindInternal), "interrupted before completion")
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "    Warning: failed to update status: %v\n", err)
			continue
		}
		marked++
	}

	fmt.Fprintf(out, "Cleanup complete. %d operation(s) marked failed.\n", marked)
	return nil
}

// repoBusy reports whether a live process holds the lock of a repository,
// with the PID of the writer when there is one.
func repoBusy(locks lock.LockOperations, repo string) (bool, int) {
	key, err := lock.Key(repo)
	if err != nil {
		return false, 0
	}
	locked, pid, err := locks.IsLocked(key)
	if err != nil {
		printVerbose("  Warning: failed to check lock for %s: %v", repo, err)
		return false, 0
	}
	if locked {
		return true, pid
	}
	inUse, err := locks.InUse(key)
	if err != nil {
		printVerbose("  Warning: failed to check lock for %s: %v", repo, err)
		return false, 0
	}
	return inUse, 0
}
