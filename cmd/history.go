package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jayteealao/gitsvc/internal/state"
	"github.com/jayteealao/gitsvc/internal/tui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the operation journal",
	Long: `Show recent operations recorded for the repository.

Displays each command with its status, start time, duration and, for
failures, the error kind. Operations still marked running were
interrupted before they finished.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyLimitFlag       int
	historyAllFlag         bool
	historyInterruptedFlag bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "number of operations to show")
	historyCmd.Flags().BoolVar(&historyAllFlag, "all", false, "show operations for every repository")
	historyCmd.Flags().BoolVar(&historyInterruptedFlag, "interrupted", false, "show only operations that never finished")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := initStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var ops []*state.Operation
	if historyInterruptedFlag {
		ops, err = store.GetInterruptedOperations(ctx)
	} else {
		repo := ""
		if !historyAllFlag {
			ws, err := workspace()
			if err != nil {
				return err
			}
			repo = ws.Root()
		}
		ops, err = store.ListOperations(ctx, repo, historyLimitFlag)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		if ops == nil {
			ops = []*state.Operation{}
		}
		return writeJSON(cmd, ops)
	}
	if len(ops) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No operations recorded.")
		return nil
	}
	printHistory(cmd.OutOrStdout(), ops, historyAllFlag || historyInterruptedFlag)
	return nil
}

func printHistory(out io.Writer, ops []*state.Operation, withRepo bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if withRepo {
		fmt.Fprintln(w, "  VERB\tSTATUS\tSTARTED\tDURATION\tERROR\tREPOSITORY")
		fmt.Fprintln(w, "  ----\t------\t-------\t--------\t-----\t----------")
	} else {
		fmt.Fprintln(w, "  VERB\tSTATUS\tSTARTED\tDURATION\tERROR")
		fmt.Fprintln(w, "  ----\t------\t-------\t--------\t-----")
	}

	for _, op := range ops {
		duration := "-"
		if op.FinishedAt != nil {
			dur := op.FinishedAt.Sub(op.StartedAt)
			switch {
			case dur.Seconds() < 1:
				duration = fmt.Sprintf("%dms", dur.Milliseconds())
			case dur.Seconds() < 60:
				duration = fmt.Sprintf("%.0fs", dur.Seconds())
			default:
				duration = fmt.Sprintf("%.1fm", dur.Minutes())
			}
		}

		errInfo := "-"
		if op.ErrorKind != "" {
			errInfo = op.ErrorKind
		}

		fmt.Fprintf(w, "  %s\t%s %s\t%s\t%s\t%s",
			op.Verb,
			tui.GetStatusIcon(op.Status),
			op.Status,
			op.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			errInfo)
		if withRepo {
			fmt.Fprintf(w, "\t%s", op.RepoPath)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}
