package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jayteealao/gitsvc/internal/prompt"
	"github.com/jayteealao/gitsvc/internal/service"
	"github.com/jayteealao/gitsvc/internal/tui"
	"github.com/spf13/cobra"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "List, create, or delete branches",
	Long: `List local branches. The active branch is marked with *.

Use the create and delete subcommands to manage branches.`,
	Args: cobra.NoArgs,
	RunE: runBranchList,
}

var branchCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a branch at the current commit",
	Args:  cobra.ExactArgs(1),
	RunE:  runBranchCreate,
}

var branchDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a branch",
	Long:    `Delete a local branch. The active branch cannot be deleted.`,
	Args:    cobra.ExactArgs(1),
	RunE:    runBranchDelete,
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <ref>",
	Short: "Switch to a branch or commit",
	Long: `Switch the working tree to a branch, tag, or commit.

Fails when tracked files have uncommitted changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckout,
}

var branchDeleteYesFlag bool

func init() {
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(checkoutCmd)
	branchCmd.AddCommand(branchCreateCmd)
	branchCmd.AddCommand(branchDeleteCmd)

	branchDeleteCmd.Flags().BoolVarP(&branchDeleteYesFlag, "yes", "y", false, "skip confirmation prompt")
}

func runBranchList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		branches, err := a.svc.Branches(ctx, ws)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, branches)
		}
		if len(branches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No branches yet.")
			return nil
		}
		for _, b := range branches {
			name := b.Name
			if b.Active {
				name = tui.ActiveBranchStyle.Render(name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", tui.BranchMarker(b.Active), name)
		}
		return nil
	})
}

func runBranchCreate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		if err := a.svc.CreateBranch(ctx, ws, service.BranchArgs{Name: args[0]}); err != nil {
			return err
		}
		return ack(cmd, "Created branch %s", args[0])
	})
}

func runBranchDelete(cmd *cobra.Command, args []string) error {
	if !branchDeleteYesFlag && !jsonOutput && prompt.IsInteractive(os.Stdin) {
		confirmed, err := prompt.ConfirmAction(
			fmt.Sprintf("Delete branch %q?", args[0]),
			"Commits only reachable from this branch will be unreferenced.",
		)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		if err := a.svc.DeleteBranch(ctx, ws, service.BranchArgs{Name: args[0]}); err != nil {
			return err
		}
		return ack(cmd, "Deleted branch %s", args[0])
	})
}

func runCheckout(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		if err := a.svc.Checkout(ctx, ws, service.CheckoutArgs{Ref: args[0]}); err != nil {
			return err
		}
		return ack(cmd, "Switched to %s", args[0])
	})
}

// ack reports a command that returns no data.
func ack(cmd *cobra.Command, format string, args ...any) error {
	if jsonOutput {
		return writeJSON(cmd, service.Ack{OK: true})
	}
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	return nil
}
