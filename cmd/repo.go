package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jayteealao/gitsvc/internal/git"
	"github.com/jayteealao/gitsvc/internal/service"
	"github.com/jayteealao/gitsvc/internal/tui"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a repository",
	Long: `Create an empty repository at the selected path.

Fails if the path already holds a repository.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var cloneCmd = &cobra.Command{
	Use:   "clone <url> [path]",
	Short: "Clone a remote repository",
	Long: `Clone a remote repository into path, or into the --repo path when
path is omitted. The destination must be missing or empty.

If the remote asks for credentials and stdin is a terminal, you are
prompted once and the clone is retried.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runClone,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the working tree status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(statusCmd)

	cloneCmd.Flags().Bool("no-prompt", false, "never prompt for credentials")
}

func runInit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		status, err := a.svc.Init(ctx, ws)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, status)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty repository in %s\n", ws.Root())
		return nil
	})
}

func runClone(cmd *cobra.Command, args []string) error {
	if len(args) == 2 {
		repoPath = args[1]
	}
	noPrompt, _ := cmd.Flags().GetBool("no-prompt")
	return withApp(cmd, !noPrompt, func(ctx context.Context, a *app, ws service.Workspace) error {
		if !jsonOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "Cloning %s into %s...\n", args[0], ws.Root())
		}
		status, err := a.svc.Clone(ctx, ws, service.CloneArgs{URL: args[0], Auth: initialCredentials()})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, status)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cloned %s (branch %s)\n", args[0], status.Branch)
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		status, err := a.svc.Status(ctx, ws)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, status)
		}
		printStatus(cmd.OutOrStdout(), status)
		return nil
	})
}

func printStatus(out io.Writer, status *git.Status) {
	branch := status.Branch
	if branch == "" {
		branch = "(detached)"
	}
	fmt.Fprintf(out, "On branch %s\n", tui.ActiveBranchStyle.Render(branch))

	if status.Clean {
		fmt.Fprintln(out, "Nothing to commit, working tree clean.")
		return
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  STAGED\tWORKTREE\tPATH")
	fmt.Fprintln(w, "  ------\t--------\t----")
	for _, f := range status.Files {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", statusCell(f.Staging), statusCell(f.Worktree), f.Path)
	}
	w.Flush()
}

func statusCell(code string) string {
	if code == "" || code == "unmodified" {
		return "-"
	}
	return tui.GetStatusIcon(code) + " " + code
}
