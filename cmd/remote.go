package cmd

import (
	"context"
	"fmt"

	"github.com/jayteealao/gitsvc/internal/service"
	"github.com/spf13/cobra"
)

// remoteOp is one of the service's push, pull and sync methods.
type remoteOp func(s *service.Service, ctx context.Context, ws service.Workspace, args service.RemoteArgs) (*service.RemoteResult, error)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the current branch to its upstream",
	Args:  cobra.NoArgs,
	RunE:  remoteRunner("Pushed", (*service.Service).Push),
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fast-forward the current branch from its upstream",
	Args:  cobra.NoArgs,
	RunE:  remoteRunner("Pulled", (*service.Service).Pull),
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull then push the current branch",
	Long: `Pull the current branch from its upstream, then push local commits.

If the remote asks for credentials and stdin is a terminal, you are
prompted once and the operation is retried. Credentials can also be
supplied with GITSVC_AUTH_USERNAME, GITSVC_AUTH_PASSWORD and
GITSVC_AUTH_PASSPHRASE.`,
	Args: cobra.NoArgs,
	RunE: remoteRunner("Synced", (*service.Service).Sync),
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List commits not yet pushed",
	Args:  cobra.NoArgs,
	RunE:  runPending,
}

func init() {
	for _, c := range []*cobra.Command{pushCmd, pullCmd, syncCmd} {
		rootCmd.AddCommand(c)
		c.Flags().Bool("no-prompt", false, "never prompt for credentials")
	}
	rootCmd.AddCommand(pendingCmd)
}

func remoteRunner(done string, op remoteOp) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		noPrompt, _ := cmd.Flags().GetBool("no-prompt")
		return withApp(cmd, !noPrompt, func(ctx context.Context, a *app, ws service.Workspace) error {
			res, err := op(a.svc, ctx, ws, service.RemoteArgs{Auth: initialCredentials()})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, res.Branch)
			return nil
		})
	}
}

func runPending(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		res, err := a.svc.PendingCommits(ctx, ws)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, res)
		}
		if res.Count == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Everything is pushed.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d commit(s) not pushed:\n\n", res.Count)
		printCommits(cmd.OutOrStdout(), res.Commits)
		return nil
	})
}
