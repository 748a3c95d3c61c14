package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jayteealao/gitsvc/internal/git"
	"github.com/jayteealao/gitsvc/internal/service"
	"github.com/jayteealao/gitsvc/internal/tui"
	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit -m <message> [files...]",
	Short: "Record changes",
	Long: `Stage the given files, or every changed path when none are given,
and record a commit.

The author defaults to the repository's configured user. --author and
--email override it only when both are set.`,
	RunE: runCommit,
}

var logCmd = &cobra.Command{
	Use:   "log [ref]",
	Short: "List commits",
	Long:  `List commits reachable from ref (default HEAD), newest first.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse commits interactively",
	Long: `Launch an interactive commit browser.

Navigation:
  ↑/↓     Navigate commits
  Enter   Show changed files
  Esc     Go back
  r       Refresh
  q       Quit`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

var (
	commitMessageFlag string
	commitAuthorFlag  string
	commitEmailFlag   string

	logLimitFlag int
	logSkipFlag  int

	browseLimitFlag   int
	browseRefreshFlag time.Duration
)

func init() {
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(browseCmd)

	commitCmd.Flags().StringVarP(&commitMessageFlag, "message", "m", "", "commit message")
	commitCmd.Flags().StringVarP(&commitAuthorFlag, "author", "a", "", "author name")
	commitCmd.Flags().StringVarP(&commitEmailFlag, "email", "e", "", "author email")
	commitCmd.MarkFlagRequired("message")

	logCmd.Flags().IntVarP(&logLimitFlag, "limit", "n", 20, "number of commits to show (0 for all)")
	logCmd.Flags().IntVarP(&logSkipFlag, "skip", "s", 0, "number of commits to skip")

	browseCmd.Flags().IntVarP(&browseLimitFlag, "limit", "n", 200, "number of commits to load")
	browseCmd.Flags().DurationVar(&browseRefreshFlag, "refresh", 0, "refresh interval (0 disables)")
}

func runCommit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		res, err := a.svc.Commit(ctx, ws, service.CommitArgs{
			Message: commitMessageFlag,
			Files:   args,
			Name:    commitAuthorFlag,
			Email:   commitEmailFlag,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, res)
		}
		subject, _, _ := strings.Cut(commitMessageFlag, "\n")
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", tui.HashStyle.Render(res.ShortHash), subject)
		fmt.Fprintf(cmd.OutOrStdout(), "Author: %s <%s>\n", res.Author.Name, res.Author.Email)
		return nil
	})
}

func runLog(cmd *cobra.Command, args []string) error {
	ref := ""
	if len(args) == 1 {
		ref = args[0]
	}
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		commits, err := a.svc.Commits(ctx, ws, service.CommitsArgs{Ref: ref, Limit: logLimitFlag, Skip: logSkipFlag})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, commits)
		}
		if len(commits) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No commits yet.")
			return nil
		}
		printCommits(cmd.OutOrStdout(), commits)
		return nil
	})
}

func printCommits(out io.Writer, commits []git.CommitSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMMIT\tAUTHOR\tDATE\tMESSAGE")
	fmt.Fprintln(w, "------\t------\t----\t-------")
	for _, c := range commits {
		subject, _, _ := strings.Cut(c.Message, "\n")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.ShortHash,
			c.AuthorName,
			c.Time.Format("2006-01-02 15:04"),
			subject)
	}
	w.Flush()
}

// browseSource feeds the commit browser from the service.
type browseSource struct {
	svc   *service.Service
	ws    service.Workspace
	limit int
}

func (s browseSource) Commits(ctx context.Context) ([]git.CommitSummary, error) {
	return s.svc.Commits(ctx, s.ws, service.CommitsArgs{Limit: s.limit})
}

func (s browseSource) Diff(ctx context.Context, oldRef, newRef string) ([]git.FileDiff, error) {
	return s.svc.Diff(ctx, s.ws, service.DiffArgs{Old: oldRef, New: newRef})
}

func runBrowse(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		src := browseSource{svc: a.svc, ws: ws, limit: browseLimitFlag}
		model := tui.NewModel(ctx, src, ws.Root(), browseRefreshFlag)

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	})
}
