package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jayteealao/gitsvc/internal/git"
	"github.com/jayteealao/gitsvc/internal/service"
	"github.com/jayteealao/gitsvc/internal/tui"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff [old [new]]",
	Short: "Show changes between commits or the working tree",
	Long: `Show changes between two revisions.

With no arguments, compares HEAD with the working tree. With one
argument, compares that revision with the working tree.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runDiff,
}

var diffStatFlag bool

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().BoolVar(&diffStatFlag, "stat", false, "show only changed files and line counts")
}

func runDiff(cmd *cobra.Command, args []string) error {
	var d service.DiffArgs
	if len(args) > 0 {
		d.Old = args[0]
	}
	if len(args) > 1 {
		d.New = args[1]
	}
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		files, err := a.svc.Diff(ctx, ws, d)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, files)
		}
		if diffStatFlag {
			fmt.Fprint(cmd.OutOrStdout(), tui.FormatFileDiffs(files))
			return nil
		}
		printDiff(cmd.OutOrStdout(), files)
		return nil
	})
}

func printDiff(out io.Writer, files []git.FileDiff) {
	for _, f := range files {
		header := f.Path
		if f.OldPath != "" {
			header = f.OldPath + " → " + f.Path
		}
		fmt.Fprintln(out, tui.TitleStyle.Render(fmt.Sprintf("%s (%s)", header, f.Status)))
		if f.Binary {
			fmt.Fprintln(out, "  binary file differs")
			continue
		}
		for _, c := range f.Chunks {
			prefix, style := " ", tui.NormalStyle
			switch c.Type {
			case git.ChunkAdd:
				prefix, style = "+", tui.StatusAdded
			case git.ChunkDelete:
				prefix, style = "-", tui.StatusDeleted
			}
			for _, line := range strings.Split(strings.TrimSuffix(c.Content, "\n"), "\n") {
				fmt.Fprintln(out, style.Render(prefix+line))
			}
		}
		fmt.Fprintln(out)
	}
}
