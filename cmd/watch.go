package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/jayteealao/gitsvc/internal/notify"
	"github.com/jayteealao/gitsvc/internal/service"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the repository in sync with its upstream",
	Long: `Run sync on the repository at a fixed interval until interrupted.

Watch never prompts: configure credentials with GITSVC_AUTH_USERNAME,
GITSVC_AUTH_PASSWORD or GITSVC_AUTH_PASSPHRASE. Failures are reported and
the loop continues. When notify.* backends are configured, every
successful sync and the first failure after a success are sent to them.

Examples:
  gitsvc watch                    # Sync every 5 minutes
  gitsvc watch --interval 30s     # Sync every 30 seconds`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchIntervalFlag time.Duration

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchIntervalFlag, "interval", 5*time.Minute, "sync interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchIntervalFlag <= 0 {
		return fmt.Errorf("%w: interval must be positive", errors.ErrInvalidArgument)
	}
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Watching %s (interval: %s)\n", ws.Root(), watchIntervalFlag)
		if a.notifier.Count() > 0 {
			fmt.Fprintf(out, "Notifications enabled: %d backend(s)\n", a.notifier.Count())
		}
		fmt.Fprintln(out, "Press Ctrl+C to stop")
		fmt.Fprintln(out)

		w := &watcher{svc: a.svc, ws: ws, notifier: a.notifier, out: out}

		ticker := time.NewTicker(watchIntervalFlag)
		defer ticker.Stop()

		// Do initial sync immediately
		w.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				w.tick(ctx)
			}
		}
	})
}

type syncer interface {
	Sync(ctx context.Context, ws service.Workspace, args service.RemoteArgs) (*service.RemoteResult, error)
}

// watcher runs one sync per tick and reports failures once until the next
// success.
type watcher struct {
	svc      syncer
	ws       service.Workspace
	notifier *notify.Manager
	out      io.Writer
	failing  bool
}

func (w *watcher) tick(ctx context.Context) {
	timestamp := time.Now().Format("15:04:05")

	res, err := w.svc.Sync(ctx, w.ws, service.RemoteArgs{Auth: initialCredentials()})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w.out, "[%s] sync failed (%s): %v\n", timestamp, errors.KindOf(err), err)
		if !w.failing && w.notifier.Count() > 0 {
			event := notify.Event{
				Type:      notify.EventSyncFailed,
				Repo:      w.ws.Root(),
				Message:   err.Error(),
				Timestamp: time.Now(),
				Details:   map[string]string{"kind": string(errors.KindOf(err))},
			}
			if err := w.notifier.Notify(ctx, event); err != nil {
				printVerbose("Notification error: %v", err)
			}
		}
		w.failing = true
		return
	}

	if w.failing {
		fmt.Fprintf(w.out, "[%s] %s: recovered\n", timestamp, res.Branch)
	} else {
		fmt.Fprintf(w.out, "[%s] %s: synced\n", timestamp, res.Branch)
	}
	w.failing = false
}
