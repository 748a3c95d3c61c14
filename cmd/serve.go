package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jayteealao/gitsvc/internal/rpc"
	"github.com/jayteealao/gitsvc/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve git commands over HTTP",
	Long: `Serve the command surface as JSON over HTTP.

Commands are posted to /rpc/git/<verb> with a JSON object holding the
command arguments and an optional "workspace" member, for example
{"workspace": "/path/to/repo", "message": "fix"} for commit. Requests
without a workspace use the --repo path.

The server never prompts. Remotes that need credentials answer with a
401 and a challenge describing the fields to resubmit under "auth".`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddrFlag string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "listen address (default from serve.addr)")
	viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app, ws service.Workspace) error {
		srv, err := rpc.NewServer(rpc.ServerConfig{
			Addr:     viper.GetString("serve.addr"),
			Root:     ws.Root(),
			Executor: a.svc,
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		fmt.Fprintf(cmd.ErrOrStderr(), "Serving git commands on %s (default repository %s)\n", viper.GetString("serve.addr"), ws.Root())

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	})
}
