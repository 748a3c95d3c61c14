package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/jayteealao/gitsvc/internal/prompt"
	"github.com/jayteealao/gitsvc/internal/rpc"
	"github.com/jayteealao/gitsvc/internal/validate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var callCmd = &cobra.Command{
	Use:   "call <verb> [args-json]",
	Short: "Run a command on a gitsvc server",
	Long: `Run one command on a server started with "gitsvc serve" and print the
JSON result.

args-json is the command's argument object, e.g. '{"message":"fix"}' for
commit. If the server asks for credentials and stdin is a terminal, you
are prompted once and the command is resubmitted.

Examples:
  gitsvc call status
  gitsvc call commits '{"limit":5}' --server http://10.0.0.5:7420`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

var callServerFlag string

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVar(&callServerFlag, "server", "", "server URL (default http://<serve.addr>)")
	callCmd.Flags().Bool("no-prompt", false, "never prompt for credentials")
}

func runCall(cmd *cobra.Command, args []string) error {
	var callArgs map[string]any
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &callArgs); err != nil {
			return fmt.Errorf("%w: args must be a JSON object: %v", errors.ErrInvalidArgument, err)
		}
	}

	server := callServerFlag
	if server == "" {
		server = "http://" + viper.GetString("serve.addr")
	}

	logger := newLogger(cmd.ErrOrStderr())
	opts := []rpc.ClientOption{rpc.WithClientLogger(logger)}
	noPrompt, _ := cmd.Flags().GetBool("no-prompt")
	if !noPrompt && prompt.IsInteractive(os.Stdin) {
		opts = append(opts, rpc.WithPrompter(prompt.NewPrompter(os.Stdin, os.Stderr, os.Getenv("ACCESSIBLE") != "")))
	}

	workspace := ""
	if repoPath != "" {
		root, err := validate.WorkspacePath(repoPath)
		if err != nil {
			return err
		}
		workspace = root
	}

	var result json.RawMessage
	if err := rpc.NewClient(server, opts...).Call(cmd.Context(), args[0], workspace, callArgs, &result); err != nil {
		return err
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return writeJSON(cmd, result)
}
