package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/jayteealao/gitsvc/internal/events"
	"github.com/jayteealao/gitsvc/internal/git"
	"github.com/jayteealao/gitsvc/internal/lock"
	"github.com/jayteealao/gitsvc/internal/notify"
	"github.com/jayteealao/gitsvc/internal/prompt"
	"github.com/jayteealao/gitsvc/internal/repo"
	"github.com/jayteealao/gitsvc/internal/service"
	"github.com/jayteealao/gitsvc/internal/state"
	"github.com/jayteealao/gitsvc/internal/validate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app holds the components one command invocation needs.
type app struct {
	svc      *service.Service
	store    state.StateStore
	notifier *notify.Manager
	detach   func()
	logger   *slog.Logger
}

// newApp wires the command service. With interactive set and a terminal on
// stdin, authentication challenges are answered with a prompt; otherwise
// they are returned as errors.
func newApp(cmd *cobra.Command, interactive bool) (*app, error) {
	logger := newLogger(cmd.ErrOrStderr())

	store, err := initStore()
	if err != nil {
		return nil, err
	}

	seqOpts := []lock.SequencerOption{lock.WithLogger(logger)}
	if viper.GetBool("locks.cross-process") {
		locks, err := initLockManager()
		if err != nil {
			store.Close()
			return nil, err
		}
		seqOpts = append(seqOpts, lock.WithFileLocks(locks))
	}

	engine := git.NewManager(git.Options{
		RemoteName: viper.GetString("remote.name"),
		SSHUser:    viper.GetString("ssh.user"),
		SSHKeyPath: viper.GetString("ssh.key"),
		Logger:     logger,
	})

	var prompter auth.Prompter
	if interactive && prompt.IsInteractive(os.Stdin) {
		prompter = prompt.NewPrompter(os.Stdin, os.Stderr, os.Getenv("ACCESSIBLE") != "")
	}

	bus := events.NewBus(logger)
	a := &app{store: store, logger: logger, detach: func() {}}
	a.notifier = buildNotifier()
	if a.notifier.Count() > 0 {
		a.detach = a.notifier.Attach(bus, viper.GetDuration("notify.timeout"), logger)
		printVerbose("Sending notifications to %d notifier(s)", a.notifier.Count())
	}

	a.svc = service.New(
		repo.NewRegistry(engine, logger),
		lock.NewSequencer(seqOpts...),
		service.WithBroker(auth.NewBroker(prompter, auth.WithLogger(logger))),
		service.WithBus(bus),
		service.WithJournal(store),
		service.WithRemoteTimeout(viper.GetDuration("remote.timeout")),
		service.WithLogger(logger),
	)
	return a, nil
}

// Close releases repository handles, notifiers and the journal.
func (a *app) Close() {
	a.svc.Close()
	a.detach()
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn("failed to close notifiers", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}

func buildNotifier() *notify.Manager {
	m := notify.NewManager()
	if url := viper.GetString("notify.webhook-url"); url != "" {
		m.Register(notify.NewWebhookNotifier(url, viper.GetStringMapString("notify.webhook-headers")))
	}
	if url := viper.GetString("notify.slack-webhook"); url != "" {
		m.Register(notify.NewSlackNotifier(url, viper.GetString("notify.slack-channel"), "gitsvc"))
	}
	if url := viper.GetString("notify.discord-webhook"); url != "" {
		m.Register(notify.NewDiscordNotifier(url, "gitsvc"))
	}
	return m
}

// workspace returns the repository selected by --repo, or the current directory.
func workspace() (service.Workspace, error) {
	path := repoPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = wd
	}
	root, err := validate.WorkspacePath(path)
	if err != nil {
		return nil, err
	}
	return service.Dir(root), nil
}

// initialCredentials reads credentials supplied through the environment
// (GITSVC_AUTH_USERNAME, GITSVC_AUTH_PASSWORD, GITSVC_AUTH_PASSPHRASE).
func initialCredentials() *auth.Credentials {
	c := &auth.Credentials{
		Username:   viper.GetString("auth.username"),
		Password:   viper.GetString("auth.password"),
		Passphrase: viper.GetString("auth.passphrase"),
	}
	if c.IsZero() {
		return nil
	}
	c.Kind = auth.KindPassword
	if c.Passphrase != "" {
		c.Kind = auth.KindPassphrase
	}
	return c
}

// formatError renders a command failure with a hint for the error kind.
func formatError(err error) string {
	msg := fmt.Sprintf("Error: %v", err)
	switch errors.KindOf(err) {
	case errors.KindAuthRequired:
		if c, ok := auth.AsChallenge(err); ok && c.Kind == auth.KindPassphrase {
			return msg + "\nHint: run interactively or set GITSVC_AUTH_PASSPHRASE"
		}
		return msg + "\nHint: run interactively or set GITSVC_AUTH_USERNAME and GITSVC_AUTH_PASSWORD"
	case errors.KindRemoteTimeout:
		return msg + "\nHint: raise remote.timeout (GITSVC_REMOTE_TIMEOUT)"
	case errors.KindRepositoryState:
		if errors.Is(err, errors.ErrRepoLocked) {
			return msg + "\nHint: another gitsvc process is working on this repository"
		}
	}
	return msg
}

// withApp resolves the workspace, wires the service and runs fn.
func withApp(cmd *cobra.Command, interactive bool, fn func(ctx context.Context, a *app, ws service.Workspace) error) error {
	ws, err := workspace()
	if err != nil {
		return err
	}
	a, err := newApp(cmd, interactive)
	if err != nil {
		return err
	}
	defer a.Close()
	printVerbose("Repository: %s", ws.Root())
	return fn(cmd.Context(), a, ws)
}
