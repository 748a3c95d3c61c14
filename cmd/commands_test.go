package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jayteealao/gitsvc/internal/auth"
	apperrors "github.com/jayteealao/gitsvc/internal/errors"
	"github.com/jayteealao/gitsvc/internal/git"
	"github.com/jayteealao/gitsvc/internal/lock"
	"github.com/jayteealao/gitsvc/internal/notify"
	"github.com/jayteealao/gitsvc/internal/rpc"
	"github.com/jayteealao/gitsvc/internal/service"
	"github.com/jayteealao/gitsvc/internal/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag variable so consecutive executions of
// rootCmd do not leak state into each other.
func resetFlags() {
	cfgFile = ""
	dataDir = ""
	repoPath = ""
	verbose = false
	logFormat = "text"
	jsonOutput = false

	commitMessageFlag = ""
	commitAuthorFlag = ""
	commitEmailFlag = ""
	logLimitFlag = 20
	logSkipFlag = 0
	browseLimitFlag = 200
	browseRefreshFlag = 0
	diffStatFlag = false
	historyLimitFlag = 20
	historyAllFlag = false
	historyInterruptedFlag = false
	cleanupDryRunFlag = false
	watchIntervalFlag = 5 * time.Minute
	serveAddrFlag = ""
	callServerFlag = ""
	branchDeleteYesFlag = false
}

// runCLI executes rootCmd with args and returns everything it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// isolate points HOME and the data directory at temporary directories.
func isolate(t *testing.T) (repo, data string) {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", filepath.Join(tmp, "home"))
	t.Setenv("GITSVC_AUTH_USERNAME", "")
	t.Setenv("GITSVC_AUTH_PASSWORD", "")
	t.Setenv("GITSVC_AUTH_PASSPHRASE", "")
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "home"), 0755))
	return filepath.Join(tmp, "repo"), filepath.Join(tmp, "data")
}

// --- Root Command Tests ---

func TestRootCmd(t *testing.T) {
	t.Run("root command exists and has correct use", func(t *testing.T) {
		assert.Equal(t, "gitsvc", rootCmd.Use)
		assert.NotEmpty(t, rootCmd.Short)
		assert.NotEmpty(t, rootCmd.Long)
		assert.True(t, rootCmd.SilenceErrors)
	})

	t.Run("root command has expected global flags", func(t *testing.T) {
		for _, name := range []string{"config", "data-dir", "repo", "verbose", "log-format", "json"} {
			assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing flag %s", name)
		}
		assert.Equal(t, "v", rootCmd.PersistentFlags().Lookup("verbose").Shorthand)
		assert.Equal(t, "C", rootCmd.PersistentFlags().Lookup("repo").Shorthand)
	})

	t.Run("checkContext returns nil for active context", func(t *testing.T) {
		assert.NoError(t, checkContext(context.Background()))
	})

	t.Run("checkContext returns error for cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Equal(t, context.Canceled, checkContext(ctx))
	})
}

func TestGetDataDir(t *testing.T) {
	tests := []struct {
		name       string
		dataDir    string
		wantSuffix string
	}{
		{"uses explicit data dir when set", "/custom/data/dir", "/custom/data/dir"},
		{"returns home-based path when not set", "", ".gitsvc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldDataDir := dataDir
			defer func() { dataDir = oldDataDir }()
			dataDir = tt.dataDir

			got, err := getDataDir()
			require.NoError(t, err)
			assert.Contains(t, got, tt.wantSuffix)
		})
	}
}

func TestIsVerbose(t *testing.T) {
	oldVerbose := verbose
	defer func() { verbose = oldVerbose }()

	verbose = true
	assert.True(t, isVerbose())
}

func TestNewLogger(t *testing.T) {
	oldFormat, oldVerbose := logFormat, verbose
	defer func() { logFormat, verbose = oldFormat, oldVerbose }()
	viper.Set("log-format", "")
	defer viper.Set("log-format", nil)
	verbose = false

	t.Run("text handler drops info", func(t *testing.T) {
		logFormat = "text"
		var buf bytes.Buffer
		l := newLogger(&buf)
		l.Info("quiet")
		l.Warn("loud", "repo", "/srv/app")
		assert.NotContains(t, buf.String(), "quiet")
		assert.Contains(t, buf.String(), "repo=/srv/app")
	})

	t.Run("json handler", func(t *testing.T) {
		logFormat = "json"
		var buf bytes.Buffer
		newLogger(&buf).Warn("loud")
		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "loud", rec["msg"])
	})
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		hint string
	}{
		{
			name: "password challenge",
			err:  &auth.ChallengeError{Challenge: auth.NewChallenge(auth.KindPassword, "github.com"), Err: apperrors.ErrAuthRequired},
			hint: "GITSVC_AUTH_USERNAME",
		},
		{
			name: "passphrase challenge",
			err:  &auth.ChallengeError{Challenge: auth.NewChallenge(auth.KindPassphrase, "github.com"), Err: apperrors.ErrAuthRequired},
			hint: "GITSVC_AUTH_PASSPHRASE",
		},
		{
			name: "timeout",
			err:  fmt.Errorf("push: %w", apperrors.ErrRemoteTimeout),
			hint: "remote.timeout",
		},
		{
			name: "locked",
			err:  fmt.Errorf("%w: /srv/app", apperrors.ErrRepoLocked),
			hint: "another gitsvc process",
		},
		{
			name: "plain",
			err:  apperrors.ErrNothingToCommit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatError(tt.err)
			assert.True(t, strings.HasPrefix(got, "Error: "))
			if tt.hint == "" {
				assert.NotContains(t, got, "Hint:")
				return
			}
			assert.Contains(t, got, tt.hint)
		})
	}
}

func TestInitialCredentials(t *testing.T) {
	t.Run("none configured", func(t *testing.T) {
		t.Setenv("GITSVC_AUTH_USERNAME", "")
		t.Setenv("GITSVC_AUTH_PASSWORD", "")
		t.Setenv("GITSVC_AUTH_PASSPHRASE", "")
		initConfig()
		assert.Nil(t, initialCredentials())
	})

	t.Run("password from environment", func(t *testing.T) {
		t.Setenv("GITSVC_AUTH_USERNAME", "ada")
		t.Setenv("GITSVC_AUTH_PASSWORD", "s3cret")
		t.Setenv("GITSVC_AUTH_PASSPHRASE", "")
		initConfig()
		c := initialCredentials()
		require.NotNil(t, c)
		assert.Equal(t, auth.KindPassword, c.Kind)
		assert.Equal(t, "ada", c.Username)
	})

	t.Run("passphrase wins", func(t *testing.T) {
		t.Setenv("GITSVC_AUTH_USERNAME", "")
		t.Setenv("GITSVC_AUTH_PASSWORD", "")
		t.Setenv("GITSVC_AUTH_PASSPHRASE", "unlock")
		initConfig()
		c := initialCredentials()
		require.NotNil(t, c)
		assert.Equal(t, auth.KindPassphrase, c.Kind)
	})
}

func TestBuildNotifier(t *testing.T) {
	defer viper.Set("notify.webhook-url", nil)
	defer viper.Set("notify.discord-webhook", nil)

	assert.Equal(t, 0, buildNotifier().Count())

	viper.Set("notify.webhook-url", "http://127.0.0.1:1/hook")
	viper.Set("notify.discord-webhook", "http://127.0.0.1:1/discord")
	assert.Equal(t, 2, buildNotifier().Count())
}

// --- Table-Driven Tests for Command Validation ---

func TestCommandArgumentValidation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     *cobra.Command
		args    []string
		wantErr bool
	}{
		{"init with no args", initCmd, []string{}, false},
		{"init with one arg", initCmd, []string{"x"}, true},

		{"clone with no args", cloneCmd, []string{}, true},
		{"clone with url", cloneCmd, []string{"https://example.com/r.git"}, false},
		{"clone with url and path", cloneCmd, []string{"https://example.com/r.git", "dir"}, false},
		{"clone with three args", cloneCmd, []string{"a", "b", "c"}, true},

		{"status with no args", statusCmd, []string{}, false},
		{"status with one arg", statusCmd, []string{"x"}, true},

		{"log with no args", logCmd, []string{}, false},
		{"log with ref", logCmd, []string{"main"}, false},
		{"log with two args", logCmd, []string{"a", "b"}, true},

		{"branch create with no args", branchCreateCmd, []string{}, true},
		{"branch create with name", branchCreateCmd, []string{"feature"}, false},
		{"branch delete with two args", branchDeleteCmd, []string{"a", "b"}, true},

		{"checkout with no args", checkoutCmd, []string{}, true},
		{"checkout with ref", checkoutCmd, []string{"main"}, false},

		{"diff with two args", diffCmd, []string{"a", "b"}, false},
		{"diff with three args", diffCmd, []string{"a", "b", "c"}, true},

		{"push with args", pushCmd, []string{"origin"}, true},
		{"history with args", historyCmd, []string{"x"}, true},
		{"call with no args", callCmd, []string{}, true},
		{"call with verb and args", callCmd, []string{"commit", "{}"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Args(tt.cmd, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- Command Flag Default Value Tests ---

func TestCommandFlagDefaults(t *testing.T) {
	tests := []struct {
		name        string
		cmd         *cobra.Command
		flagName    string
		expectedVal string
	}{
		{"log limit default", logCmd, "limit", "20"},
		{"log skip default", logCmd, "skip", "0"},
		{"browse refresh default", browseCmd, "refresh", "0s"},
		{"diff stat default", diffCmd, "stat", "false"},
		{"history limit default", historyCmd, "limit", "20"},
		{"history all default", historyCmd, "all", "false"},
		{"cleanup dry-run default", cleanupCmd, "dry-run", "false"},
		{"watch interval default", watchCmd, "interval", "5m0s"},
		{"push no-prompt default", pushCmd, "no-prompt", "false"},
		{"clone no-prompt default", cloneCmd, "no-prompt", "false"},
		{"branch delete yes default", branchDeleteCmd, "yes", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := tt.cmd.Flags().Lookup(tt.flagName)
			require.NotNil(t, flag, "flag %s should exist", tt.flagName)
			assert.Equal(t, tt.expectedVal, flag.DefValue)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	assert.Equal(t, "origin", viper.GetString("remote.name"))
	assert.Equal(t, 2*time.Minute, viper.GetDuration("remote.timeout"))
	assert.True(t, viper.GetBool("locks.cross-process"))
	assert.Equal(t, "127.0.0.1:7420", viper.GetString("serve.addr"))
}

func TestSubcommandRegistration(t *testing.T) {
	t.Run("branch has create and delete", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range branchCmd.Commands() {
			names[c.Name()] = true
		}
		assert.True(t, names["create"])
		assert.True(t, names["delete"])
	})

	t.Run("root has all main commands", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range rootCmd.Commands() {
			names[c.Name()] = true
		}
		for _, expected := range []string{
			"init", "clone", "status", "commit", "log", "browse", "branch",
			"checkout", "push", "pull", "sync", "pending", "diff", "history",
			"cleanup", "watch", "serve", "call",
		} {
			assert.True(t, names[expected], "root should have %s command", expected)
		}
	})

	t.Run("every command has help text", func(t *testing.T) {
		for _, c := range rootCmd.Commands() {
			assert.NotEmpty(t, c.Short, "command %s should have Short description", c.Name())
		}
	})
}

// --- Watcher Tests ---

type fakeSyncer struct {
	errs  []error
	calls int
}

func (f *fakeSyncer) Sync(ctx context.Context, ws service.Workspace, args service.RemoteArgs) (*service.RemoteResult, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return &service.RemoteResult{Branch: "main"}, nil
}

type countingNotifier struct{ events []notify.Event }

func (c *countingNotifier) Name() string { return "counting" }
func (c *countingNotifier) Send(ctx context.Context, e notify.Event) error {
	c.events = append(c.events, e)
	return nil
}
func (c *countingNotifier) Close() error { return nil }

func TestWatcher(t *testing.T) {
	timeout := fmt.Errorf("sync: %w", apperrors.ErrRemoteTimeout)
	syncer := &fakeSyncer{errs: []error{nil, timeout, timeout, nil, timeout}}
	n := &countingNotifier{}
	mgr := notify.NewManager()
	mgr.Register(n)

	var out bytes.Buffer
	w := &watcher{svc: syncer, ws: service.Dir("/srv/app"), notifier: mgr, out: &out}
	for range 5 {
		w.tick(context.Background())
	}

	assert.Equal(t, 5, syncer.calls)
	require.Len(t, n.events, 2, "one notification per failure streak")
	assert.Equal(t, notify.EventSyncFailed, n.events[0].Type)
	assert.Equal(t, "remote_timeout", n.events[0].Details["kind"])
	assert.Contains(t, out.String(), "main: synced")
	assert.Contains(t, out.String(), "main: recovered")
	assert.True(t, w.failing)
}

// --- End-to-end Command Tests ---

func TestCLI_LocalWorkflow(t *testing.T) {
	repo, data := isolate(t)
	base := []string{"--repo", repo, "--data-dir", data}
	run := func(args ...string) (string, error) {
		return runCLI(t, append(append([]string{}, base...), args...)...)
	}

	out, err := run("init")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Initialized empty repository")

	_, err = run("init")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrRepoExists))

	require.NoError(t, os.WriteFile(filepath.Join(repo, "a.txt"), []byte("one\n"), 0644))

	out, err = run("status")
	require.NoError(t, err, out)
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "untracked")

	out, err = run("commit", "-m", "first", "--author", "Ada", "--email", "ada@example.com")
	require.NoError(t, err, out)
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "Ada <ada@example.com>")

	out, err = run("status")
	require.NoError(t, err, out)
	assert.Contains(t, out, "working tree clean")

	out, err = run("--json", "log")
	require.NoError(t, err, out)
	var commits []git.CommitSummary
	require.NoError(t, json.Unmarshal([]byte(out), &commits))
	require.Len(t, commits, 1)
	assert.Equal(t, "first", strings.TrimSpace(commits[0].Message))

	out, err = run("branch", "create", "feature")
	require.NoError(t, err, out)
	out, err = run("--json", "branch")
	require.NoError(t, err, out)
	var branches []service.BranchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &branches))
	require.Len(t, branches, 2)

	out, err = run("checkout", "feature")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Switched to feature")

	require.NoError(t, os.WriteFile(filepath.Join(repo, "a.txt"), []byte("one\ntwo\n"), 0644))
	out, err = run("diff")
	require.NoError(t, err, out)
	assert.Contains(t, out, "+two")

	out, err = run("diff", "--stat")
	require.NoError(t, err, out)
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "+1")

	_, err = run("commit", "-m", "  ")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	out, err = run("--json", "history", "--limit", "3")
	require.NoError(t, err, out)
	var ops []state.Operation
	require.NoError(t, json.Unmarshal([]byte(out), &ops))
	require.NotEmpty(t, ops)
	assert.Equal(t, "diff", ops[0].Verb)
	assert.Equal(t, state.StatusSucceeded, ops[0].Status)
}

func TestCLI_StatusOutsideRepository(t *testing.T) {
	repo, data := isolate(t)
	require.NoError(t, os.MkdirAll(repo, 0755))

	_, err := runCLI(t, "--repo", repo, "--data-dir", data, "status")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotGitRepo))
}

func TestCLI_Cleanup(t *testing.T) {
	repo, data := isolate(t)

	store, err := state.New(data)
	require.NoError(t, err)
	_, err = store.StartOperation(context.Background(), repo, "push")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := runCLI(t, "--data-dir", data, "cleanup", "--dry-run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Found interrupted push")
	assert.Contains(t, out, "0 operation(s) marked failed")

	out, err = runCLI(t, "--data-dir", data, "cleanup")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 operation(s) marked failed")

	out, err = runCLI(t, "--data-dir", data, "--json", "history", "--interrupted")
	require.NoError(t, err, out)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestCLI_CleanupSkipsReadInProgress(t *testing.T) {
	repo, data := isolate(t)

	store, err := state.New(data)
	require.NoError(t, err)
	_, err = store.StartOperation(context.Background(), repo, "status")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	locks, err := lock.NewManager(data)
	require.NoError(t, err)
	key, err := lock.Key(repo)
	require.NoError(t, err)
	reader, err := locks.Acquire(context.Background(), key, false)
	require.NoError(t, err)
	defer reader.Release()

	out, err := runCLI(t, "--data-dir", data, "cleanup")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Skipping status")
	assert.Contains(t, out, "0 operation(s) marked failed")
}

type recordingExecutor struct {
	verb string
	ws   string
	raw  json.RawMessage
}

func (r *recordingExecutor) Execute(ctx context.Context, verb string, ws service.Workspace, raw json.RawMessage) (any, error) {
	r.verb, r.ws, r.raw = verb, ws.Root(), raw
	if verb == service.VerbBranchDelete {
		return nil, fmt.Errorf("%w: main", apperrors.ErrDeleteActiveBranch)
	}
	return []service.BranchSummary{{Name: "main", Active: true}}, nil
}

func TestCLI_Call(t *testing.T) {
	repo, data := isolate(t)
	exec := &recordingExecutor{}
	srv := httptest.NewServer(rpc.NewHandler(exec, "/srv/default", nil).Routes())
	defer srv.Close()

	out, err := runCLI(t, "--data-dir", data, "--repo", repo, "call", "branches", `{"limit":5}`, "--server", srv.URL, "--no-prompt")
	require.NoError(t, err, out)
	assert.Equal(t, "branches", exec.verb)
	assert.Equal(t, repo, exec.ws)
	assert.Contains(t, string(exec.raw), `"limit":5`)

	var branches []service.BranchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &branches))
	assert.Equal(t, []service.BranchSummary{{Name: "main", Active: true}}, branches)

	_, err = runCLI(t, "--data-dir", data, "call", "branch_delete", `{"name":"main"}`, "--server", srv.URL, "--no-prompt")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDeleteActiveBranch))

	_, err = runCLI(t, "--data-dir", data, "call", "commit", `not json`, "--server", srv.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}
