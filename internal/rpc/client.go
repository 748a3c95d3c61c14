package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
)

// Client calls a gitsvc server. Authentication challenges in replies are
// answered through an auth.Broker, so a client with a prompter asks once
// and resubmits once.
type Client struct {
	baseURL string
	http    *http.Client
	broker  *auth.Broker
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	http     *http.Client
	prompter auth.Prompter
	logger   *slog.Logger
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.http = c }
}

// WithPrompter answers challenges with p.
func WithPrompter(p auth.Prompter) ClientOption {
	return func(cfg *clientConfig) { cfg.prompter = p }
}

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cfg *clientConfig) { cfg.logger = l }
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://127.0.0.1:7420".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	cfg := clientConfig{
		http:   &http.Client{Timeout: 5 * time.Minute},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    cfg.http,
		broker:  auth.NewBroker(cfg.prompter, auth.WithLogger(cfg.logger)),
	}
}

// Call runs verb against workspace (the server default when empty) and
// decodes the result into out, which may be nil. Errors carry the kind the
// server reported, so errors.KindOf works on them.
func (c *Client) Call(ctx context.Context, verb, workspace string, args map[string]any, out any) error {
	var initial *auth.Credentials
	if a, ok := args["auth"].(*auth.Credentials); ok {
		initial = a
	}
	return c.broker.Run(ctx, initial, func(ctx context.Context, creds *auth.Credentials) error {
		body := make(map[string]any, len(args)+2)
		for k, v := range args {
			body[k] = v
		}
		delete(body, "auth")
		if workspace != "" {
			body["workspace"] = workspace
		}
		if creds != nil {
			body["auth"] = creds
		}
		return c.post(ctx, verb, body, out)
	})
}

func (c *Client) post(ctx context.Context, verb string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/git/"+verb, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRemoteUnreachable, err)
	}
	defer resp.Body.Close()

	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if r.Error != nil {
		return r.Error.Err()
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// RemoteError is a failure reported by the server.
type RemoteError struct {
	Kind    errors.Kind
	Message string
	base    error
}

func (e *RemoteError) Error() string { return e.Message }

// Unwrap returns the sentinel named in the message, if any.
func (e *RemoteError) Unwrap() error { return e.base }

// ErrorKind reports the kind the server assigned.
func (e *RemoteError) ErrorKind() errors.Kind { return e.Kind }

// Err converts the body back into an error of the same kind. The sentinel
// text in the message restores errors.Is matching. An authentication
// challenge is returned as an *auth.ChallengeError.
func (b *ErrorBody) Err() error {
	e := &RemoteError{Kind: b.Kind, Message: b.Message}
	for _, s := range errors.Sentinels(b.Kind) {
		if strings.Contains(b.Message, s.Error()) {
			e.base = s
			break
		}
	}
	if b.Kind != errors.KindAuthRequired {
		return e
	}
	e.base = errors.ErrAuthRequired
	if b.Challenge == nil {
		return e
	}
	return &auth.ChallengeError{Challenge: *b.Challenge, Err: e}
}
