package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Level groups event types by how they should be highlighted.
type Level int

const (
	LevelInfo Level = iota
	LevelGood
	LevelWarn
	LevelFail
)

// LevelOf reports the highlight level of an event.
func LevelOf(event Event) Level {
	switch event.Type {
	case EventPush, EventPull, EventSync, EventClone:
		return LevelGood
	case EventBranchDelete:
		return LevelWarn
	case EventSyncFailed:
		return LevelFail
	default:
		return LevelInfo
	}
}

// Renderer turns an event into the JSON document a backend expects.
type Renderer func(Event) any

// HookNotifier posts rendered events to an HTTP hook. Server errors are
// retried with backoff; client errors are returned at once.
type HookNotifier struct {
	name    string
	url     string
	headers map[string]string
	render  Renderer
	retries int
	client  *http.Client
}

// NewHookNotifier creates a notifier posting render(event) to url.
func NewHookNotifier(name, url string, headers map[string]string, render Renderer) *HookNotifier {
	return &HookNotifier{
		name:    name,
		url:     url,
		headers: headers,
		render:  render,
		retries: 2,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HookNotifier) Name() string { return h.name }

// Send renders the event and posts it.
func (h *HookNotifier) Send(ctx context.Context, event Event) error {
	body, err := json.Marshal(h.render(event))
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", h.name, err)
	}

	var lastErr error
	for attempt := 0; attempt <= h.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			}
		}

		status, err := h.post(ctx, body)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", h.name, ctx.Err())
			}
			lastErr = err
		case status >= 500:
			lastErr = fmt.Errorf("%s returned status %d", h.name, status)
		case status < 200 || status >= 300:
			return fmt.Errorf("%s returned status %d", h.name, status)
		default:
			return nil
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", h.name, h.retries+1, lastErr)
}

func (h *HookNotifier) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Close drops idle connections.
func (h *HookNotifier) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

type field struct {
	name, value string
}

// fields lists repository, branch and details in display order.
func fields(event Event) []field {
	out := []field{{"Repository", event.Repo}}
	if event.Branch != "" {
		out = append(out, field{"Branch", event.Branch})
	}
	keys := make([]string, 0, len(event.Details))
	for k := range event.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, field{k, event.Details[k]})
	}
	return out
}
