// Package notify forwards repository events to chat and webhook backends.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jayteealao/gitsvc/internal/events"
)

// Event is a repository event flattened for notification backends.
type Event struct {
	Type      EventType
	Repo      string
	Branch    string
	Message   string
	Timestamp time.Time
	Details   map[string]string
}

// EventType is the bus event name the notification was derived from.
type EventType string

const (
	EventInit         EventType = events.GitInit
	EventClone        EventType = events.GitClone
	EventSync         EventType = events.GitSync
	EventPush         EventType = events.GitPush
	EventPull         EventType = events.GitPull
	EventCommit       EventType = events.GitCommit
	EventCheckout     EventType = events.GitCheckout
	EventBranchCreate EventType = events.GitBranchCreate
	EventBranchDelete EventType = events.GitBranchDelete

	// EventSyncFailed is sent by the watch loop, not the bus.
	EventSyncFailed EventType = "watch.sync_failed"
)

// Notifier is the interface for notification backends.
type Notifier interface {
	// Name returns the name of the notifier.
	Name() string

	// Send sends a notification event.
	Send(ctx context.Context, event Event) error

	// Close cleans up any resources.
	Close() error
}

// FromBusEvent flattens a bus event. Well-known payload keys fill the typed
// fields; everything else lands in Details.
func FromBusEvent(e events.Event) Event {
	n := Event{
		Type:      EventType(e.Name),
		Timestamp: e.Time,
		Details:   map[string]string{},
	}
	for k, v := range e.Payload {
		s := fmt.Sprint(v)
		switch k {
		case "path":
			n.Repo = s
		case "branch":
			n.Branch = s
		case "message":
			n.Message = s
		default:
			n.Details[k] = s
		}
	}
	return n
}

// Manager manages multiple notification backends.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
	}
}

// Register adds a notifier to the manager.
func (m *Manager) Register(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Attach subscribes the manager to every bus event. Each event is sent with
// its own timeout so a slow backend cannot hold up the emitting operation
// for longer than that.
func (m *Manager) Attach(bus *events.Bus, timeout time.Duration, logger *slog.Logger) (unsubscribe func()) {
	if logger == nil {
		logger = slog.Default()
	}
	return bus.Subscribe(events.All, func(ctx context.Context, e events.Event) error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := m.Notify(ctx, FromBusEvent(e)); err != nil {
			logger.Warn("notification failed", "event", e.Name, "error", err)
		}
		return nil
	})
}

// Notify sends an event to all registered notifiers.
func (m *Manager) Notify(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, n := range m.notifiers {
		wg.Add(1)
		go func(notifier Notifier) {
			defer wg.Done()
			if err := notifier.Send(ctx, event); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
				mu.Unlock()
			}
		}(n)
	}
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// Close closes all registered notifiers.
func (m *Manager) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Count returns the number of registered notifiers.
func (m *Manager) Count() int {
	return len(m.notifiers)
}

// FormatMessage creates a human-readable message from an event.
func FormatMessage(event Event) string {
	switch event.Type {
	case EventInit:
		return fmt.Sprintf("🆕 Repository initialized at %s", event.Repo)
	case EventClone:
		return fmt.Sprintf("📥 Cloned %s into %s", event.Details["url"], event.Repo)
	case EventCommit:
		return fmt.Sprintf("📝 Commit in %s: %s", event.Repo, event.Message)
	case EventPush:
		return fmt.Sprintf("⬆️ Pushed %s", event.Repo)
	case EventPull:
		return fmt.Sprintf("⬇️ Pulled %s", event.Repo)
	case EventSync:
		return fmt.Sprintf("🔄 Synced %s", event.Repo)
	case EventCheckout:
		return fmt.Sprintf("🔀 Checked out %s in %s", event.Details["ref"], event.Repo)
	case EventBranchCreate:
		return fmt.Sprintf("🌱 Branch %s created in %s", event.Branch, event.Repo)
	case EventBranchDelete:
		return fmt.Sprintf("🗑️ Branch %s deleted in %s", event.Branch, event.Repo)
	case EventSyncFailed:
		return fmt.Sprintf("❌ Sync failed for %s: %s", event.Repo, event.Message)
	default:
		return fmt.Sprintf("[%s] %s: %s", event.Type, event.Repo, event.Message)
	}
}

// GetEventTitle returns a human-readable title for an event type.
func GetEventTitle(event Event) string {
	switch event.Type {
	case EventInit:
		return "🆕 Repository Initialized"
	case EventClone:
		return "📥 Repository Cloned"
	case EventCommit:
		return "📝 New Commit"
	case EventPush:
		return "⬆️ Pushed"
	case EventPull:
		return "⬇️ Pulled"
	case EventSync:
		return "🔄 Synced"
	case EventCheckout:
		return "🔀 Checkout"
	case EventBranchCreate:
		return "🌱 Branch Created"
	case EventBranchDelete:
		return "🗑️ Branch Deleted"
	case EventSyncFailed:
		return "❌ Sync Failed"
	default:
		return string(event.Type)
	}
}
