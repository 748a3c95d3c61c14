// Package events delivers repository events to in-process subscribers.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event names emitted by the command service.
const (
	GitInit         = "git:init"
	GitClone        = "git:clone"
	GitSync         = "git.sync"
	GitPush         = "git.push"
	GitPull         = "git.pull"
	GitCommit       = "git.commit"
	GitCheckout     = "git.checkout"
	GitBranchCreate = "git.branch_create"
	GitBranchDelete = "git.branch_delete"
)

// All subscribes to every event.
const All = "*"

// Event is an immutable notification that a repository operation completed.
type Event struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
	Time    time.Time      `json:"time"`
}

// Handler receives events. A returned error is logged and does not stop
// delivery to other handlers.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	id      uint64
	name    string
	handler Handler
}

// Bus delivers events synchronously to subscribers in registration order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers handler for name, or for every event when name is All.
// The returned function removes the subscription.
func (b *Bus) Subscribe(name string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to every matching subscriber before returning.
func (b *Bus) Emit(ctx context.Context, name string, payload map[string]any) {
	e := Event{Name: name, Payload: payload, Time: time.Now()}

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == name || s.name == All {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.deliver(ctx, s.handler, e); err != nil {
			b.logger.Warn("event handler failed", "event", name, "error", err)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, e)
}

// Subscribers returns the number of registered handlers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
