package rules

import (
	"context"
	"sync"

	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
	"github.com/oshokin/quarantine-engine/internal/stream"
)

// Provider supplies a live stream of quarantine rules.
// The stream yields the current rules immediately and every change after it.
type Provider interface {
	Observe(ctx context.Context) <-chan quarantine.Rules
}

// Holder is an in-memory Provider with thread-safe replacement.
type Holder struct {
	// mu serializes Set so that equality checks and publishing are atomic.
	mu sync.Mutex
	// current broadcasts the active rules.
	current *stream.Latest[quarantine.Rules]
}

// NewHolder creates a holder with initial rules.
func NewHolder(initial quarantine.Rules) *Holder {
	return &Holder{
		current: stream.NewLatest(initial.Clone()),
	}
}

// Get returns a copy of the active rules.
func (h *Holder) Get() quarantine.Rules {
	rules, _ := h.current.Value()

	return rules.Clone()
}

// Set replaces the active rules and notifies observers when they differ.
// It reports whether a change was published.
func (h *Holder) Set(rules quarantine.Rules) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, _ := h.current.Value(); current.Equal(rules) {
		return false
	}

	h.current.Publish(rules.Clone())

	return true
}

// Observe implements Provider.
func (h *Holder) Observe(ctx context.Context) <-chan quarantine.Rules {
	return h.current.Subscribe(ctx)
}
