package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
	"github.com/oshokin/quarantine-engine/internal/reminder"
	"github.com/oshokin/quarantine-engine/internal/repository/events"
	"github.com/oshokin/quarantine-engine/internal/rules"
	"github.com/oshokin/quarantine-engine/internal/stream"
)

// DefaultDebounce is the quiet period after the last upstream change before
// the status is recomputed.
const DefaultDebounce = 50 * time.Millisecond

var (
	// ErrAlreadyRunning is returned when Run is called on a running engine.
	ErrAlreadyRunning = errors.New("engine is already running")
	// ErrZeroTime is returned when an event is recorded without a timestamp.
	ErrZeroTime = errors.New("event time must be set")
)

// Engine keeps a live quarantine status in sync with recorded events and rules.
type Engine struct {
	// store holds the recorded event timestamps and the banner flag.
	store *events.Store
	// rules supplies the quarantine durations.
	rules rules.Provider
	// scheduler receives reminder instructions for forwarded statuses.
	scheduler reminder.Scheduler
	// reporter receives derivation anomalies.
	reporter quarantine.Reporter
	// debounce is the quiescence window.
	debounce time.Duration

	// statuses broadcasts forwarded statuses.
	statuses stream.Latest[quarantine.Status]
	// running guards against concurrent Run calls.
	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.debounce = d
		}
	}
}

// WithReporter sets the diagnostic channel for derivation anomalies.
func WithReporter(r quarantine.Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// New wires an engine. Nothing is observed until Run is called.
func New(store *events.Store, provider rules.Provider, scheduler reminder.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		rules:     provider,
		scheduler: scheduler,
		debounce:  DefaultDebounce,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Status returns a live subscription of forwarded statuses. The last
// forwarded status, if any, is delivered immediately.
func (e *Engine) Status(ctx context.Context) <-chan quarantine.Status {
	return e.statuses.Subscribe(ctx)
}

// Current returns the last forwarded status and whether one exists yet.
func (e *Engine) Current() (quarantine.Status, bool) {
	return e.statuses.Value()
}

// Banner returns a live subscription of the quarantine-end banner flag.
func (e *Engine) Banner(ctx context.Context) <-chan bool {
	return e.store.Flag(events.KeyShowQuarantineEndBanner).Observe(ctx)
}

// ShowQuarantineEndBanner returns the current banner flag.
func (e *Engine) ShowQuarantineEndBanner() bool {
	return e.store.Flag(events.KeyShowQuarantineEndBanner).Get()
}

// SetQuarantineEndBanner sets or clears the banner flag, e.g. when the user
// acknowledged it.
func (e *Engine) SetQuarantineEndBanner(ctx context.Context, show bool) error {
	return e.store.Flag(events.KeyShowQuarantineEndBanner).Set(ctx, show)
}

// RecordMedicalConfirmation stores the first medical confirmation.
// A later confirmation does not move the first one.
func (e *Engine) RecordMedicalConfirmation(ctx context.Context, at time.Time) error {
	if at.IsZero() {
		return ErrZeroTime
	}

	return e.store.Update(ctx, func(b *events.Batch) {
		if b.Time(events.KeyFirstMedicalConfirmation).IsZero() {
			b.SetTime(events.KeyFirstMedicalConfirmation, at)
		}
	})
}

// RevokeMedicalConfirmation clears the medical confirmation.
func (e *Engine) RevokeMedicalConfirmation(ctx context.Context) error {
	return e.store.Time(events.KeyFirstMedicalConfirmation).Clear(ctx)
}

// RecordSelfDiagnosis stores a self-diagnosis: the first one is kept,
// the last one always moves to at.
func (e *Engine) RecordSelfDiagnosis(ctx context.Context, at time.Time) error {
	if at.IsZero() {
		return ErrZeroTime
	}

	return e.store.Update(ctx, func(b *events.Batch) {
		if b.Time(events.KeyFirstSelfDiagnosis).IsZero() {
			b.SetTime(events.KeyFirstSelfDiagnosis, at)
		}

		b.SetTime(events.KeyLastSelfDiagnosis, at)
	})
}

// RevokeSelfDiagnosis clears both the first and the last self-diagnosis.
func (e *Engine) RevokeSelfDiagnosis(ctx context.Context) error {
	return e.store.Update(ctx, func(b *events.Batch) {
		b.ClearTime(events.KeyFirstSelfDiagnosis)
		b.ClearTime(events.KeyLastSelfDiagnosis)
	})
}

// RecordContact stores an exposure notification in the field of its severity.
func (e *Engine) RecordContact(ctx context.Context, severity quarantine.Severity, at time.Time) error {
	if at.IsZero() {
		return ErrZeroTime
	}

	var key events.Key

	switch severity {
	case quarantine.SeverityRed:
		key = events.KeyLastRedContact
	case quarantine.SeverityYellow:
		key = events.KeyLastYellowContact
	default:
		return fmt.Errorf("%w: %s", quarantine.ErrUnknownSeverity, severity)
	}

	return e.store.Time(key).Set(ctx, at)
}

// RecordSelfMonitoring stores a self-monitoring instruction.
func (e *Engine) RecordSelfMonitoring(ctx context.Context, at time.Time) error {
	if at.IsZero() {
		return ErrZeroTime
	}

	return e.store.Time(events.KeyLastSelfMonitoringInstruction).Set(ctx, at)
}

// RevokeSelfMonitoring clears the self-monitoring instruction.
func (e *Engine) RevokeSelfMonitoring(ctx context.Context) error {
	return e.store.Time(events.KeyLastSelfMonitoringInstruction).Clear(ctx)
}
