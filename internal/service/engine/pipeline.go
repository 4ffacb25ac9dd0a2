package engine

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
	"github.com/oshokin/quarantine-engine/internal/logger"
	"github.com/oshokin/quarantine-engine/internal/metrics"
	"github.com/oshokin/quarantine-engine/internal/repository/events"
)

// source is one upstream slot of the fan-in.
type source uint8

const (
	sourceFirstMedicalConfirmation source = 1 << iota
	sourceFirstSelfDiagnosis
	sourceLastSelfDiagnosis
	sourceLastRedContact
	sourceLastYellowContact
	sourceLastSelfMonitoring
	sourceRules

	allSources = sourceRules<<1 - 1
)

// inputs holds the latest value of every upstream source.
type inputs struct {
	events quarantine.Events
	rules  quarantine.Rules
	// seen has a bit set for every source that produced a value.
	seen source
}

// update applies one upstream value to the slots.
type update func(in *inputs)

// pipeline is the state owned by the goroutine executing Run.
type pipeline struct {
	engine *Engine
	in     inputs

	debounceTimer *time.Timer
	debounceC     <-chan time.Time

	// expiryTimer re-evaluates at the end of a time-bounded quarantine.
	expiryTimer *time.Timer
	expiryC     <-chan time.Time

	forwarded    quarantine.Status
	hasForwarded bool
}

// Run observes the Event Store and the rules provider and forwards statuses
// until ctx is done. Every subscription is released before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	ctx = logger.WithName(ctx, "engine")

	subCtx, cancel := context.WithCancel(ctx)

	var (
		wg      sync.WaitGroup
		changes = make(chan update)
	)

	e.subscribe(subCtx, &wg, changes)

	p := &pipeline{engine: e}

	defer func() {
		p.stopTimers()
		cancel()
		wg.Wait()
	}()

	logger.InfoKV(ctx, "Engine started", "debounce", e.debounce.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Engine stopped")
			return nil

		case apply := <-changes:
			apply(&p.in)
			p.touch(e.debounce)

		case <-p.debounceC:
			p.debounceC = nil
			p.evaluate(ctx)

		case <-p.expiryC:
			p.expiryC = nil
			p.expire(e.debounce)
		}
	}
}

// subscribe starts one forwarding goroutine per upstream stream.
func (e *Engine) subscribe(ctx context.Context, wg *sync.WaitGroup, changes chan<- update) {
	timeSlots := []struct {
		key    events.Key
		source source
		assign func(in *inputs, at time.Time)
	}{
		{events.KeyFirstMedicalConfirmation, sourceFirstMedicalConfirmation, func(in *inputs, at time.Time) {
			in.events.FirstMedicalConfirmation = at
		}},
		{events.KeyFirstSelfDiagnosis, sourceFirstSelfDiagnosis, func(*inputs, time.Time) {}},
		{events.KeyLastSelfDiagnosis, sourceLastSelfDiagnosis, func(in *inputs, at time.Time) {
			in.events.LastSelfDiagnosis = at
		}},
		{events.KeyLastRedContact, sourceLastRedContact, func(in *inputs, at time.Time) {
			in.events.LastRedContact = at
		}},
		{events.KeyLastYellowContact, sourceLastYellowContact, func(in *inputs, at time.Time) {
			in.events.LastYellowContact = at
		}},
		{events.KeyLastSelfMonitoringInstruction, sourceLastSelfMonitoring, func(in *inputs, at time.Time) {
			in.events.LastSelfMonitoringInstruction = at
		}},
	}

	for _, slot := range timeSlots {
		forward(ctx, wg, e.store.Time(slot.key).Observe(ctx), changes, func(in *inputs, at time.Time) {
			slot.assign(in, at)
			in.seen |= slot.source
		})
	}

	forward(ctx, wg, e.rules.Observe(ctx), changes, func(in *inputs, r quarantine.Rules) {
		in.rules = r
		in.seen |= sourceRules
	})
}

// forward relays every value of src into changes as a slot update.
func forward[T any](ctx context.Context, wg *sync.WaitGroup, src <-chan T, changes chan<- update, assign func(*inputs, T)) {
	wg.Add(1)

	go func() {
		defer wg.Done()

		for v := range src {
			select {
			case changes <- func(in *inputs) { assign(in, v) }:
			case <-ctx.Done():
				return
			}
		}
	}()
}

// touch restarts the debounce window once every source has reported.
func (p *pipeline) touch(window time.Duration) {
	if p.in.seen != allSources {
		return
	}

	if p.debounceTimer == nil {
		p.debounceTimer = time.NewTimer(window)
	} else {
		p.debounceTimer.Reset(window)
	}

	p.debounceC = p.debounceTimer.C
}

// expire re-evaluates a lapsed quarantine through the debounce window.
// An open window already ends in an evaluation that sees the lapse.
func (p *pipeline) expire(window time.Duration) {
	if p.debounceC != nil {
		return
	}

	p.touch(window)
}

// evaluate derives the status, detects a lapse, filters repeats and applies
// side effects for a new status.
func (p *pipeline) evaluate(ctx context.Context) {
	e := p.engine

	status := quarantine.DeriveAt(p.in.rules, p.in.events, time.Now(), e.reporter)
	metrics.DerivationsTotal.Inc()

	if p.hasForwarded && lapsed(p.forwarded, status) {
		e.raiseBanner(ctx)
	}

	if p.hasForwarded && p.forwarded.Equal(status) {
		p.armExpiry()
		return
	}

	previous := "none"
	if p.hasForwarded {
		previous = p.forwarded.String()
	}

	p.forwarded, p.hasForwarded = status, true

	e.applyReminders(ctx, status)
	e.statuses.Publish(status)

	metrics.StatusForwardedTotal.WithLabelValues(status.Kind.String()).Inc()
	logger.InfoKV(ctx, "Quarantine status changed", "from", previous, "to", status.String())

	p.armExpiry()
}

// lapsed reports a transition from a time-bounded quarantine to free.
func lapsed(previous, next quarantine.Status) bool {
	return previous.Kind == quarantine.KindJailedLimited && next.Kind == quarantine.KindFree
}

// armExpiry schedules a re-evaluation at the end of the forwarded quarantine.
func (p *pipeline) armExpiry() {
	if p.forwarded.Kind != quarantine.KindJailedLimited {
		p.stopExpiry()
		return
	}

	wait := time.Until(p.forwarded.End)

	if p.expiryTimer == nil {
		p.expiryTimer = time.NewTimer(wait)
	} else {
		p.expiryTimer.Reset(wait)
	}

	p.expiryC = p.expiryTimer.C
}

func (p *pipeline) stopExpiry() {
	if p.expiryTimer != nil {
		p.expiryTimer.Stop()
	}

	p.expiryC = nil
}

func (p *pipeline) stopTimers() {
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
	}

	p.debounceC = nil
	p.stopExpiry()
}

// raiseBanner sets the quarantine-end banner flag.
func (e *Engine) raiseBanner(ctx context.Context) {
	metrics.BannerRaisedTotal.Inc()
	logger.Info(ctx, "Quarantine lapsed, raising end banner")

	if err := e.SetQuarantineEndBanner(ctx, true); err != nil {
		logger.ErrorKV(ctx, "Failed to persist quarantine-end banner", "error", err)
	}
}
