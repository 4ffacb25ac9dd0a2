package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/quarantine-engine/internal/logger"
	"github.com/oshokin/quarantine-engine/internal/metrics"
)

// Kind identifies one of the two reminders.
type Kind string

const (
	// KindSelfRetest is the recurring self-retest reminder.
	KindSelfRetest Kind = "self_retest"
	// KindQuarantineEnd is the one-shot quarantine-end reminder.
	KindQuarantineEnd Kind = "quarantine_end"
)

// DefaultSelfRetestInterval is how often the self-retest reminder fires.
const DefaultSelfRetestInterval = 6 * time.Hour

// Scheduler is the boundary the engine drives on every forwarded status.
type Scheduler interface {
	EnsureSelfRetestReminder(ctx context.Context)
	CancelSelfRetestReminder(ctx context.Context)
	EnsureQuarantineEndReminder(ctx context.Context, at time.Time)
	CancelQuarantineEndReminder(ctx context.Context)
}

// Reminder is a fired reminder handed to the Notifier.
type Reminder struct {
	// Kind is which reminder fired.
	Kind Kind
	// At is the instant the reminder was due.
	At time.Time
}

// Notifier delivers fired reminders to the user.
type Notifier interface {
	Notify(ctx context.Context, r Reminder)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, r Reminder)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, r Reminder) {
	f(ctx, r)
}

// LogNotifier delivers reminders as log lines.
type LogNotifier struct{}

// Notify logs the reminder.
func (LogNotifier) Notify(ctx context.Context, r Reminder) {
	logger.InfoKV(ctx, "Reminder due", "reminder", r.Kind, "at", r.At.Format(time.RFC3339))
}

// TimerScheduler is an in-process Scheduler backed by runtime timers.
type TimerScheduler struct {
	// ctx carries the logger used from timer callbacks.
	ctx context.Context
	// notifier receives fired reminders.
	notifier Notifier
	// interval is the self-retest period.
	interval time.Duration

	// mu protects the timer state below.
	mu sync.Mutex
	// retest is the pending self-retest timer, nil when canceled.
	retest *time.Timer
	// retestGen invalidates callbacks of replaced or canceled retest timers.
	retestGen uint64
	// end is the pending quarantine-end timer, nil when canceled or fired.
	end *time.Timer
	// endAt is the target of the pending quarantine-end timer.
	endAt time.Time
	// endGen invalidates callbacks of replaced or canceled end timers.
	endGen uint64
	// closed stops all further arming.
	closed bool
}

// Option configures a TimerScheduler.
type Option func(*TimerScheduler)

// WithSelfRetestInterval overrides the self-retest period.
func WithSelfRetestInterval(interval time.Duration) Option {
	return func(s *TimerScheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// NewTimerScheduler creates a scheduler delivering to notifier.
// A nil notifier logs reminders.
func NewTimerScheduler(ctx context.Context, notifier Notifier, opts ...Option) *TimerScheduler {
	if notifier == nil {
		notifier = LogNotifier{}
	}

	s := &TimerScheduler{
		ctx:      logger.WithName(ctx, "reminder"),
		notifier: notifier,
		interval: DefaultSelfRetestInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// EnsureSelfRetestReminder arms the recurring reminder unless it is already armed.
func (s *TimerScheduler) EnsureSelfRetestReminder(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.retest != nil {
		metrics.ReminderOperationsTotal.WithLabelValues(string(KindSelfRetest), "kept").Inc()
		return
	}

	s.armRetestLocked()
	metrics.ReminderOperationsTotal.WithLabelValues(string(KindSelfRetest), "armed").Inc()
	logger.InfoKV(ctx, "Self-retest reminder armed", "interval", s.interval.String())
}

// CancelSelfRetestReminder stops the recurring reminder.
func (s *TimerScheduler) CancelSelfRetestReminder(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retest == nil {
		return
	}

	s.retest.Stop()
	s.retest = nil
	s.retestGen++

	metrics.ReminderOperationsTotal.WithLabelValues(string(KindSelfRetest), "canceled").Inc()
	logger.Info(ctx, "Self-retest reminder canceled")
}

// EnsureQuarantineEndReminder arms the one-shot reminder at at.
// An already armed reminder for the same instant is kept; a different
// instant replaces it. A past instant fires right away.
func (s *TimerScheduler) EnsureQuarantineEndReminder(ctx context.Context, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.end != nil && s.endAt.Equal(at) {
		metrics.ReminderOperationsTotal.WithLabelValues(string(KindQuarantineEnd), "kept").Inc()
		return
	}

	if s.end != nil {
		s.end.Stop()
	}

	s.endGen++
	generation := s.endGen
	s.endAt = at
	s.end = time.AfterFunc(time.Until(at), func() {
		s.fireEnd(generation, at)
	})

	metrics.ReminderOperationsTotal.WithLabelValues(string(KindQuarantineEnd), "armed").Inc()
	logger.InfoKV(ctx, "Quarantine-end reminder armed", "at", at.Format(time.RFC3339))
}

// CancelQuarantineEndReminder stops the one-shot reminder.
func (s *TimerScheduler) CancelQuarantineEndReminder(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.end == nil {
		return
	}

	s.end.Stop()
	s.end = nil
	s.endAt = time.Time{}
	s.endGen++

	metrics.ReminderOperationsTotal.WithLabelValues(string(KindQuarantineEnd), "canceled").Inc()
	logger.Info(ctx, "Quarantine-end reminder canceled")
}

// Pending reports which reminders are currently armed.
func (s *TimerScheduler) Pending() (selfRetest bool, quarantineEnd time.Time, hasEnd bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retest != nil, s.endAt, s.end != nil
}

// Close stops every timer; later ensure calls are ignored.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.retestGen++
	s.endGen++

	if s.retest != nil {
		s.retest.Stop()
		s.retest = nil
	}

	if s.end != nil {
		s.end.Stop()
		s.end = nil
	}
}

// armRetestLocked schedules the next self-retest firing one interval from now.
func (s *TimerScheduler) armRetestLocked() {
	s.retestGen++
	generation := s.retestGen

	s.retest = time.AfterFunc(s.interval, func() {
		s.fireRetest(generation)
	})
}

func (s *TimerScheduler) fireRetest(generation uint64) {
	s.mu.Lock()

	if s.closed || s.retest == nil || s.retestGen != generation {
		s.mu.Unlock()
		return
	}

	s.armRetestLocked()
	s.mu.Unlock()

	metrics.ReminderOperationsTotal.WithLabelValues(string(KindSelfRetest), "fired").Inc()
	s.notifier.Notify(s.ctx, Reminder{Kind: KindSelfRetest, At: time.Now()})
}

func (s *TimerScheduler) fireEnd(generation uint64, at time.Time) {
	s.mu.Lock()

	if s.closed || s.end == nil || s.endGen != generation {
		s.mu.Unlock()
		return
	}

	s.end = nil
	s.endAt = time.Time{}
	s.mu.Unlock()

	metrics.ReminderOperationsTotal.WithLabelValues(string(KindQuarantineEnd), "fired").Inc()
	s.notifier.Notify(s.ctx, Reminder{Kind: KindQuarantineEnd, At: at})
}
