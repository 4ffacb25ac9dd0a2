package quarantine

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultRedWarningQuarantineHours applies when no red contact duration is configured.
	DefaultRedWarningQuarantineHours = 336
	// DefaultYellowWarningQuarantineHours applies when no yellow contact duration is configured.
	DefaultYellowWarningQuarantineHours = 168
	// DefaultSelfDiagnosedQuarantineHours applies when no self-diagnosis duration is configured.
	DefaultSelfDiagnosedQuarantineHours = 168
)

var (
	// ErrNonPositiveHours is returned when a configured duration is zero or negative.
	ErrNonPositiveHours = errors.New("quarantine hours must be positive")
	// ErrUnknownKind is returned when a status kind name is not recognized.
	ErrUnknownKind = errors.New("unknown status kind")
)

// Rules holds the quarantine durations supplied by the configuration provider.
// A nil field means the value is absent and the documented default applies.
type Rules struct {
	// RedWarningQuarantineHours is the quarantine length after a red contact.
	RedWarningQuarantineHours *int `yaml:"red_warning_quarantine_hours,omitempty"`
	// YellowWarningQuarantineHours is the quarantine length after a yellow contact.
	YellowWarningQuarantineHours *int `yaml:"yellow_warning_quarantine_hours,omitempty"`
	// SelfDiagnosedQuarantineHours is the quarantine length after a self-diagnosis.
	SelfDiagnosedQuarantineHours *int `yaml:"self_diagnosed_quarantine_hours,omitempty"`
}

// Hours returns a pointer to h, for building Rules literals.
func Hours(h int) *int {
	return &h
}

// DefaultRules returns rules with every duration absent.
func DefaultRules() Rules {
	return Rules{}
}

// RedWarningQuarantine returns the effective red contact quarantine length.
func (r Rules) RedWarningQuarantine() time.Duration {
	return hoursOrDefault(r.RedWarningQuarantineHours, DefaultRedWarningQuarantineHours)
}

// YellowWarningQuarantine returns the effective yellow contact quarantine length.
func (r Rules) YellowWarningQuarantine() time.Duration {
	return hoursOrDefault(r.YellowWarningQuarantineHours, DefaultYellowWarningQuarantineHours)
}

// SelfDiagnosedQuarantine returns the effective self-diagnosis quarantine length.
func (r Rules) SelfDiagnosedQuarantine() time.Duration {
	return hoursOrDefault(r.SelfDiagnosedQuarantineHours, DefaultSelfDiagnosedQuarantineHours)
}

// Effective returns a copy with every absent value replaced by its default.
func (r Rules) Effective() Rules {
	return Rules{
		RedWarningQuarantineHours:    Hours(int(r.RedWarningQuarantine() / time.Hour)),
		YellowWarningQuarantineHours: Hours(int(r.YellowWarningQuarantine() / time.Hour)),
		SelfDiagnosedQuarantineHours: Hours(int(r.SelfDiagnosedQuarantine() / time.Hour)),
	}
}

// Validate rejects present but non-positive durations.
func (r Rules) Validate() error {
	fields := []struct {
		name  string
		value *int
	}{
		{"red_warning_quarantine_hours", r.RedWarningQuarantineHours},
		{"yellow_warning_quarantine_hours", r.YellowWarningQuarantineHours},
		{"self_diagnosed_quarantine_hours", r.SelfDiagnosedQuarantineHours},
	}

	for _, f := range fields {
		if f.value != nil && *f.value <= 0 {
			return fmt.Errorf("%s=%d: %w", f.name, *f.value, ErrNonPositiveHours)
		}
	}

	return nil
}

// Equal reports whether both rule sets carry the same present values.
func (r Rules) Equal(other Rules) bool {
	return equalHours(r.RedWarningQuarantineHours, other.RedWarningQuarantineHours) &&
		equalHours(r.YellowWarningQuarantineHours, other.YellowWarningQuarantineHours) &&
		equalHours(r.SelfDiagnosedQuarantineHours, other.SelfDiagnosedQuarantineHours)
}

// Clone returns a deep copy so callers cannot mutate shared values.
func (r Rules) Clone() Rules {
	return Rules{
		RedWarningQuarantineHours:    cloneHours(r.RedWarningQuarantineHours),
		YellowWarningQuarantineHours: cloneHours(r.YellowWarningQuarantineHours),
		SelfDiagnosedQuarantineHours: cloneHours(r.SelfDiagnosedQuarantineHours),
	}
}

func hoursOrDefault(h *int, fallback int) time.Duration {
	if h == nil {
		return time.Duration(fallback) * time.Hour
	}

	return time.Duration(*h) * time.Hour
}

func equalHours(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func cloneHours(h *int) *int {
	if h == nil {
		return nil
	}

	v := *h

	return &v
}
