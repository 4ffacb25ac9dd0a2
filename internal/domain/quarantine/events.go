package quarantine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Severity is the risk level of an exposure contact notification.
type Severity int

const (
	// SeverityYellow is a low-risk contact.
	SeverityYellow Severity = iota + 1
	// SeverityRed is a high-risk contact.
	SeverityRed
)

// ErrUnknownSeverity is returned for contact severities other than red and yellow.
var ErrUnknownSeverity = errors.New("unknown contact severity")

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityRed:
		return "red"
	case SeverityYellow:
		return "yellow"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts "red" or "yellow" into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return SeverityRed, nil
	case "yellow":
		return SeverityYellow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
	}
}

// Events is the subset of recorded event timestamps that drives derivation.
// A zero time means the event was never recorded (or was revoked).
type Events struct {
	// FirstMedicalConfirmation is when the user was first confirmed positive.
	FirstMedicalConfirmation time.Time
	// LastSelfDiagnosis is the most recent self-reported diagnosis.
	LastSelfDiagnosis time.Time
	// LastRedContact is the most recent high-risk contact notification.
	LastRedContact time.Time
	// LastYellowContact is the most recent low-risk contact notification.
	LastYellowContact time.Time
	// LastSelfMonitoringInstruction is the most recent self-monitoring instruction.
	LastSelfMonitoringInstruction time.Time
}
