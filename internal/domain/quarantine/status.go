package quarantine

import (
	"fmt"
	"time"
)

// Kind tags the shape of a Status.
type Kind int

const (
	// KindFree means the user is not quarantined.
	KindFree Kind = iota
	// KindJailedLimited means the user is quarantined until a known instant.
	KindJailedLimited
	// KindJailedForever means the quarantine has no end (medical confirmation).
	KindJailedForever
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFree:
		return "free"
	case KindJailedLimited:
		return "jailed_limited"
	case KindJailedForever:
		return "jailed_forever"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a wire name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "free":
		return KindFree, nil
	case "jailed_limited":
		return KindJailedLimited, nil
	case "jailed_forever":
		return KindJailedForever, nil
	default:
		return KindFree, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Status is the derived quarantine verdict.
// Only the payload fields belonging to Kind are meaningful; use the
// constructors to build values so that unrelated fields stay zero.
type Status struct {
	// Kind selects which of the payload fields below apply.
	Kind Kind
	// End is the instant the quarantine ends (KindJailedLimited only).
	End time.Time
	// ByContact is true when an exposure contact rather than a
	// self-diagnosis binds the quarantine (KindJailedLimited only).
	ByContact bool
	// SelfMonitoring reports an active self-monitoring instruction (KindFree only).
	SelfMonitoring bool
}

// JailedForever builds an unbounded quarantine status.
func JailedForever() Status {
	return Status{Kind: KindJailedForever}
}

// JailedLimited builds a quarantine status ending at end.
func JailedLimited(end time.Time, byContact bool) Status {
	return Status{
		Kind:      KindJailedLimited,
		End:       end.UTC(),
		ByContact: byContact,
	}
}

// Free builds a non-quarantined status.
func Free(selfMonitoring bool) Status {
	return Status{
		Kind:           KindFree,
		SelfMonitoring: selfMonitoring,
	}
}

// Equal compares two statuses structurally: the tag and the payload of that tag.
// End instants are compared in absolute time, ignoring location.
func (s Status) Equal(other Status) bool {
	if s.Kind != other.Kind {
		return false
	}

	switch s.Kind {
	case KindJailedLimited:
		return s.End.Equal(other.End) && s.ByContact == other.ByContact
	case KindFree:
		return s.SelfMonitoring == other.SelfMonitoring
	default:
		return true
	}
}

// IsQuarantined reports whether the status restricts the user.
func (s Status) IsQuarantined() bool {
	return s.Kind == KindJailedLimited || s.Kind == KindJailedForever
}

// String renders the status for logs and CLI output.
func (s Status) String() string {
	switch s.Kind {
	case KindJailedLimited:
		return fmt.Sprintf("%s(end=%s, by_contact=%t)", s.Kind, s.End.Format(time.RFC3339), s.ByContact)
	case KindFree:
		return fmt.Sprintf("%s(self_monitoring=%t)", s.Kind, s.SelfMonitoring)
	default:
		return s.Kind.String()
	}
}
