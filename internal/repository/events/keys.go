package events

import (
	"errors"
	"time"
)

// Key names one Event Store field.
type Key string

// Timestamp fields.
const (
	KeyFirstMedicalConfirmation      Key = "first_medical_confirmation"
	KeyFirstSelfDiagnosis            Key = "first_self_diagnosis"
	KeyLastSelfDiagnosis             Key = "last_self_diagnosis"
	KeyLastRedContact                Key = "last_red_contact"
	KeyLastYellowContact             Key = "last_yellow_contact"
	KeyLastSelfMonitoringInstruction Key = "last_self_monitoring_instruction"
)

// Flag fields.
const (
	KeyShowQuarantineEndBanner Key = "show_quarantine_end_banner"
)

var (
	// ErrNotFound is returned when no persisted snapshot exists yet.
	ErrNotFound = errors.New("event store not found")
	// ErrUnknownKey is returned for keys that are not part of the store.
	ErrUnknownKey = errors.New("unknown event store key")
)

// TimeKeys lists every timestamp field in a stable order.
func TimeKeys() []Key {
	return []Key{
		KeyFirstMedicalConfirmation,
		KeyFirstSelfDiagnosis,
		KeyLastSelfDiagnosis,
		KeyLastRedContact,
		KeyLastYellowContact,
		KeyLastSelfMonitoringInstruction,
	}
}

// FlagKeys lists every boolean field.
func FlagKeys() []Key {
	return []Key{KeyShowQuarantineEndBanner}
}

// IsTimeKey reports whether k names a timestamp field.
func IsTimeKey(k Key) bool {
	for _, known := range TimeKeys() {
		if k == known {
			return true
		}
	}

	return false
}

// IsFlagKey reports whether k names a boolean field.
func IsFlagKey(k Key) bool {
	return k == KeyShowQuarantineEndBanner
}

// Snapshot is the persisted form of the store.
// Absent timestamps are simply missing from Times; absent flags read as false.
type Snapshot struct {
	// Times holds the present timestamp fields, in UTC.
	Times map[Key]time.Time
	// Flags holds the boolean fields.
	Flags map[Key]bool
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Times: make(map[Key]time.Time),
		Flags: make(map[Key]bool),
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	cloned := NewSnapshot()

	for k, v := range s.Times {
		cloned.Times[k] = v
	}

	for k, v := range s.Flags {
		cloned.Flags[k] = v
	}

	return cloned
}
