package quarantine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/quarantine-engine/internal/domain/quarantine"
)

// Event names a recordable event category on the wire.
type Event string

const (
	// EventMedical is a medical confirmation of infection.
	EventMedical Event = "medical"
	// EventSelfDiagnosis is a self-reported diagnosis.
	EventSelfDiagnosis Event = "self_diagnosis"
	// EventContact is an exposure contact notification; it carries a severity.
	EventContact Event = "contact"
	// EventSelfMonitoring is a self-monitoring instruction.
	EventSelfMonitoring Event = "self_monitoring"
)

// Document field names.
const (
	fieldKind           = "kind"
	fieldEnd            = "end"
	fieldByContact      = "by_contact"
	fieldSelfMonitoring = "self_monitoring"
	fieldEvent          = "event"
	fieldSeverity       = "severity"
	fieldAt             = "at"
)

var (
	// ErrUnknownEvent is returned for event names outside the known set.
	ErrUnknownEvent = errors.New("unknown event")
	// errMissingField is returned when a required document field is absent.
	errMissingField = errors.New("missing field")
)

// ParseEvent converts an event name; dashes are accepted in place of underscores.
func ParseEvent(s string) (Event, error) {
	event := Event(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))

	switch event {
	case EventMedical, EventSelfDiagnosis, EventContact, EventSelfMonitoring:
		return event, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
}

// EventRequest is the payload of RecordEvent and RevokeEvent.
type EventRequest struct {
	// Event selects the affected event field.
	Event Event
	// Severity is required for EventContact only.
	Severity domain.Severity
	// At is the event instant; zero lets the server use its clock.
	At time.Time
}

// ToStruct encodes the request as a wire document.
func (r EventRequest) ToStruct() *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldEvent: structpb.NewStringValue(string(r.Event)),
	}

	if r.Event == EventContact {
		fields[fieldSeverity] = structpb.NewStringValue(r.Severity.String())
	}

	if !r.At.IsZero() {
		fields[fieldAt] = structpb.NewStringValue(r.At.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// EventRequestFromStruct decodes and validates a wire document.
func EventRequestFromStruct(document *structpb.Struct) (EventRequest, error) {
	var request EventRequest

	name, ok := stringField(document, fieldEvent)
	if !ok {
		return request, fmt.Errorf("%w: %s", errMissingField, fieldEvent)
	}

	event, err := ParseEvent(name)
	if err != nil {
		return request, err
	}

	request.Event = event

	if event == EventContact {
		severity, ok := stringField(document, fieldSeverity)
		if !ok {
			return request, fmt.Errorf("%w: %s", errMissingField, fieldSeverity)
		}

		if request.Severity, err = domain.ParseSeverity(severity); err != nil {
			return request, err
		}
	}

	if at, ok := stringField(document, fieldAt); ok {
		if request.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return request, fmt.Errorf("parse %s: %w", fieldAt, err)
		}
	}

	return request, nil
}

// StatusToStruct encodes a status; only the fields of its kind are written.
func StatusToStruct(status domain.Status) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldKind: structpb.NewStringValue(status.Kind.String()),
	}

	switch status.Kind {
	case domain.KindJailedLimited:
		fields[fieldEnd] = structpb.NewStringValue(status.End.UTC().Format(time.RFC3339Nano))
		fields[fieldByContact] = structpb.NewBoolValue(status.ByContact)
	case domain.KindFree:
		fields[fieldSelfMonitoring] = structpb.NewBoolValue(status.SelfMonitoring)
	case domain.KindJailedForever:
	}

	return &structpb.Struct{Fields: fields}
}

// StatusFromStruct decodes a status document.
func StatusFromStruct(document *structpb.Struct) (domain.Status, error) {
	name, ok := stringField(document, fieldKind)
	if !ok {
		return domain.Status{}, fmt.Errorf("%w: %s", errMissingField, fieldKind)
	}

	kind, err := domain.ParseKind(name)
	if err != nil {
		return domain.Status{}, err
	}

	switch kind {
	case domain.KindJailedForever:
		return domain.JailedForever(), nil
	case domain.KindJailedLimited:
		raw, ok := stringField(document, fieldEnd)
		if !ok {
			return domain.Status{}, fmt.Errorf("%w: %s", errMissingField, fieldEnd)
		}

		end, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.Status{}, fmt.Errorf("parse %s: %w", fieldEnd, err)
		}

		return domain.JailedLimited(end, boolField(document, fieldByContact)), nil
	default:
		return domain.Free(boolField(document, fieldSelfMonitoring)), nil
	}
}

func stringField(document *structpb.Struct, name string) (string, bool) {
	value, ok := document.GetFields()[name]
	if !ok {
		return "", false
	}

	s, ok := value.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", false
	}

	return s.StringValue, true
}

func boolField(document *structpb.Struct, name string) bool {
	return document.GetFields()[name].GetBoolValue()
}
