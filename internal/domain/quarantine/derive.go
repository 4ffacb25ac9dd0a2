package quarantine

import "time"

// AnomalyMissingEnd is the diagnostic category reported when quarantine
// triggers are present but no end time could be computed.
const AnomalyMissingEnd = "quarantine_end_missing"

// Reporter accepts non-fatal anomaly reports.
type Reporter interface {
	Report(category, message string)
}

// Derive maps rules and events to a quarantine status.
//
// Rules are applied by severity, first match wins: a medical confirmation
// jails forever; any contact or self-diagnosis jails until the latest of
// their end times; a self-monitoring instruction frees with monitoring;
// otherwise the user is free. reporter may be nil.
func Derive(rules Rules, events Events, reporter Reporter) Status {
	if !events.FirstMedicalConfirmation.IsZero() {
		return JailedForever()
	}

	hasContact := !events.LastRedContact.IsZero() || !events.LastYellowContact.IsZero()
	hasSelfDiagnosis := !events.LastSelfDiagnosis.IsZero()

	if hasContact || hasSelfDiagnosis {
		end, ok := quarantineEnd(rules, events)
		if !ok {
			if reporter != nil {
				reporter.Report(AnomalyMissingEnd, "quarantine triggers present but no end time computable")
			}

			return Free(false)
		}

		return JailedLimited(end, hasContact && !hasSelfDiagnosis)
	}

	return Free(!events.LastSelfMonitoringInstruction.IsZero())
}

// DeriveAt is Derive evaluated at the instant now: a time-bounded quarantine
// whose end is not after now has lapsed, and the remaining lower-severity
// rules decide the status.
func DeriveAt(rules Rules, events Events, now time.Time, reporter Reporter) Status {
	status := Derive(rules, events, reporter)
	if status.Kind == KindJailedLimited && !now.Before(status.End) {
		return Free(!events.LastSelfMonitoringInstruction.IsZero())
	}

	return status
}

// quarantineEnd returns the latest end among the present triggers.
func quarantineEnd(rules Rules, events Events) (time.Time, bool) {
	candidates := [...]struct {
		at     time.Time
		length time.Duration
	}{
		{events.LastRedContact, rules.RedWarningQuarantine()},
		{events.LastYellowContact, rules.YellowWarningQuarantine()},
		{events.LastSelfDiagnosis, rules.SelfDiagnosedQuarantine()},
	}

	var (
		end   time.Time
		found bool
	)

	for _, c := range candidates {
		if c.at.IsZero() {
			continue
		}

		if candidate := c.at.Add(c.length); !found || candidate.After(end) {
			end, found = candidate, true
		}
	}

	return end, found
}
