package engine

import (
	"context"

	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
)

// applyReminders maps a forwarded status onto the reminder scheduler.
//
//	JailedLimited        ensure self-retest, ensure end reminder at End
//	JailedForever        ensure self-retest, cancel end reminder
//	Free, monitoring     keep self-retest as is, cancel end reminder
//	Free                 cancel both
func (e *Engine) applyReminders(ctx context.Context, status quarantine.Status) {
	switch status.Kind {
	case quarantine.KindJailedLimited:
		e.scheduler.EnsureSelfRetestReminder(ctx)
		e.scheduler.EnsureQuarantineEndReminder(ctx, status.End)
	case quarantine.KindJailedForever:
		e.scheduler.EnsureSelfRetestReminder(ctx)
		e.scheduler.CancelQuarantineEndReminder(ctx)
	case quarantine.KindFree:
		if !status.SelfMonitoring {
			e.scheduler.CancelSelfRetestReminder(ctx)
		}

		e.scheduler.CancelQuarantineEndReminder(ctx)
	}
}
