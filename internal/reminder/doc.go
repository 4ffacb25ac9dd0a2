// Package reminder implements the reminder scheduler driven by the engine.
//
// Two reminders exist: a recurring self-retest reminder while quarantine is
// active and a one-shot reminder at the quarantine end. All operations are
// idempotent: ensuring an already armed reminder with the same target keeps
// the existing schedule.
package reminder
