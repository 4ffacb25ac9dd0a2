// Package engine implements the reactive aggregator of the quarantine engine.
//
// The Engine observes the Event Store and the rules provider, waits for
// bursts of updates to settle, derives the quarantine status, forwards only
// distinct statuses and drives the reminder scheduler from them. A lapse
// from a time-bounded quarantine to free raises the quarantine-end banner.
// All side effects run on the single goroutine executing Run.
package engine
