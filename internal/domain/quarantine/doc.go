// Package quarantine contains the core domain types of the quarantine engine.
//
// It defines Status (the derived quarantine verdict), Rules (remotely
// configured quarantine durations with documented defaults), Events (the
// recorded health event timestamps) and the pure Derive function that turns
// rules and events into a Status.
package quarantine
