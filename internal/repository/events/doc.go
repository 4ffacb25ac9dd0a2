// Package events implements the Event Store: independently addressable,
// persisted timestamp and flag fields with get/set/clear/observe accessors.
//
// The Store keeps values in memory and writes every change through to a
// Repository. FileRepository persists a Snapshot as a JSON document on disk.
package events
