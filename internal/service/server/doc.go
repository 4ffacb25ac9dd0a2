// Package server runs the quarantine-server process.
//
// It wires the Event Store, the rules provider, the reminder scheduler and
// the engine together, exposes them over gRPC and optionally serves metrics.
package server
