// Package config defines process settings used by the quarantine binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Config holds the gRPC address, the Event Store and rules file locations,
// the optional metrics listener and the timing knobs of the engine.
package config
