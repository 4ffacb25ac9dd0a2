// Package quarantine implements the gRPC transport for the quarantine engine.
//
// The service is registered by hand on well-known protobuf types: statuses
// and event requests travel as structpb.Struct documents, the banner flag as
// a wrapperspb.BoolValue. The package also ships the matching low-level client.
package quarantine
