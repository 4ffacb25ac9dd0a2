// Package client implements the quarantine-ctl operations.
//
// Each operation connects to the quarantine server, performs one request
// (or follows the status stream) and prints a human-readable result.
package client
