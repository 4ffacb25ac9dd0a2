// Package rules is the configuration provider of the quarantine engine.
//
// A Holder keeps the current quarantine Rules and streams every change to
// its observers. Rules can be loaded from a YAML file, and a Watcher
// reloads that file when it changes on disk.
package rules
