// Package app loads configuration and wires chatcore's dependencies.
//
// Config comes from a YAML file with environment overrides applied on top.
// NewWire builds the client-side graph (local storage, account, relay
// client, key cache and services) and NewRelayServer builds the relay over
// the configured backend.
package app
