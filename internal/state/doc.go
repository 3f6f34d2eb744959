// Package state holds the mutable app state (per-agent and shared
// namespaces) and the single addressing scheme every block uses to read
// and write it.
//
// AppState does no locking. The owner serializes mutating calls; stateless
// execution works on a Clone.
package state
