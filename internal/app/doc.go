// Package app provides DynamicApp, the per-definition facade the
// simulation layer calls, and Registry, an explicit collection of
// registered definitions.
//
// A DynamicApp owns one live AppState and a per-agent observation queue.
// Execute runs an action against that state; ExecuteStateless runs it
// against a deep copy of caller-supplied state and returns the copy,
// leaving both the caller's state and the app untouched.
//
// Every failure during a call (parameter validation, a failed Validate
// block, an Error block, an evaluation error, a resource limit) is
// reported as an ir.AppResult with Success false. Only snapshot restore
// and registration return Go errors.
package app
