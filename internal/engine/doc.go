// Package engine implements the block interpreter for app actions.
//
// ARCHITECTURE:
//
// Compile once, run many:
// Compile turns an action's ir.LogicBlock tree into a Program whose
// expressions, templates and update targets are already parsed. Static
// problems (syntax errors, unknown roots, malformed targets) are reported
// at compile time, so registration can reject a definition before any
// agent calls it.
//
// Execution:
// Engine.Run executes a Program against an ExecutionContext. Blocks run in
// order; Validate, Return and Error are terminal, Branch and Loop recurse
// into their child lists. The first terminal result propagates straight up
// through every enclosing list.
//
// Resource limits:
// Every entry into a nested list adds one to the context depth, and every
// loop pass counts against a budget shared by the whole call. Exceeding
// either limit ends the call with a resource-limit result. These limits are
// the only cancellation mechanism; there is no timeout inside Run.
//
// Failure policy:
// Run never returns a Go error and never panics. Every failure, including
// evaluation errors and unexpected panics, becomes an ir.AppResult with
// Success=false and an ErrorKind for logging.
//
// Concurrency:
// A Program is immutable and safe to share. An ExecutionContext, and the
// AppState it points to, belongs to one call at a time.
package engine
