package store

import (
	"errors"

	"github.com/roach88/appsim/internal/ir"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDefinitionConflict is returned by PutDefinition when the app id is
// already stored with different content.
var ErrDefinitionConflict = errors.New("app id already stored with a different definition")

// DefinitionRecord is a stored app definition.
type DefinitionRecord struct {
	AppID         string
	Hash          string
	Definition    *ir.AppDefinition
	EngineVersion string
	IRVersion     string
}

// Checkpoint is a stored state snapshot.
type Checkpoint struct {
	AppID string

	// Seq is the journal position the snapshot reflects: the number of
	// executions applied so far.
	Seq int64

	// Clock is the observation clock value, used to resume seq stamping.
	Clock int64

	// StateHash is computed from the snapshot when it is written.
	StateHash string

	Snapshot []byte
}

// ExecutionRecord is one journaled stateful call.
type ExecutionRecord struct {
	AppID        string
	Seq          int64 // assigned when journaled
	AgentID      string
	Action       string
	Params       ir.IRObject
	Result       ir.AppResult
	Observations []ir.Observation
	StateHash    string // state after the call
}
