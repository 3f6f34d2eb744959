package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
)

// PutDefinition stores an app definition keyed by its app id and returns
// the definition hash.
// Storing the same content twice is a no-op. Storing different content
// under an existing app id returns ErrDefinitionConflict.
func (s *Store) PutDefinition(ctx context.Context, def *ir.AppDefinition) (string, error) {
	if def == nil {
		return "", fmt.Errorf("put definition: nil definition")
	}
	hash, err := ir.DefinitionHash(def)
	if err != nil {
		return "", fmt.Errorf("put definition: %w", err)
	}
	obj, err := def.ToObject()
	if err != nil {
		return "", fmt.Errorf("put definition: %w", err)
	}
	defJSON, err := marshalObject(obj)
	if err != nil {
		return "", fmt.Errorf("put definition: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("put definition: begin: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT definition_hash FROM app_definitions WHERE app_id = ?`, def.AppID,
	).Scan(&existing)
	switch {
	case err == nil:
		if existing != hash {
			return "", fmt.Errorf("put definition %q: %w", def.AppID, ErrDefinitionConflict)
		}
		return hash, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("put definition: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO app_definitions
		(app_id, definition_hash, definition, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?)
	`,
		def.AppID,
		hash,
		defJSON,
		ir.EngineVersion,
		ir.SchemaVersion,
	)
	if err != nil {
		return "", fmt.Errorf("put definition: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("put definition: commit: %w", err)
	}
	return hash, nil
}

// WriteCheckpoint stores a state snapshot. The snapshot must restore
// cleanly; its state hash is computed here and returned.
func (s *Store) WriteCheckpoint(ctx context.Context, cp Checkpoint) (string, error) {
	hash, err := snapshotHash(cp.Snapshot)
	if err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	cp.StateHash = hash

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write checkpoint: begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertCheckpoint(ctx, tx, cp); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write checkpoint: commit: %w", err)
	}
	return hash, nil
}

// AppendExecution journals one stateful call and returns its sequence
// number. Sequence numbers start at 1 and are dense per app.
//
// Note: The app definition must already be stored (foreign key constraint).
func (s *Store) AppendExecution(ctx context.Context, rec ExecutionRecord) (int64, error) {
	row, err := encodeExecution(rec)
	if err != nil {
		return 0, fmt.Errorf("append execution: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append execution: begin: %w", err)
	}
	defer tx.Rollback()

	seq, err := insertExecution(ctx, tx, row)
	if err != nil {
		return 0, fmt.Errorf("append execution: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append execution: commit: %w", err)
	}
	return seq, nil
}

// EnqueueObservations stores observations for later delivery.
// All rows are written in one transaction.
func (s *Store) EnqueueObservations(ctx context.Context, appID string, obs []ir.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("enqueue observations: begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertObservations(ctx, tx, appID, obs); err != nil {
		return fmt.Errorf("enqueue observations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("enqueue observations: commit: %w", err)
	}
	return nil
}

// RecordInvocation persists one stateful call: the journal entry, the
// observations it queued (rec.Observations) and the checkpoint taken after
// it. Either all three are written or none is. The checkpoint's app id and
// seq are taken from rec and the assigned sequence number, and the state
// hash computed from cp.Snapshot is stored on both rows.
func (s *Store) RecordInvocation(ctx context.Context, rec ExecutionRecord, cp Checkpoint) (Checkpoint, error) {
	hash, err := snapshotHash(cp.Snapshot)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("record invocation: %w", err)
	}
	rec.StateHash = hash
	row, err := encodeExecution(rec)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("record invocation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("record invocation: begin: %w", err)
	}
	defer tx.Rollback()

	seq, err := insertExecution(ctx, tx, row)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("record invocation: %w", err)
	}
	if err := insertObservations(ctx, tx, rec.AppID, rec.Observations); err != nil {
		return Checkpoint{}, fmt.Errorf("record invocation: %w", err)
	}
	cp.AppID = rec.AppID
	cp.Seq = seq
	cp.StateHash = hash
	if err := insertCheckpoint(ctx, tx, cp); err != nil {
		return Checkpoint{}, fmt.Errorf("record invocation: checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Checkpoint{}, fmt.Errorf("record invocation: commit: %w", err)
	}
	return cp, nil
}

// snapshotHash checks that a snapshot restores and returns its state hash.
func snapshotHash(snapshot []byte) (string, error) {
	st, err := state.Restore(snapshot)
	if err != nil {
		return "", err
	}
	return st.Hash()
}

// executionRow is an ExecutionRecord with its JSON columns encoded.
type executionRow struct {
	rec                        ExecutionRecord
	params, result, observations string
}

func encodeExecution(rec ExecutionRecord) (executionRow, error) {
	row := executionRow{rec: rec}
	var err error
	if row.params, err = marshalObject(rec.Params); err != nil {
		return row, err
	}
	if row.result, err = marshalResult(rec.Result); err != nil {
		return row, err
	}
	if row.observations, err = marshalObservations(rec.Observations); err != nil {
		return row, err
	}
	return row, nil
}

// insertExecution assigns the next dense seq for the app and inserts the row.
func insertExecution(ctx context.Context, tx *sql.Tx, row executionRow) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM execution_log WHERE app_id = ?`, row.rec.AppID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}

	success := 0
	if row.rec.Result.Success {
		success = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO execution_log
		(app_id, seq, agent_id, action, params, success, outcome, result, observations, state_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.rec.AppID,
		seq,
		row.rec.AgentID,
		row.rec.Action,
		row.params,
		success,
		row.rec.Result.Outcome(),
		row.result,
		row.observations,
		row.rec.StateHash,
	)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func insertCheckpoint(ctx context.Context, tx *sql.Tx, cp Checkpoint) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO state_checkpoints
		(app_id, seq, clock, state_hash, snapshot)
		VALUES (?, ?, ?, ?, ?)
	`,
		cp.AppID,
		cp.Seq,
		cp.Clock,
		cp.StateHash,
		string(cp.Snapshot),
	)
	return err
}

func insertObservations(ctx context.Context, tx *sql.Tx, appID string, obs []ir.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pending_observations
		(app_id, agent_id, seq, message, data, priority)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range obs {
		dataJSON, err := marshalObject(o.Data)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, appID, o.ToAgent, o.Seq, o.Message, dataJSON, string(o.Priority)); err != nil {
			return err
		}
	}
	return nil
}
