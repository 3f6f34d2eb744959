package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/queryir"
)

// GetDefinition returns the stored definition for an app id.
// Returns ErrNotFound if the app id has never been stored.
func (s *Store) GetDefinition(ctx context.Context, appID string) (DefinitionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT app_id, definition_hash, definition, engine_version, ir_version
		FROM app_definitions
		WHERE app_id = ?
	`, appID)

	rec, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DefinitionRecord{}, fmt.Errorf("get definition %q: %w", appID, ErrNotFound)
	}
	if err != nil {
		return DefinitionRecord{}, fmt.Errorf("get definition %q: %w", appID, err)
	}
	return rec, nil
}

// ListDefinitions returns every stored definition ordered by app id.
func (s *Store) ListDefinitions(ctx context.Context) ([]DefinitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT app_id, definition_hash, definition, engine_version, ir_version
		FROM app_definitions
		ORDER BY app_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	recs := []DefinitionRecord{}
	for rows.Next() {
		rec, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return recs, nil
}

// LatestCheckpoint returns the checkpoint with the highest seq for an app.
// Ties are broken by insertion order. Returns ErrNotFound if none exist.
func (s *Store) LatestCheckpoint(ctx context.Context, appID string) (Checkpoint, error) {
	var (
		cp       Checkpoint
		snapshot string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT app_id, seq, clock, state_hash, snapshot
		FROM state_checkpoints
		WHERE app_id = ?
		ORDER BY seq DESC, id DESC
		LIMIT 1
	`, appID).Scan(&cp.AppID, &cp.Seq, &cp.Clock, &cp.StateHash, &snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("latest checkpoint %q: %w", appID, ErrNotFound)
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("latest checkpoint %q: %w", appID, err)
	}
	cp.Snapshot = []byte(snapshot)
	return cp, nil
}

// ReadExecutions returns the journal for an app with seq greater than
// afterSeq, in seq order.
func (s *Store) ReadExecutions(ctx context.Context, appID string, afterSeq int64) ([]ExecutionRecord, error) {
	return s.QueryExecutions(ctx, appID, AfterSeq(afterSeq))
}

// QueryExecutions returns the journal entries of an app that match
// filter, in seq order. A nil filter returns the whole journal.
func (s *Store) QueryExecutions(ctx context.Context, appID string, filter queryir.Predicate) ([]ExecutionRecord, error) {
	query, args, err := s.compiler.Compile(queryir.Select{
		From:    executionTable,
		Columns: executionColumns,
		Filter:  queryir.All(queryir.Equals{Field: "app_id", Value: ir.IRString(appID)}, filter),
		OrderBy: []string{"seq"},
	})
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	recs := []ExecutionRecord{}
	for rows.Next() {
		var (
			rec                                  ExecutionRecord
			paramsJSON, outcome, resultJSON, obs string
		)
		if err := rows.Scan(&rec.AppID, &rec.Seq, &rec.AgentID, &rec.Action,
			&paramsJSON, &outcome, &resultJSON, &obs, &rec.StateHash); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if rec.Params, err = unmarshalObject(paramsJSON); err != nil {
			return nil, fmt.Errorf("execution %d: %w", rec.Seq, err)
		}
		if rec.Result, err = unmarshalResult(resultJSON, outcome); err != nil {
			return nil, fmt.Errorf("execution %d: %w", rec.Seq, err)
		}
		if rec.Observations, err = unmarshalObservations(obs); err != nil {
			return nil, fmt.Errorf("execution %d: %w", rec.Seq, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return recs, nil
}

// DrainObservations removes and returns pending observations for one
// agent, ordered by seq. Delivery is at-most-once.
func (s *Store) DrainObservations(ctx context.Context, appID, agentID string) ([]ir.Observation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("drain observations: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT agent_id, seq, message, data, priority
		FROM pending_observations
		WHERE app_id = ? AND agent_id = ?
		ORDER BY seq ASC, id ASC
	`, appID, agentID)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}

	obs := []ir.Observation{}
	for rows.Next() {
		var (
			o                  ir.Observation
			dataJSON, priority string
		)
		if err := rows.Scan(&o.ToAgent, &o.Seq, &o.Message, &dataJSON, &priority); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if o.Data, err = unmarshalObject(dataJSON); err != nil {
			rows.Close()
			return nil, err
		}
		o.Priority = ir.Priority(priority)
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_observations WHERE app_id = ? AND agent_id = ?`, appID, agentID,
	); err != nil {
		return nil, fmt.Errorf("drain observations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("drain observations: commit: %w", err)
	}
	return obs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (DefinitionRecord, error) {
	var (
		rec     DefinitionRecord
		defJSON string
	)
	if err := row.Scan(&rec.AppID, &rec.Hash, &defJSON, &rec.EngineVersion, &rec.IRVersion); err != nil {
		return DefinitionRecord{}, err
	}
	def, err := ir.ParseAppDefinition([]byte(defJSON))
	if err != nil {
		return DefinitionRecord{}, fmt.Errorf("definition %q: %w", rec.AppID, err)
	}
	rec.Definition = def
	return rec, nil
}
