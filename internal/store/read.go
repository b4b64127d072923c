package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns one run.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `SELECT id, seq, label FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.Seq, &r.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return r, nil
}

// ReadRuns returns every run, ordered by id. UUIDv7 ids sort by creation
// time.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, label FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Seq, &r.Label); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadFactEvents returns the fact events of a run in seq order.
// Returns an empty slice (not nil) when the run has none.
func (s *Store) ReadFactEvents(ctx context.Context, runID string) ([]FactEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, op, fact_id, type, slots
		FROM fact_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fact events: %w", err)
	}
	defer rows.Close()

	events := []FactEvent{}
	for rows.Next() {
		var ev FactEvent
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Op, &ev.FactID, &ev.Type, &ev.Slots); err != nil {
			return nil, fmt.Errorf("scan fact event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fact events: %w", err)
	}
	return events, nil
}

// ReadFirings returns the firings of a run in seq order.
func (s *Store) ReadFirings(ctx context.Context, runID string) ([]Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, rule, salience, facts
		FROM firings
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []Firing{}
	for rows.Next() {
		var f Firing
		var facts string
		if err := rows.Scan(&f.RunID, &f.Seq, &f.Rule, &f.Salience, &facts); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		if f.Facts, err = unmarshalFactIDs(facts); err != nil {
			return nil, err
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}
