package store

import (
	"context"
	"fmt"
)

// BeginRun registers a run. Registering the same id twice is a no-op.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, seq, label)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Seq, run.Label)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteFactEvent appends a fact event. The run must exist (foreign key
// constraint).
func (s *Store) WriteFactEvent(ctx context.Context, ev FactEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fact_events (run_id, seq, op, fact_id, type, slots)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.RunID, ev.Seq, ev.Op, ev.FactID, ev.Type, ev.Slots)
	if err != nil {
		return fmt.Errorf("write fact event: %w", err)
	}
	return nil
}

// WriteFiring appends a rule firing. The run must exist.
func (s *Store) WriteFiring(ctx context.Context, f Firing) error {
	facts, err := marshalFactIDs(f.Facts)
	if err != nil {
		return fmt.Errorf("write firing: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO firings (run_id, seq, rule, salience, facts)
		VALUES (?, ?, ?, ?, ?)
	`, f.RunID, f.Seq, f.Rule, f.Salience, facts)
	if err != nil {
		return fmt.Errorf("write firing: %w", err)
	}
	return nil
}
