package store

import (
	"context"
	"fmt"
	"slices"
)

// LiveFact is a fact alive at the end of a journaled run.
type LiveFact struct {
	ID    int64
	Type  string
	Slots string
}

// ReplayFacts folds a run's fact events into the working memory they
// leave behind, ordered by fact id.
func (s *Store) ReplayFacts(ctx context.Context, runID string) ([]LiveFact, error) {
	if _, err := s.ReadRun(ctx, runID); err != nil {
		return nil, err
	}
	events, err := s.ReadFactEvents(ctx, runID)
	if err != nil {
		return nil, err
	}

	live := make(map[int64]LiveFact)
	for _, ev := range events {
		switch ev.Op {
		case OpAssert, OpModify:
			live[ev.FactID] = LiveFact{ID: ev.FactID, Type: ev.Type, Slots: ev.Slots}
		case OpRetract:
			delete(live, ev.FactID)
		default:
			return nil, fmt.Errorf("replay run %s: unknown op %q at seq %d", runID, ev.Op, ev.Seq)
		}
	}

	out := make([]LiveFact, 0, len(live))
	for _, f := range live {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b LiveFact) int { return int(a.ID - b.ID) })
	return out, nil
}
