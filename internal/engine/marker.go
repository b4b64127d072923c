package engine

import "slices"

// Marker remembers the next fact id at the time it was taken.
type Marker struct {
	id int64
}

// Mark returns a marker at the current end of working memory.
func (e *Engine) Mark() Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Marker{id: e.nextID + 1}
}

// ID returns the first fact id not covered by the marker.
func (m Marker) ID() int64 { return m.id }

// Restore retracts every fact asserted since the marker was taken, newest
// first.
func (m Marker) Restore(e *Engine) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	facts := e.liveFactsLocked()
	slices.Reverse(facts)
	for _, f := range facts {
		if f.ID() < m.id {
			break
		}
		// A cascade may already have taken it.
		if !f.Alive() {
			continue
		}
		if err := e.retractLocked(f); err != nil {
			return err
		}
	}
	return nil
}
