package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/value"
)

// createTestStore creates a new on-disk store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var personT = fact.MustTemplate("person", nil,
	fact.Slot{Name: "name"},
	fact.Slot{Name: "tags", Multi: true},
)

// createTestFact creates an asserted person fact.
func createTestFact(t *testing.T, id int64, name string, tags ...string) *fact.Fact {
	t.Helper()
	l := make(value.List, len(tags))
	for i, tag := range tags {
		l[i] = value.Symbol(tag)
	}
	f, err := fact.New(personT, map[string]value.Value{"name": value.Symbol(name), "tags": l})
	if err != nil {
		t.Fatalf("fact.New() failed: %v", err)
	}
	f.SetID(id)
	return f
}
