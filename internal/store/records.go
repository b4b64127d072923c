package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/token"
	"github.com/roach88/rete/internal/value"
)

// Fact event operations.
const (
	OpAssert  = "assert"
	OpRetract = "retract"
	OpModify  = "modify"
)

// Run is one engine session.
type Run struct {
	ID    string
	Seq   int64
	Label string
}

// FactEvent records one working-memory change. Slots holds the fact's slot
// values after the change, as canonical JSON.
type FactEvent struct {
	RunID  string
	Seq    int64
	Op     string
	FactID int64
	Type   string
	Slots  string
}

// Firing records one rule firing.
type Firing struct {
	RunID    string
	Seq      int64
	Rule     string
	Salience int
	Facts    []int64
}

// NewFactEvent builds the journal record of op applied to f.
func NewFactEvent(runID string, seq int64, op string, f *fact.Fact) (FactEvent, error) {
	slots, err := marshalSlots(f.Values())
	if err != nil {
		return FactEvent{}, err
	}
	return FactEvent{RunID: runID, Seq: seq, Op: op, FactID: f.ID(), Type: f.Type(), Slots: slots}, nil
}

// NewFiring builds the journal record of rule firing for tok.
func NewFiring(runID string, seq int64, rule string, salience int, tok *token.Token) Firing {
	facts := make([]int64, tok.Size())
	for i := range facts {
		facts[i] = tok.Fact(i).ID()
	}
	return Firing{RunID: runID, Seq: seq, Rule: rule, Salience: salience, Facts: facts}
}

// marshalSlots converts slot values to canonical JSON TEXT for storage.
func marshalSlots(slots map[string]value.Value) (string, error) {
	data, err := value.MarshalCanonical(slots)
	if err != nil {
		return "", fmt.Errorf("marshal slots: %w", err)
	}
	return string(data), nil
}

func marshalFactIDs(ids []int64) (string, error) {
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal fact ids: %w", err)
	}
	return string(data), nil
}

func unmarshalFactIDs(data string) ([]int64, error) {
	var ids []int64
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal fact ids: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
