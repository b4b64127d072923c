package agenda

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/value"
)

// Strategy orders activations. Compare returns a negative number when a
// should fire before b. Implementations must be total orders.
type Strategy interface {
	Name() string
	Compare(a, b *Activation) int
}

// Breadth fires the oldest match first among equal saliences.
type Breadth struct{}

func (Breadth) Name() string { return "breadth" }

func (Breadth) Compare(a, b *Activation) int {
	return cmp.Or(
		cmp.Compare(b.Salience, a.Salience),
		cmp.Compare(a.Time, b.Time),
		cmp.Compare(a.TotalTime, b.TotalTime),
		cmp.Compare(a.Seq, b.Seq),
	)
}

// Depth fires the newest match first among equal saliences.
type Depth struct{}

func (Depth) Name() string { return "depth" }

func (Depth) Compare(a, b *Activation) int {
	return cmp.Or(
		cmp.Compare(b.Salience, a.Salience),
		cmp.Compare(b.Time, a.Time),
		cmp.Compare(b.TotalTime, a.TotalTime),
		cmp.Compare(b.Seq, a.Seq),
	)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Strategy{
		"breadth": Breadth{},
		"depth":   Depth{},
	}
)

// DefaultStrategy is the strategy of a new agenda.
const DefaultStrategy = "depth"

// Register makes a strategy available by name, replacing any previous
// registration.
func Register(s Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name()] = s
}

// LookupStrategy returns the strategy registered under name.
func LookupStrategy(name string) (Strategy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return nil, ruleerr.New(ruleerr.CodeNoSuchStrategy, "set-strategy",
			fmt.Sprintf("no strategy named %s", name), value.Symbol(name))
	}
	return s, nil
}

// Strategies returns the registered names, sorted.
func Strategies() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
