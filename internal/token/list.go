package token

// Source is the read side of a token memory.
type Source interface {
	Len() int
	At(i int) *Token
}

// List is an ordered token memory with amortised O(1) append and O(1)
// swap-remove. Removal moves the last element into the hole, so order is
// only preserved across appends.
type List struct {
	items []*Token
}

var _ Source = (*List)(nil)

// NewList creates an empty list with room for capacity tokens.
func NewList(capacity int) *List {
	return &List{items: make([]*Token, 0, capacity)}
}

// Len returns the number of tokens.
func (l *List) Len() int { return len(l.items) }

// At returns the token at position i.
func (l *List) At(i int) *Token { return l.items[i] }

// Add appends t.
func (l *List) Add(t *Token) {
	l.items = append(l.items, t)
}

// RemoveAt swap-removes the token at position i and returns it.
func (l *List) RemoveAt(i int) *Token {
	last := len(l.items) - 1
	t := l.items[i]
	l.items[i] = l.items[last]
	l.items[last] = nil
	l.items = l.items[:last]
	return t
}

// Remove swap-removes the first token equal to t and returns the stored
// token, or nil when none is present.
func (l *List) Remove(t *Token) *Token {
	if i := l.IndexOf(t); i >= 0 {
		return l.RemoveAt(i)
	}
	return nil
}

// IndexOf returns the position of the first token equal to t, or -1.
func (l *List) IndexOf(t *Token) int {
	for i, u := range l.items {
		if u.Equal(t) {
			return i
		}
	}
	return -1
}

// Clear drops every token but keeps the backing storage.
func (l *List) Clear() {
	clear(l.items)
	l.items = l.items[:0]
}

// Snapshot returns a copy of the current contents. Callers that propagate
// while iterating use it, since downstream effects may mutate the list.
func (l *List) Snapshot() []*Token {
	out := make([]*Token, len(l.items))
	copy(out, l.items)
	return out
}
