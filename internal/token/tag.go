// Package token provides the partial-match unit that flows through the
// network, the tag vocabulary describing each propagation, and the
// TokenList used as join memory.
package token

import "fmt"

// Tag describes what kind of update a propagation carries.
// The numeric values are part of the external contract.
type Tag int

const (
	// Assert is a fresh fact or match.
	Assert Tag = 0
	// Remove is a retraction.
	Remove Tag = 1
	// Update replays existing working memory into newly built nodes.
	Update Tag = 2
	// Clear flushes every memory in the network.
	Clear Tag = 3
	// ModifyAdd re-inserts a fact after an in-place modification.
	ModifyAdd Tag = 4
	// ModifyRemove withdraws a fact ahead of an in-place modification.
	ModifyRemove Tag = 5
)

// Tags lists the whole vocabulary in numeric order.
var Tags = []Tag{Assert, Remove, Update, Clear, ModifyAdd, ModifyRemove}

// String returns the tag's contract name.
func (t Tag) String() string {
	switch t {
	case Assert:
		return "ASSERT"
	case Remove:
		return "REMOVE"
	case Update:
		return "UPDATE"
	case Clear:
		return "CLEAR"
	case ModifyAdd:
		return "MODIFY_ADD"
	case ModifyRemove:
		return "MODIFY_REMOVE"
	}
	return fmt.Sprintf("TAG(%d)", int(t))
}

// IsRemoval reports whether the tag withdraws a match.
func (t Tag) IsRemoval() bool {
	return t == Remove || t == ModifyRemove
}

// IsAddition reports whether the tag introduces a match.
func (t Tag) IsAddition() bool {
	return t == Assert || t == ModifyAdd || t == Update
}
