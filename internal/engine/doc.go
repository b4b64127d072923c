// Package engine is the working memory and run loop built around the
// matching network.
//
// Working Memory:
// Assert, Retract, Modify and Duplicate change facts under one lock and
// propagate each change through the network before returning. Facts keep
// the id they were given at assert; ids are never reused, Reset included.
// Asserting content that is already present returns the existing fact.
//
// Run Loop:
// Run pops activations from the agenda and calls the rule's Action without
// holding the working-memory lock, so actions may assert, retract and
// modify freely. An action returning ruleerr.ErrHalt stops the loop
// without an error.
//
// Logical Support:
// Facts asserted with FireContext.AssertLogical stay in working memory
// while at least one supporting match exists. Each logical rule owns a
// logical.Handler; when a supporting match disappears the handler drops
// the support here and unsupported facts are retracted.
//
// Logical Clock:
// Token times and journal sequence numbers come from Clock.Next(). Wall
// time is never used for ordering.
package engine
