// Package value provides the slot value types stored in facts and compared
// by network tests.
//
// Value is a sealed interface. Only Null, Symbol, String, Int, Float and List
// implement it. Symbols are the engine's atoms; TRUE and FALSE are symbols,
// and every predicate-style test compares its result against False.
//
// Key produces a type-tagged string used to hash join memories, so two values
// share a key exactly when Equal reports them equal.
//
// MarshalCanonical produces deterministic JSON for journals and golden
// files: object keys sorted by UTF-16 code units, strings NFC normalised,
// no HTML escaping.
package value
