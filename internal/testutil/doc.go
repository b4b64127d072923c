// Package testutil holds deterministic fixtures shared by package tests:
// a scripted logical clock and a fact factory.
package testutil
