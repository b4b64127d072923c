// Package agenda holds rule activations waiting to fire.
//
// Every rule module owns a ModuleAgenda: a heap of activations ordered by a
// conflict-resolution Strategy. The Agenda routes activations to their
// module and keeps the focus stack that decides which module fires next.
// Module queues lock independently, so pushing to one module never waits
// on another.
package agenda
