// Package undo records the inverse of every mutation a transaction makes so
// that its effects can be rolled back atomically.
//
// Mutating operators append Records to the current Quantum. A Quantum is
// identified by a caller-supplied token; the Log keeps quanta ordered by
// strictly increasing token. Release(t) forgets every quantum with a token
// at or below t (their effects become permanent). Undo(t) replays every
// quantum with a token at or above t, newest record first, then forgets them.
//
// Read-only and non-transactional work runs under a sentinel quantum, which
// drops records instead of keeping them.
package undo
