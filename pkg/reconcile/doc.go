// Package reconcile owns the proposal round-trip: it tracks the state
// machine, enforces the last-request-wins discard policy and commits
// validated proposals into the graph store as a single replacement.
package reconcile
