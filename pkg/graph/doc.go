// Package graph provides the in-memory graph store of a workspace.
//
// The Store is the single source of truth for nodes, edges and the current
// selection. Every mutation is validated before it is applied, so a failed
// call never leaves the store half-changed, and ReplaceAll swaps the whole
// graph in one step. Listeners observe changes through Subscribe.
package graph
