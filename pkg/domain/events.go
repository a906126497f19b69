package domain

import (
	"context"
	"time"
)

// EventType defines the category of a graph event.
type EventType string

const (
	EventNodeAdded        EventType = "node_added"
	EventNodeRemoved      EventType = "node_removed"
	EventNodeUpdated      EventType = "node_updated"
	EventEdgeAdded        EventType = "edge_added"
	EventEdgeRemoved      EventType = "edge_removed"
	EventEdgeUpdated      EventType = "edge_updated"
	EventReplaced         EventType = "replaced"
	EventSelectionChanged EventType = "selection_changed"
)

// GraphEvent is published by the graph store after every successful mutation.
type GraphEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	EntityID  string    `json:"entity_id,omitempty"`
	Version   uint64    `json:"version"`
}

// ProposalState is a step of the proposal round-trip.
type ProposalState string

const (
	StateIdle             ProposalState = "idle"
	StateBuilding         ProposalState = "building"
	StateAwaitingResponse ProposalState = "awaiting_response"
	StateValidating       ProposalState = "validating"
	StateCommitted        ProposalState = "committed"
	StateRejected         ProposalState = "rejected"
)

// ProposalEvent reports a state transition of one round-trip.
type ProposalEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	Generation uint64        `json:"generation"`
	Model      string        `json:"model,omitempty"`
	From       ProposalState `json:"from"`
	To         ProposalState `json:"to"`
	Err        error         `json:"-"`
}

// LifecycleHooks defines callbacks for observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnGraphChanged    func(context.Context, *GraphEvent)
	OnProposalChanged func(context.Context, *ProposalEvent)
	OnBackendCall     func(context.Context, *BackendEvent)
}

// BackendEvent describes one call to a reasoning backend.
type BackendEvent struct {
	Model    string
	Backend  string
	Duration time.Duration
	Cached   bool
	Err      error
}
