package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/prompt"
)

// Replacer is the part of the graph store the reconciler writes to.
type Replacer interface {
	ReplaceAll(nodes []domain.Node, edges []domain.Edge) error
}

// Ticket identifies one round-trip. Only the ticket with the highest
// generation may commit.
type Ticket struct {
	Generation uint64
	Model      string
}

// Status is the observable state of the latest round-trip.
type Status struct {
	State      domain.ProposalState `json:"state"`
	Generation uint64               `json:"generation"`
	Model      string               `json:"model,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
}

// RoundTrip supplies the three steps driven by Run.
type RoundTrip struct {
	Build func() (prompt.RequestPayload, error)
	Send  func(ctx context.Context, payload prompt.RequestPayload) (string, error)
	Parse func(raw string) (domain.ValidatedProposal, error)
}

// Reconciler commits validated proposals into the graph store and tracks the
// proposal state machine:
//
//	Idle → Building → AwaitingResponse → Validating → (Committed | Rejected) → Idle
//
// The discard policy is last-request-wins: beginning a round-trip supersedes
// every earlier one, and a superseded ticket can never commit.
type Reconciler struct {
	store Replacer

	mu         sync.Mutex
	generation uint64
	status     Status

	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHooks registers callbacks fired on every state transition.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Reconciler) {
		r.hooks = hooks
	}
}

// New creates a reconciler writing to store.
func New(store Replacer, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		status: Status{State: domain.StateIdle},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin starts a round-trip and supersedes any in flight.
func (r *Reconciler) Begin(model string) Ticket {
	r.mu.Lock()
	r.generation++
	t := Ticket{Generation: r.generation, Model: model}
	prev := r.status.State
	r.status = Status{State: domain.StateBuilding, Generation: t.Generation, Model: model}
	r.mu.Unlock()

	r.notify(t, prev, domain.StateBuilding, nil)
	return t
}

// Apply commits a proposal outside any round-trip, for example an edit the
// user accepted directly. It supersedes in-flight round-trips.
// A rejected proposal leaves in-flight round-trips alive.
func (r *Reconciler) Apply(p domain.ValidatedProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.ReplaceAll(p.Nodes, p.Edges); err != nil {
		return err
	}
	r.generation++
	r.status = Status{State: domain.StateIdle, Generation: r.generation}
	return nil
}

// Commit replaces the whole graph with the proposal if t is still current.
// The store is never merged field by field.
func (r *Reconciler) Commit(t Ticket, p domain.ValidatedProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Generation != r.generation {
		return fmt.Errorf("generation %d (latest %d): %w", t.Generation, r.generation, domain.ErrSuperseded)
	}
	return r.store.ReplaceAll(p.Nodes, p.Edges)
}

// Abandon cancels a round-trip. The graph is not touched, and the ticket is
// revoked: a later Commit or Run with it fails with ErrSuperseded.
func (r *Reconciler) Abandon(t Ticket) {
	r.transition(t, domain.StateRejected, context.Canceled)
	r.transition(t, domain.StateIdle, nil)

	r.mu.Lock()
	if t.Generation == r.generation {
		r.generation++
	}
	r.mu.Unlock()
}

// Status returns the state of the latest round-trip.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Run drives one round-trip for t: build the payload, send it, parse the
// answer and commit it. On any failure the graph is left untouched and the
// error is returned unchanged. The machine always ends in Idle.
func (r *Reconciler) Run(ctx context.Context, t Ticket, rt RoundTrip) (domain.ValidatedProposal, error) {
	p, err := r.run(ctx, t, rt)
	if err != nil {
		r.transition(t, domain.StateRejected, err)
		r.logger.Info("proposal rejected", "generation", t.Generation, "model", t.Model, "err", err)
	} else {
		r.transition(t, domain.StateCommitted, nil)
		r.logger.Info("proposal committed", "generation", t.Generation, "model", t.Model,
			"nodes", len(p.Nodes), "edges", len(p.Edges))
	}
	r.transition(t, domain.StateIdle, nil)
	return p, err
}

func (r *Reconciler) run(ctx context.Context, t Ticket, rt RoundTrip) (domain.ValidatedProposal, error) {
	payload, err := rt.Build()
	if err != nil {
		return domain.ValidatedProposal{}, err
	}

	r.transition(t, domain.StateAwaitingResponse, nil)
	raw, err := rt.Send(ctx, payload)
	if err != nil {
		return domain.ValidatedProposal{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ValidatedProposal{}, err
	}

	r.transition(t, domain.StateValidating, nil)
	p, err := rt.Parse(raw)
	if err != nil {
		return domain.ValidatedProposal{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ValidatedProposal{}, err
	}

	if err := r.Commit(t, p); err != nil {
		return domain.ValidatedProposal{}, err
	}
	return p, nil
}

// transition records a state change. Status only follows the latest ticket;
// superseded round-trips still report to the hooks.
func (r *Reconciler) transition(t Ticket, to domain.ProposalState, cause error) {
	r.mu.Lock()
	current := t.Generation == r.generation
	from := domain.ProposalState("")
	if current {
		from = r.status.State
		r.status.State = to
		switch {
		case cause != nil:
			r.status.LastError = domain.Localize(cause)
		case to == domain.StateCommitted:
			r.status.LastError = ""
		}
	}
	r.mu.Unlock()

	r.notify(t, from, to, cause)
}

func (r *Reconciler) notify(t Ticket, from, to domain.ProposalState, cause error) {
	if r.hooks.OnProposalChanged == nil {
		return
	}
	r.hooks.OnProposalChanged(context.Background(), &domain.ProposalEvent{
		Timestamp:  time.Now(),
		Generation: t.Generation,
		Model:      t.Model,
		From:       from,
		To:         to,
		Err:        cause,
	})
}

// IsSuperseded reports whether err came from a ticket overtaken by a newer one.
func IsSuperseded(err error) bool {
	return errors.Is(err, domain.ErrSuperseded)
}
