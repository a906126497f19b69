package aqueduct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/internal/presentation/graph"
	"github.com/aretw0/aqueduct/pkg/constraints"
	"github.com/aretw0/aqueduct/pkg/domain"
	gstore "github.com/aretw0/aqueduct/pkg/graph"
	"github.com/aretw0/aqueduct/pkg/palette"
	"github.com/aretw0/aqueduct/pkg/prompt"
	"github.com/aretw0/aqueduct/pkg/proposal"
	"github.com/aretw0/aqueduct/pkg/reconcile"
	"github.com/aretw0/aqueduct/pkg/session"
	"github.com/google/uuid"
)

// Generator sends a request payload to the backend selected by model.
// *backend.Dispatcher satisfies it.
type Generator interface {
	Generate(ctx context.Context, model string, payload prompt.RequestPayload) (string, error)
}

// Workspace is the high-level entry point for the Aqueduct library.
// It owns one graph store and wires the palette, constraint rules, prompt
// builder, response parser and reconciler around it.
type Workspace struct {
	id string

	palette    *palette.Palette
	rules      *constraints.RuleSet
	store      *gstore.Store
	reconciler *reconcile.Reconciler
	builder    *prompt.Builder
	parser     *proposal.Parser
	generator  Generator
	sessions   *session.Manager

	// persisted is the graph last saved or loaded through sessions. It is
	// only touched under the session lock.
	persisted domain.Snapshot

	initial *domain.Snapshot
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
}

// Option defines a functional option for configuring the Workspace.
type Option func(*Workspace)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(w *Workspace) {
		w.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = logger
	}
}

// WithPalette replaces the embedded palette.
func WithPalette(p *palette.Palette) Option {
	return func(w *Workspace) {
		w.palette = p
	}
}

// WithRules replaces the embedded constraint rules.
func WithRules(rules *constraints.RuleSet) Option {
	return func(w *Workspace) {
		w.rules = rules
	}
}

// WithGenerator sets the backend used by Propose and Suggest.
func WithGenerator(g Generator) Option {
	return func(w *Workspace) {
		w.generator = g
	}
}

// WithSessions persists the graph through m. The stored snapshot is loaded
// on start, or seeded when absent, and saved after every mutation.
func WithSessions(m *session.Manager) Option {
	return func(w *Workspace) {
		w.sessions = m
	}
}

// WithInitialGraph replaces the demo network used for a fresh workspace.
func WithInitialGraph(snap domain.Snapshot) Option {
	return func(w *Workspace) {
		c := snap.Clone()
		w.initial = &c
	}
}

// New opens the workspace id.
func New(ctx context.Context, id string, opts ...Option) (*Workspace, error) {
	if id == "" {
		return nil, &domain.ValidationError{Field: "workspace", Msg: "Не указано имя рабочего пространства."}
	}
	w := &Workspace{id: id}
	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	w.logger = w.logger.With("workspace", id)
	if w.palette == nil {
		w.palette = palette.Default()
	}
	if w.rules == nil {
		w.rules = constraints.Default()
	}

	seed := palette.SeedSnapshot()
	if w.initial != nil {
		seed = *w.initial
	}
	if w.sessions != nil {
		loaded, err := w.sessions.LoadOrSeed(ctx, id, seed)
		if err != nil {
			return nil, fmt.Errorf("failed to load workspace: %w", err)
		}
		seed = loaded
		w.persisted = loaded.Clone()
	}

	store, err := gstore.NewStore(w.palette,
		gstore.WithSnapshot(seed),
		gstore.WithHooks(w.hooks),
		gstore.WithLogger(w.logger),
	)
	if err != nil {
		return nil, err
	}
	w.store = store
	w.reconciler = reconcile.New(store,
		reconcile.WithHooks(w.hooks),
		reconcile.WithLogger(w.logger),
	)
	w.builder = prompt.NewBuilder(w.palette.Kinds(), w.rules)
	w.parser = proposal.NewParser(w.palette, proposal.WithLogger(w.logger))
	return w, nil
}

// ID returns the workspace name.
func (w *Workspace) ID() string { return w.id }

// Palette returns the type registry.
func (w *Workspace) Palette() *palette.Palette { return w.palette }

// Rules returns the advisory constraint rules.
func (w *Workspace) Rules() *constraints.RuleSet { return w.rules }

// CurrentGraph returns a copy of the graph.
func (w *Workspace) CurrentGraph() domain.Snapshot { return w.store.Snapshot() }

// Version increases with every mutation.
func (w *Workspace) Version() uint64 { return w.store.Version() }

// Node returns a copy of the node with the given id.
func (w *Workspace) Node(id string) (domain.Node, error) { return w.store.Node(id) }

// ApplyProposal replaces the whole graph with p. It supersedes any
// round-trip in flight.
func (w *Workspace) ApplyProposal(ctx context.Context, p domain.ValidatedProposal) error {
	if err := w.reconciler.Apply(p); err != nil {
		return err
	}
	return w.persist(ctx)
}

// Reload adopts the persisted graph when another replica has saved a newer
// one. Without sessions it does nothing.
func (w *Workspace) Reload(ctx context.Context) error {
	if w.sessions == nil {
		return nil
	}
	return w.sessions.WithLock(ctx, w.id, w.sync)
}

// Select records a weak reference to a node or edge.
func (w *Workspace) Select(id string) (domain.Selection, error) { return w.store.Select(id) }

// ClearSelection drops the selection.
func (w *Workspace) ClearSelection() { w.store.ClearSelection() }

// Selection resolves the current selection, if it still exists.
func (w *Workspace) Selection() (domain.Selection, bool) { return w.store.Selection() }

// CreateNode adds a node of kind at pos using the palette defaults.
func (w *Workspace) CreateNode(ctx context.Context, kind string, pos domain.Position) (domain.Node, error) {
	node, err := w.palette.Create(kind, pos)
	if err != nil {
		return domain.Node{}, err
	}
	if err := w.mutate(ctx, func() error { return w.store.AddNode(node) }); err != nil {
		return domain.Node{}, err
	}
	return node, nil
}

// RemoveNode deletes a node and every edge touching it.
func (w *Workspace) RemoveNode(ctx context.Context, id string) error {
	return w.mutate(ctx, func() error { return w.store.RemoveNode(id) })
}

// UpdateNode applies fn to the node and validates the result.
func (w *Workspace) UpdateNode(ctx context.Context, id string, fn func(*domain.Node)) (domain.Node, error) {
	var node domain.Node
	err := w.mutate(ctx, func() error {
		var err error
		node, err = w.store.UpdateNode(id, fn)
		return err
	})
	if err != nil {
		return domain.Node{}, err
	}
	return node, nil
}

// Connect adds an edge. An empty id is generated.
func (w *Workspace) Connect(ctx context.Context, edge domain.Edge) (domain.Edge, error) {
	if edge.ID == "" {
		edge.ID = "e-" + uuid.NewString()
	}
	edge.Properties = edge.Properties.Clone()
	if err := w.mutate(ctx, func() error { return w.store.AddEdge(edge) }); err != nil {
		return domain.Edge{}, err
	}
	return edge, nil
}

// UpdateEdge applies fn to the edge and validates the result.
func (w *Workspace) UpdateEdge(ctx context.Context, id string, fn func(*domain.Edge)) (domain.Edge, error) {
	var edge domain.Edge
	err := w.mutate(ctx, func() error {
		var err error
		edge, err = w.store.UpdateEdge(id, fn)
		return err
	})
	if err != nil {
		return domain.Edge{}, err
	}
	return edge, nil
}

// Disconnect removes an edge.
func (w *Workspace) Disconnect(ctx context.Context, id string) error {
	return w.mutate(ctx, func() error { return w.store.RemoveEdge(id) })
}

// BuildRequest renders the payload for the current graph.
func (w *Workspace) BuildRequest(text string) (prompt.RequestPayload, error) {
	return w.builder.Build(w.store.Snapshot(), text)
}

// ParseResponse validates a raw backend answer against the palette.
func (w *Workspace) ParseResponse(raw string) (domain.ValidatedProposal, error) {
	return w.parser.Parse(raw)
}

// Propose runs a full round-trip against model and commits the answer.
// On failure the graph is left untouched.
func (w *Workspace) Propose(ctx context.Context, model, text string) (domain.ValidatedProposal, error) {
	gen, err := w.requireGenerator()
	if err != nil {
		return domain.ValidatedProposal{}, err
	}

	ticket := w.reconciler.Begin(model)
	p, err := w.reconciler.Run(ctx, ticket, reconcile.RoundTrip{
		Build: func() (prompt.RequestPayload, error) {
			return w.builder.Build(w.store.Snapshot(), text)
		},
		Send: func(ctx context.Context, payload prompt.RequestPayload) (string, error) {
			return gen.Generate(ctx, model, payload)
		},
		Parse: w.parser.Parse,
	})
	if err != nil {
		return domain.ValidatedProposal{}, err
	}
	return p, w.persist(ctx)
}

// Suggest runs a round-trip for a caller-supplied graph without touching
// the workspace.
func (w *Workspace) Suggest(ctx context.Context, snap domain.Snapshot, model, text string) (domain.ValidatedProposal, error) {
	gen, err := w.requireGenerator()
	if err != nil {
		return domain.ValidatedProposal{}, err
	}
	payload, err := w.builder.Build(snap, text)
	if err != nil {
		return domain.ValidatedProposal{}, err
	}
	raw, err := gen.Generate(ctx, model, payload)
	if err != nil {
		return domain.ValidatedProposal{}, err
	}
	return w.parser.Parse(raw)
}

// ProposalStatus reports the state of the latest round-trip.
func (w *Workspace) ProposalStatus() reconcile.Status { return w.reconciler.Status() }

// Advisories evaluates the constraint rules against the graph.
func (w *Workspace) Advisories() []constraints.Advisory {
	return w.rules.Evaluate(w.store.Snapshot())
}

// Mermaid renders the graph as a Mermaid flowchart, highlighting the
// selection and nodes with advisories.
func (w *Workspace) Mermaid() string {
	overlay := &graph.Overlay{}
	if sel, ok := w.store.Selection(); ok && sel.Entity == domain.EntityNode {
		overlay.Selected = sel.ID
	}
	for _, a := range w.Advisories() {
		overlay.Flagged = append(overlay.Flagged, a.NodeID)
	}
	return graph.GenerateMermaid(w.store.Snapshot(), overlay)
}

// Subscribe registers a listener for graph events.
func (w *Workspace) Subscribe() (<-chan domain.GraphEvent, func()) { return w.store.Subscribe() }

// Close ends the workspace lifecycle.
func (w *Workspace) Close() error { return w.store.Close() }

func (w *Workspace) requireGenerator() (Generator, error) {
	if w.generator == nil {
		return nil, &domain.ValidationError{Field: "model", Msg: "ИИ-модели не настроены."}
	}
	return w.generator, nil
}

// persist saves the current graph after a whole-graph replacement. The
// replacement wins over edits other replicas saved meanwhile, matching the
// last-request-wins policy of the reconciler.
func (w *Workspace) persist(ctx context.Context) error {
	if w.sessions == nil {
		return nil
	}
	if err := w.sessions.WithLock(ctx, w.id, w.save); err != nil {
		w.logger.Error("failed to save workspace", "err", err)
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	return nil
}

// mutate runs an incremental edit as a read-modify-write under the session
// lock: the graph saved by other replicas is adopted first, then op runs and
// the result is saved. Edits from different replicas are never lost.
func (w *Workspace) mutate(ctx context.Context, op func() error) error {
	if w.sessions == nil {
		return op()
	}
	var opErr error
	err := w.sessions.WithLock(ctx, w.id, func(ctx context.Context) error {
		if err := w.sync(ctx); err != nil {
			return err
		}
		if opErr = op(); opErr != nil {
			return nil
		}
		return w.save(ctx)
	})
	if opErr != nil {
		return opErr
	}
	if err != nil {
		w.logger.Error("failed to save workspace", "err", err)
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	return nil
}

// save writes the current graph. Callers hold the session lock.
func (w *Workspace) save(ctx context.Context) error {
	snap := w.store.Snapshot()
	if err := w.sessions.Store().Save(ctx, w.id, snap); err != nil {
		return err
	}
	w.persisted = snap
	return nil
}

// sync replaces the local graph with the stored one when it changed since
// the last save or load. Callers hold the session lock.
func (w *Workspace) sync(ctx context.Context) error {
	stored, err := w.sessions.Store().Load(ctx, w.id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reload workspace: %w", err)
	}
	if domain.Diff(w.persisted, stored).IsEmpty() {
		return nil
	}
	if err := w.store.ReplaceAll(stored.Nodes, stored.Edges); err != nil {
		return fmt.Errorf("failed to adopt stored workspace: %w", err)
	}
	w.persisted = stored
	w.logger.Info("workspace reloaded from storage", "nodes", len(stored.Nodes), "edges", len(stored.Edges))
	return nil
}
