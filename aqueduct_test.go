package aqueduct_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/aqueduct"
	"github.com/aretw0/aqueduct/pkg/adapters/memory"
	"github.com/aretw0/aqueduct/pkg/backend"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/palette"
	"github.com/aretw0/aqueduct/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pumpAndTank = "```json\n" + `{
  "suggestions": ["Добавить резервный насос"],
  "modified": {
    "nodes": [
      {"id": "pump-1", "type": "pump_station", "position": {"x": 0, "y": 0}},
      {"id": "tank-1", "type": "drinking_water_tank", "data": {"label": "Резервуар", "properties": {"Объём": "3000 м³"}}}
    ],
    "edges": [{"id": "e1", "source": "pump-1", "target": "tank-1"}]
  }
}` + "\n```"

func newWorkspace(t *testing.T, opts ...aqueduct.Option) *aqueduct.Workspace {
	t.Helper()
	ws, err := aqueduct.New(context.Background(), "test", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestWorkspace_SeededGraph(t *testing.T) {
	ws := newWorkspace(t)
	snap := ws.CurrentGraph()
	assert.Len(t, snap.Nodes, 5)
	assert.Len(t, snap.Edges, 4)
	assert.Equal(t, "test", ws.ID())
}

func TestWorkspace_LocalEditing(t *testing.T) {
	ws := newWorkspace(t, aqueduct.WithInitialGraph(domain.Snapshot{}))
	ctx := context.Background()

	pump, err := ws.CreateNode(ctx, "pump_station", domain.Position{X: 10, Y: 20})
	require.NoError(t, err)
	assert.Equal(t, "pump_station", pump.Kind)

	tank, err := ws.CreateNode(ctx, "drinking_water_tank", domain.Position{})
	require.NoError(t, err)

	_, err = ws.CreateNode(ctx, "volcano", domain.Position{})
	var unknown *domain.UnknownKindError
	require.ErrorAs(t, err, &unknown)
	assert.Len(t, ws.CurrentGraph().Nodes, 2, "unknown kind must not mutate")

	edge, err := ws.Connect(ctx, domain.Edge{Source: pump.ID, Target: tank.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)

	_, err = ws.Connect(ctx, domain.Edge{Source: pump.ID, Target: "ghost"})
	assert.ErrorIs(t, err, domain.ErrDanglingReference)

	updated, err := ws.UpdateNode(ctx, pump.ID, func(n *domain.Node) {
		n.Properties.Set("Производительность", domain.Text("3000 л/с"))
	})
	require.NoError(t, err)
	v, _ := updated.Properties.Get("Производительность")
	assert.Equal(t, "3000 л/с", v.String())

	// Palette defaults stay untouched by edits to created nodes.
	entry, _ := ws.Palette().Lookup("pump_station")
	dv, _ := entry.Properties.Get("Производительность")
	assert.NotEqual(t, "3000 л/с", dv.String())

	_, err = ws.Select(pump.ID)
	require.NoError(t, err)
	require.NoError(t, ws.RemoveNode(ctx, pump.ID))
	_, ok := ws.Selection()
	assert.False(t, ok, "selection is a weak reference")
	assert.Empty(t, ws.CurrentGraph().Edges, "removing a node cascades to its edges")
}

func TestWorkspace_Propose(t *testing.T) {
	static := backend.NewStatic(pumpAndTank)
	d := backend.NewDispatcher(backend.WithProvider("gpt", static.Factory()))
	ws := newWorkspace(t, aqueduct.WithGenerator(d))

	p, err := ws.Propose(context.Background(), "gpt-4o-mini", "Насос → Резервуар")
	require.NoError(t, err)
	assert.Equal(t, []string{"Добавить резервный насос"}, p.Suggestions)

	snap := ws.CurrentGraph()
	require.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Edges, 1)

	calls := static.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Насос → Резервуар")

	advisories := ws.Advisories()
	require.Len(t, advisories, 1)
	assert.Equal(t, "tank-1", advisories[0].NodeID)
	assert.Contains(t, ws.Mermaid(), "class tank_1 flagged;")
}

func TestWorkspace_ProposeFailureLeavesGraph(t *testing.T) {
	tests := []struct {
		name    string
		gen     aqueduct.Generator
		model   string
		wantErr error
	}{
		{"no generator", nil, "gpt-4o", domain.ErrValidation},
		{"unknown model", backend.NewDispatcher(backend.WithProvider("gpt", backend.NewStatic(pumpAndTank).Factory())), "llama", domain.ErrValidation},
		{"upstream", backend.NewDispatcher(backend.WithProvider("gpt", backend.Failing(errors.New("503")).Factory())), "gpt-4o", domain.ErrUpstream},
		{"missing modified", backend.NewDispatcher(backend.WithProvider("gpt", backend.NewStatic(`{"suggestions":[]}`).Factory())), "gpt-4o", domain.ErrSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []aqueduct.Option{}
			if tt.gen != nil {
				opts = append(opts, aqueduct.WithGenerator(tt.gen))
			}
			ws := newWorkspace(t, opts...)
			before := ws.CurrentGraph()

			_, err := ws.Propose(context.Background(), tt.model, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, ws.CurrentGraph())
		})
	}
}

func TestWorkspace_Suggest(t *testing.T) {
	d := backend.NewDispatcher(backend.WithProvider("gemini", backend.NewStatic(pumpAndTank).Factory()))
	ws := newWorkspace(t, aqueduct.WithGenerator(d))
	before := ws.CurrentGraph()

	p, err := ws.Suggest(context.Background(), domain.Snapshot{}, "gemini-1.5-pro", "")
	require.NoError(t, err)
	assert.Len(t, p.Nodes, 2)
	assert.Equal(t, before, ws.CurrentGraph(), "Suggest never commits")
}

func TestWorkspace_Persistence(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	mgr := session.NewManager(store, session.WithLocker(memory.NewLocker()))

	ws, err := aqueduct.New(ctx, "plant", aqueduct.WithSessions(mgr))
	require.NoError(t, err)

	saved, err := store.Load(ctx, "plant")
	require.NoError(t, err)
	assert.Equal(t, palette.SeedSnapshot(), saved, "fresh workspace is seeded")

	require.NoError(t, ws.RemoveNode(ctx, "pump-1"))
	require.NoError(t, ws.Close())

	reopened, err := aqueduct.New(ctx, "plant", aqueduct.WithSessions(mgr))
	require.NoError(t, err)
	defer reopened.Close()
	_, err = reopened.Node("pump-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, reopened.CurrentGraph().Nodes, 4)
}

func TestWorkspace_ReplicasShareEdits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	mgr := session.NewManager(store, session.WithLocker(memory.NewLocker()))

	first, err := aqueduct.New(ctx, "plant", aqueduct.WithSessions(mgr))
	require.NoError(t, err)
	defer first.Close()
	second, err := aqueduct.New(ctx, "plant", aqueduct.WithSessions(mgr))
	require.NoError(t, err)
	defer second.Close()

	house, err := first.CreateNode(ctx, "house", domain.Position{X: 10})
	require.NoError(t, err)
	mixer, err := second.CreateNode(ctx, "mixer", domain.Position{X: 20})
	require.NoError(t, err)

	saved, err := store.Load(ctx, "plant")
	require.NoError(t, err)
	_, ok := saved.Node(house.ID)
	assert.True(t, ok, "the first replica's edit must survive the second one's save")
	_, ok = saved.Node(mixer.ID)
	assert.True(t, ok)
	assert.Len(t, saved.Nodes, 7)

	_, err = second.Node(house.ID)
	assert.NoError(t, err, "the editing replica adopts the stored graph")

	_, err = first.Node(mixer.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, first.Reload(ctx))
	_, err = first.Node(mixer.ID)
	assert.NoError(t, err)

	// Edits against entities another replica removed fail cleanly.
	require.NoError(t, first.RemoveNode(ctx, mixer.ID))
	err = second.RemoveNode(ctx, mixer.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWorkspace_ApplyProposal(t *testing.T) {
	ws := newWorkspace(t)
	p, err := ws.ParseResponse(pumpAndTank)
	require.NoError(t, err)

	require.NoError(t, ws.ApplyProposal(context.Background(), p))
	assert.Len(t, ws.CurrentGraph().Nodes, 2)

	err = ws.ApplyProposal(context.Background(), domain.ValidatedProposal{
		Edges: []domain.Edge{{ID: "e", Source: "x", Target: "y"}},
	})
	assert.ErrorIs(t, err, domain.ErrDanglingReference)
	assert.Len(t, ws.CurrentGraph().Nodes, 2)
}

func TestWorkspace_Subscribe(t *testing.T) {
	ws := newWorkspace(t)
	events, cancel := ws.Subscribe()
	defer cancel()

	_, err := ws.CreateNode(context.Background(), "house", domain.Position{})
	require.NoError(t, err)

	evt := <-events
	assert.Equal(t, domain.EventNodeAdded, evt.Type)
}

func TestNew_RequiresID(t *testing.T) {
	_, err := aqueduct.New(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
