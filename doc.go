/*
Package aqueduct edits utility-network diagrams (pumps, tanks, pipes, sources
and sinks) and asks a reasoning backend for improvements.

A Workspace owns one typed graph. Nodes are created from a palette of
registered kinds; edges must always reference existing nodes. Propose
serializes the graph into a request, sends it to the backend selected by
the model name, validates the answer against the palette and commits it as
a single replacement. A failed or superseded round-trip never touches the
graph.

# Usage

	ctx := context.Background()
	d := backend.NewDispatcher(
		backend.WithNamedProvider("gpt", "openai", backend.OpenAI(os.Getenv("OPENAI_API_KEY"), "")),
	)

	ws, err := aqueduct.New(ctx, "default", aqueduct.WithGenerator(d))
	if err != nil {
		log.Fatal(err)
	}
	defer ws.Close()

	p, err := ws.Propose(ctx, "gpt-4o-mini", "Дом → Канализационный коллектор (600 л/с)")
	if err != nil {
		log.Fatal(domain.Localize(err))
	}
	for _, s := range p.Suggestions {
		fmt.Println(s)
	}

# Adapters

The pkg/adapters tree exposes a Workspace over HTTP (REST, SSE and the
/api/ai endpoint) and MCP, and persists it in memory or Redis.
*/
package aqueduct
