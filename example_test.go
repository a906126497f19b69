package aqueduct_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/aqueduct"
	"github.com/aretw0/aqueduct/pkg/backend"
)

// ExampleWorkspace_Propose runs a round-trip against a scripted backend.
// Swap the static factory for backend.OpenAI or backend.Gemini to talk to a
// real model.
func ExampleWorkspace_Propose() {
	ctx := context.Background()
	d := backend.NewDispatcher(
		backend.WithProvider("gpt", backend.NewStatic(pumpAndTank).Factory()),
	)

	ws, err := aqueduct.New(ctx, "example", aqueduct.WithGenerator(d))
	if err != nil {
		log.Fatal(err)
	}
	defer ws.Close()

	p, err := ws.Propose(ctx, "gpt-4o-mini", "")
	if err != nil {
		log.Fatal(err)
	}

	for _, s := range p.Suggestions {
		fmt.Println(s)
	}
	g := ws.CurrentGraph()
	fmt.Printf("%d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
	// Output:
	// Добавить резервный насос
	// 2 nodes, 1 edges
}
