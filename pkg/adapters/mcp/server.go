package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/aqueduct"
	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/pkg/constraints"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/palette"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	graphURI   = "aqueduct://graph"
	paletteURI = "aqueduct://palette"
)

// Workspace is the part of *aqueduct.Workspace exposed to MCP clients.
type Workspace interface {
	Palette() *palette.Palette
	CurrentGraph() domain.Snapshot
	Version() uint64
	Propose(ctx context.Context, model, text string) (domain.ValidatedProposal, error)
	ParseResponse(raw string) (domain.ValidatedProposal, error)
	Advisories() []constraints.Advisory
	Mermaid() string
}

var _ Workspace = (*aqueduct.Workspace)(nil)

// ProposeArgs are the arguments of the propose_changes tool.
type ProposeArgs struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// ProposeResult summarizes a committed proposal.
type ProposeResult struct {
	Suggestions []string `json:"suggestions" jsonschema_description:"Recommendations returned by the model"`
	Nodes       int      `json:"nodes" jsonschema_description:"Number of nodes in the new graph"`
	Edges       int      `json:"edges" jsonschema_description:"Number of edges in the new graph"`
	Version     uint64   `json:"version" jsonschema_description:"Graph version after the commit"`
	Advisories  []string `json:"advisories" jsonschema_description:"Engineering bounds the new graph violates"`
}

// Server exposes a Workspace as an MCP server.
type Server struct {
	ws        Workspace
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(ws Workspace, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		ws:     ws,
		logger: logger,
		mcpServer: server.NewMCPServer("aqueduct-mcp", strings.TrimSpace(aqueduct.Version),
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, true),
			server.WithRecovery(),
			server.WithInstructions("Редактор схем водоснабжения и водоотведения. "+
				"Используйте propose_changes, чтобы ИИ-модель изменила схему, и get_graph, чтобы прочитать её."),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	allowAll := cors.AllowAll()
	mux := http.NewServeMux()
	mux.Handle("/sse", allowAll.Handler(sseServer.SSEHandler()))
	mux.Handle("/message", allowAll.Handler(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the current utility network graph (nodes and edges) as JSON."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.ws.CurrentGraph())
	})

	s.mcpServer.AddTool(mcp.NewTool("list_palette",
		mcp.WithDescription("List the node kinds that may appear in the graph, with their default properties."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.ws.Palette().Entries())
	})

	s.mcpServer.AddTool(mcp.NewTool("propose_changes",
		mcp.WithDescription("Ask an AI model to modify the graph. The validated answer replaces the graph."),
		mcp.WithString("model", mcp.Required(), mcp.Description("Model identifier, e.g. gpt-4o-mini or gemini-1.5-pro")),
		mcp.WithString("text", mcp.Description("Free-form instruction for the model")),
		mcp.WithOutputSchema[ProposeResult](),
	), mcp.NewStructuredToolHandler(s.handlePropose))

	s.mcpServer.AddTool(mcp.NewTool("validate_response",
		mcp.WithDescription("Validate a raw model answer against the palette without touching the graph."),
		mcp.WithString("response", mcp.Required(), mcp.Description("Raw model output, optionally fenced as ```json")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := request.GetString("response", "")
		p, err := s.ws.ParseResponse(raw)
		if err != nil {
			return mcp.NewToolResultError(domain.Localize(err)), nil
		}
		return jsonResult(p)
	})

	s.mcpServer.AddTool(mcp.NewTool("get_advisories",
		mcp.WithDescription("List properties of the current graph that fall outside engineering bounds."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		advisories := s.ws.Advisories()
		if advisories == nil {
			advisories = []constraints.Advisory{}
		}
		return jsonResult(advisories)
	})

	s.mcpServer.AddTool(mcp.NewTool("get_mermaid",
		mcp.WithDescription("Render the current graph as a Mermaid flowchart."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(s.ws.Mermaid()), nil
	})
}

func (s *Server) handlePropose(ctx context.Context, request mcp.CallToolRequest, args ProposeArgs) (ProposeResult, error) {
	if args.Model == "" {
		return ProposeResult{}, errors.New(domain.Localize(&domain.ValidationError{Field: "model", Msg: "Не указана ИИ-модель."}))
	}

	p, err := s.ws.Propose(ctx, args.Model, args.Text)
	if err != nil {
		s.logger.Warn("MCP propose_changes failed", "model", args.Model, "err", err)
		return ProposeResult{}, errors.New(domain.Localize(err))
	}

	res := ProposeResult{
		Suggestions: p.Suggestions,
		Nodes:       len(p.Nodes),
		Edges:       len(p.Edges),
		Version:     s.ws.Version(),
		Advisories:  []string{},
	}
	if res.Suggestions == nil {
		res.Suggestions = []string{}
	}
	for _, a := range s.ws.Advisories() {
		res.Advisories = append(res.Advisories, a.Message)
	}
	return res, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Current Network Graph",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(graphURI, s.ws.CurrentGraph())
	})

	s.mcpServer.AddResource(mcp.NewResource(paletteURI, "Node Palette",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(paletteURI, s.ws.Palette().Entries())
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
