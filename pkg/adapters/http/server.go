package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/aqueduct"
	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/pkg/constraints"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/palette"
	"github.com/aretw0/aqueduct/pkg/reconcile"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Workspace is the part of *aqueduct.Workspace served over HTTP.
type Workspace interface {
	ID() string
	Palette() *palette.Palette
	CurrentGraph() domain.Snapshot
	Version() uint64
	CreateNode(ctx context.Context, kind string, pos domain.Position) (domain.Node, error)
	UpdateNode(ctx context.Context, id string, fn func(*domain.Node)) (domain.Node, error)
	RemoveNode(ctx context.Context, id string) error
	Connect(ctx context.Context, edge domain.Edge) (domain.Edge, error)
	Disconnect(ctx context.Context, id string) error
	Select(id string) (domain.Selection, error)
	ClearSelection()
	Selection() (domain.Selection, bool)
	Propose(ctx context.Context, model, text string) (domain.ValidatedProposal, error)
	Suggest(ctx context.Context, snap domain.Snapshot, model, text string) (domain.ValidatedProposal, error)
	ProposalStatus() reconcile.Status
	Advisories() []constraints.Advisory
	Mermaid() string
	Subscribe() (<-chan domain.GraphEvent, func())
}

var _ Workspace = (*aqueduct.Workspace)(nil)

// Server exposes a Workspace over HTTP.
type Server struct {
	ws       Workspace
	Streams  *StreamManager
	validate *validator.Validate
	logger   *slog.Logger
	origins  []string
	gatherer prometheus.Gatherer

	router      http.Handler
	unsubscribe func()
	pumpDone    chan struct{}
	closeOnce   sync.Once
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCORSOrigins sets the allowed origins. Default: "*".
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithMetrics serves the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates the HTTP handler for ws. Graph events are forwarded to
// SSE clients until Close is called or the workspace is closed.
func NewHandler(ws Workspace, opts ...Option) *Server {
	s := &Server{
		ws:       ws,
		validate: validator.New(),
		logger:   logging.NewNop(),
		origins:  []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	events, unsubscribe := ws.Subscribe()
	s.unsubscribe = unsubscribe
	s.pumpDone = make(chan struct{})
	go s.pump(events)

	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close detaches the server from the workspace and waits for the event pump
// to stop. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(s.unsubscribe)
	<-s.pumpDone
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/ai", s.PostAI)
		r.Get("/palette", s.GetPalette)

		r.Route("/graph", func(r chi.Router) {
			r.Get("/", s.GetGraph)
			r.Post("/nodes", s.CreateNode)
			r.Patch("/nodes/{id}", s.UpdateNode)
			r.Delete("/nodes/{id}", s.DeleteNode)
			r.Post("/edges", s.CreateEdge)
			r.Delete("/edges/{id}", s.DeleteEdge)

			r.Get("/selection", s.GetSelection)
			r.Put("/selection", s.PutSelection)
			r.Delete("/selection", s.ClearSelection)

			r.Get("/proposals", s.GetProposalStatus)
			r.Post("/proposals", s.CreateProposal)

			r.Get("/advisories", s.GetAdvisories)
			r.Get("/mermaid", s.GetMermaid)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

// pump forwards graph events to SSE subscribers.
func (s *Server) pump(events <-chan domain.GraphEvent) {
	defer close(s.pumpDone)
	for evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		s.Streams.Broadcast(s.ws.ID(), Message{Event: "graph", Data: string(data)})
	}
}

func (s *Server) broadcastStatus() {
	data, err := json.Marshal(s.ws.ProposalStatus())
	if err != nil {
		return
	}
	s.Streams.Broadcast(s.ws.ID(), Message{Event: "proposal", Data: string(data)})
}

// decode reads a JSON body and validates its struct tags. Any failure is a
// ValidationError carrying msg.
func (s *Server) decode(r *http.Request, v any, msg string) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ValidationError{Msg: msg}
	}
	if err := s.validate.Struct(v); err != nil {
		field := ""
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field = verrs[0].Field()
		}
		return &domain.ValidationError{Field: field, Msg: msg}
	}
	return nil
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	} else if err != nil {
		s.logger.Error("Failed to load OpenAPI spec", "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "aqueduct-http",
		"version":     strings.TrimSpace(aqueduct.Version),
		"api_version": apiVersion,
		"workspace":   s.ws.ID(),
	})
}

// AIRequest is the body of POST /api/ai.
type AIRequest struct {
	Nodes *[]domain.Node `json:"nodes" validate:"required"`
	Edges *[]domain.Edge `json:"edges" validate:"required"`
	Model string         `json:"model" validate:"required"`
	Text  string         `json:"text"`
}

// PostAI handles the POST /api/ai request. The caller's graph is sent to the
// backend and the validated answer is returned. Nothing is stored.
func (s *Server) PostAI(w http.ResponseWriter, r *http.Request) {
	var body AIRequest
	if err := s.decode(r, &body, domain.MsgInvalidRequest); err != nil {
		s.writeError(w, r, err)
		return
	}

	snap := domain.Snapshot{Nodes: *body.Nodes, Edges: *body.Edges}
	p, err := s.ws.Suggest(r.Context(), snap, body.Model, body.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetPalette handles the GET /api/palette request.
func (s *Server) GetPalette(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.Palette().Entries())
}

// GraphResponse is the body of GET /api/graph.
type GraphResponse struct {
	Nodes   []domain.Node `json:"nodes"`
	Edges   []domain.Edge `json:"edges"`
	Version uint64        `json:"version"`
}

// GetGraph handles the GET /api/graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	snap := s.ws.CurrentGraph()
	resp := GraphResponse{Nodes: snap.Nodes, Edges: snap.Edges, Version: s.ws.Version()}
	if resp.Nodes == nil {
		resp.Nodes = []domain.Node{}
	}
	if resp.Edges == nil {
		resp.Edges = []domain.Edge{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type createNodeRequest struct {
	Kind     string          `json:"kind" validate:"required"`
	Position domain.Position `json:"position"`
}

// CreateNode handles the POST /api/graph/nodes request.
func (s *Server) CreateNode(w http.ResponseWriter, r *http.Request) {
	var body createNodeRequest
	if err := s.decode(r, &body, `Ожидается объект с полем "kind".`); err != nil {
		s.writeError(w, r, err)
		return
	}
	node, err := s.ws.CreateNode(r.Context(), body.Kind, body.Position)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

type updateNodeRequest struct {
	Label      *string            `json:"label"`
	Position   *domain.Position   `json:"position"`
	Properties *domain.Properties `json:"properties"`
}

// UpdateNode handles the PATCH /api/graph/nodes/{id} request. Absent fields
// are left unchanged; properties replace the whole mapping.
func (s *Server) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var body updateNodeRequest
	if err := s.decode(r, &body, "Неверный формат JSON."); err != nil {
		s.writeError(w, r, err)
		return
	}
	node, err := s.ws.UpdateNode(r.Context(), chi.URLParam(r, "id"), func(n *domain.Node) {
		if body.Label != nil {
			n.Label = *body.Label
		}
		if body.Position != nil {
			n.Position = *body.Position
		}
		if body.Properties != nil {
			n.Properties = body.Properties.Clone()
		}
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// DeleteNode handles the DELETE /api/graph/nodes/{id} request.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.RemoveNode(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateEdge handles the POST /api/graph/edges request.
func (s *Server) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var edge domain.Edge
	if err := json.NewDecoder(r.Body).Decode(&edge); err != nil {
		s.writeError(w, r, &domain.ValidationError{Msg: `Ожидается объект с полями "source" и "target".`})
		return
	}
	created, err := s.ws.Connect(r.Context(), edge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeleteEdge handles the DELETE /api/graph/edges/{id} request.
func (s *Server) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Disconnect(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSelection handles the GET /api/graph/selection request.
func (s *Server) GetSelection(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.ws.Selection()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

type selectRequest struct {
	ID string `json:"id" validate:"required"`
}

// PutSelection handles the PUT /api/graph/selection request.
func (s *Server) PutSelection(w http.ResponseWriter, r *http.Request) {
	var body selectRequest
	if err := s.decode(r, &body, `Ожидается объект с полем "id".`); err != nil {
		s.writeError(w, r, err)
		return
	}
	sel, err := s.ws.Select(body.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// ClearSelection handles the DELETE /api/graph/selection request.
func (s *Server) ClearSelection(w http.ResponseWriter, r *http.Request) {
	s.ws.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// GetProposalStatus handles the GET /api/graph/proposals request.
func (s *Server) GetProposalStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.ProposalStatus())
}

type proposalRequest struct {
	Model string `json:"model" validate:"required"`
	Text  string `json:"text"`
}

// CreateProposal handles the POST /api/graph/proposals request: a full
// round-trip against the stored graph, committed on success.
func (s *Server) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var body proposalRequest
	if err := s.decode(r, &body, `Ожидается объект с полем "model".`); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.ws.Propose(r.Context(), body.Model, body.Text)
	s.broadcastStatus()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetAdvisories handles the GET /api/graph/advisories request.
func (s *Server) GetAdvisories(w http.ResponseWriter, r *http.Request) {
	advisories := s.ws.Advisories()
	if advisories == nil {
		advisories = []constraints.Advisory{}
	}
	writeJSON(w, http.StatusOK, advisories)
}

// GetMermaid handles the GET /api/graph/mermaid request.
func (s *Server) GetMermaid(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.ws.Mermaid())
}

// SubscribeEvents handles the GET /api/graph/events request (SSE).
// The optional watch parameter filters topics (graph, proposal).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	watch := make(map[string]bool)
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, topic := range strings.Split(raw, ",") {
			watch[strings.TrimSpace(topic)] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	workspaceID := s.ws.ID()
	s.logger.Info("SSE: Subscribing to workspace updates", "workspace_id", workspaceID)
	ch, cancel := s.Streams.Subscribe(workspaceID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "workspace_id", workspaceID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !watch[msg.Event] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}
