package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/nova/internal/conversation"
	"github.com/MikeSquared-Agency/nova/internal/knowledge"
	"github.com/MikeSquared-Agency/nova/internal/spec"
	"github.com/MikeSquared-Agency/nova/internal/store"
)

// Pipeline is the part of the processor the HTTP surface drives.
// Implemented by *processor.Processor.
type Pipeline interface {
	StartSession(ctx context.Context, personaID string) (conversation.Snapshot, conversation.Reply, error)
	SendMessage(ctx context.Context, sessionID uuid.UUID, text string) (conversation.Reply, error)
	Session(ctx context.Context, sessionID uuid.UUID) (conversation.Snapshot, error)
	AbandonSession(ctx context.Context, sessionID uuid.UUID) error
	ExtractSpecification(ctx context.Context, sessionID uuid.UUID) (*spec.Specification, bool, error)
	ListConversations(ctx context.Context, f store.ConversationFilter) ([]conversation.Overview, map[conversation.Status]int, error)

	GetSpecification(ctx context.Context, id uuid.UUID) (*spec.Specification, error)
	ListSpecifications(ctx context.Context, f store.SpecificationFilter) ([]*spec.Specification, map[spec.Status]int, error)
	Transition(ctx context.Context, id uuid.UUID, op spec.Op) (*spec.Specification, error)
	MarkDesignPaid(ctx context.Context, id uuid.UUID) (*spec.Specification, error)
	SetDesignURL(ctx context.Context, id uuid.UUID, url string) (*spec.Specification, error)
	ReleaseToMarketplace(ctx context.Context, id uuid.UUID) (*spec.Specification, error)
	AddComment(ctx context.Context, id uuid.UUID, author spec.CommentAuthor, content string, blocking bool) (spec.Comment, *spec.Specification, error)
	ResolveComment(ctx context.Context, id uuid.UUID, commentID string) (*spec.Specification, error)

	DraftSummary(ctx context.Context, id uuid.UUID) (knowledge.Summary, error)
	Archive(ctx context.Context, id uuid.UUID, sum knowledge.Summary) (knowledge.SolutionCard, error)
	SearchKnowledge(ctx context.Context, query string) ([]knowledge.Match, error)
}

type Server struct {
	router   *chi.Mux
	pipeline Pipeline
	logger   *slog.Logger
}

// NewServer builds the router. Routes under /api/v1 require apiToken as a
// bearer token when it is non-empty.
func NewServer(apiToken string, p Pipeline, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		pipeline: p,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/nova/status", s.status)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))

		r.Get("/sessions", s.listSessions)
		r.Post("/sessions", s.startSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.abandonSession)
			r.Post("/messages", s.sendMessage)
			r.Post("/specification", s.extractSpecification)
		})

		r.Get("/specifications", s.listSpecifications)
		r.Route("/specifications/{id}", func(r chi.Router) {
			r.Get("/", s.getSpecification)
			r.Post("/transitions", s.transition)
			r.Post("/design-url", s.setDesignURL)
			r.Post("/comments", s.addComment)
			r.Post("/comments/{commentID}/resolve", s.resolveComment)
			r.Post("/summary", s.draftSummary)
			r.Post("/knowledge", s.archive)
		})

		r.Get("/knowledge/search", s.searchKnowledge)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":  "nova",
		"status": "interviewing",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pathID parses the uuid URL parameter name, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}
