package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/nova/internal/knowledge"
	"github.com/MikeSquared-Agency/nova/internal/spec"
)

type transitionRequest struct {
	Action spec.Op `json:"action"`
}

type designURLRequest struct {
	URL string `json:"url"`
}

type commentRequest struct {
	Author   spec.CommentAuthor `json:"author"`
	Content  string             `json:"content"`
	Blocking bool               `json:"blocking,omitempty"`
}

type commentResponse struct {
	Comment       spec.Comment        `json:"comment"`
	Specification *spec.Specification `json:"specification"`
}

type matchResponse struct {
	Card       knowledge.SolutionCard `json:"card"`
	Similarity float64                `json:"similarity"`
}

type searchResponse struct {
	Matches []matchResponse `json:"matches"`
	Count   int             `json:"count"`
}

func (s *Server) getSpecification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sp, err := s.pipeline.GetSpecification(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// transition handles POST /api/v1/specifications/{id}/transitions. Besides the
// status ops it accepts mark_design_paid and release_to_marketplace.
func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		sp  *spec.Specification
		err error
	)
	switch {
	case spec.IsStatusOp(req.Action):
		sp, err = s.pipeline.Transition(r.Context(), id, req.Action)
	case req.Action == spec.OpMarkDesignPaid:
		sp, err = s.pipeline.MarkDesignPaid(r.Context(), id)
	case req.Action == spec.OpRelease:
		sp, err = s.pipeline.ReleaseToMarketplace(r.Context(), id)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown action %q", req.Action)})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) setDesignURL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req designURLRequest
	if !decode(w, r, &req) {
		return
	}
	sp, err := s.pipeline.SetDesignURL(r.Context(), id, req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !decode(w, r, &req) {
		return
	}
	c, sp, err := s.pipeline.AddComment(r.Context(), id, req.Author, req.Content, req.Blocking)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentResponse{Comment: c, Specification: sp})
}

func (s *Server) resolveComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sp, err := s.pipeline.ResolveComment(r.Context(), id, chi.URLParam(r, "commentID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// draftSummary handles POST /api/v1/specifications/{id}/summary. The draft is
// returned for review and not stored.
func (s *Server) draftSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sum, err := s.pipeline.DraftSummary(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// archive handles POST /api/v1/specifications/{id}/knowledge
func (s *Server) archive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var sum knowledge.Summary
	if !decode(w, r, &sum) {
		return
	}
	card, err := s.pipeline.Archive(r.Context(), id, sum)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// searchKnowledge handles GET /api/v1/knowledge/search?q=
func (s *Server) searchKnowledge(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing query parameter q"})
		return
	}
	matches, err := s.pipeline.SearchKnowledge(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := searchResponse{Matches: make([]matchResponse, len(matches)), Count: len(matches)}
	for i, m := range matches {
		resp.Matches[i] = matchResponse{Card: m.Card, Similarity: m.Similarity}
	}
	writeJSON(w, http.StatusOK, resp)
}
