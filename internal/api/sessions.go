package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/nova/internal/conversation"
	"github.com/MikeSquared-Agency/nova/internal/spec"
)

type startSessionRequest struct {
	Persona string `json:"persona,omitempty"`
}

type startSessionResponse struct {
	Session conversation.Snapshot `json:"session"`
	Reply   conversation.Reply    `json:"reply"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type extractionResponse struct {
	Specification *spec.Specification `json:"specification"`
	Created       bool                `json:"created"`
}

// startSession handles POST /api/v1/sessions
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decode(w, r, &req) {
		return
	}
	snap, reply, err := s.pipeline.StartSession(r.Context(), req.Persona)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, startSessionResponse{Session: snap, Reply: reply})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	snap, err := s.pipeline.Session(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) abandonSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.pipeline.AbandonSession(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendMessage handles POST /api/v1/sessions/{id}/messages
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	reply, err := s.pipeline.SendMessage(r.Context(), id, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// extractSpecification handles POST /api/v1/sessions/{id}/specification.
// Repeating the call returns the existing specification with 200.
func (s *Server) extractSpecification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sp, created, err := s.pipeline.ExtractSpecification(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, extractionResponse{Specification: sp, Created: created})
}
