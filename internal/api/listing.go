package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/nova/internal/conversation"
	"github.com/MikeSquared-Agency/nova/internal/spec"
	"github.com/MikeSquared-Agency/nova/internal/store"
)

type specificationListResponse struct {
	Specifications []*spec.Specification `json:"specifications"`
	Count          int                   `json:"count"`
	ByStatus       map[spec.Status]int   `json:"byStatus"`
}

type sessionListResponse struct {
	Sessions []conversation.Overview     `json:"sessions"`
	Count    int                         `json:"count"`
	ByStatus map[conversation.Status]int `json:"byStatus"`
}

// listSpecifications handles GET /api/v1/specifications?status=&released=&limit=
func (s *Server) listSpecifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.SpecificationFilter

	if v := q.Get("status"); v != "" {
		f.Status = spec.Status(v)
		if !f.Status.Valid() {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown status %q", v)})
			return
		}
	}
	if v := q.Get("released"); v != "" {
		released, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "released must be true or false"})
			return
		}
		f.Released = &released
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	f.Limit = limit

	specs, counts, err := s.pipeline.ListSpecifications(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if specs == nil {
		specs = []*spec.Specification{}
	}
	writeJSON(w, http.StatusOK, specificationListResponse{Specifications: specs, Count: len(specs), ByStatus: counts})
}

// listSessions handles GET /api/v1/sessions?status=&limit=
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	var f store.ConversationFilter
	if v := r.URL.Query().Get("status"); v != "" {
		f.Status = conversation.Status(v)
		if !f.Status.Valid() {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown status %q", v)})
			return
		}
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	f.Limit = limit

	convs, counts, err := s.pipeline.ListConversations(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if convs == nil {
		convs = []conversation.Overview{}
	}
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: convs, Count: len(convs), ByStatus: counts})
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
		return 0, false
	}
	return n, true
}
