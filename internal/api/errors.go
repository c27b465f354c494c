package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/nova/internal/conversation"
	"github.com/MikeSquared-Agency/nova/internal/extractor"
	"github.com/MikeSquared-Agency/nova/internal/knowledge"
	"github.com/MikeSquared-Agency/nova/internal/llm"
	"github.com/MikeSquared-Agency/nova/internal/processor"
	"github.com/MikeSquared-Agency/nova/internal/spec"
	"github.com/MikeSquared-Agency/nova/internal/store"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func statusFor(err error) int {
	var (
		lifecycleErr  *spec.LifecycleError
		extractionErr *extractor.ExtractionError
		generationErr *llm.GenerationError
		retrievalErr  *knowledge.RetrievalError
	)
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrEmptyMessage), errors.Is(err, conversation.ErrUnknownPersona):
		return http.StatusBadRequest
	case errors.Is(err, conversation.ErrNotReady), errors.Is(err, conversation.ErrSessionClosed),
		errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.As(err, &lifecycleErr), errors.Is(err, knowledge.ErrNotCompleted),
		errors.Is(err, knowledge.ErrInvalidSummary):
		return http.StatusUnprocessableEntity
	case errors.As(err, &extractionErr), errors.As(err, &generationErr), errors.As(err, &retrievalErr):
		return http.StatusBadGateway
	case errors.Is(err, processor.ErrKnowledgeDisabled), errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := errorBody{Error: err.Error()}

	var extractionErr *extractor.ExtractionError
	if errors.As(err, &extractionErr) {
		body.Reason = extractionErr.Reason
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
		if code == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, body)
}
