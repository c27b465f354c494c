package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/llm"
	"github.com/MikeSquared-Agency/nova/internal/metrics"
	"github.com/MikeSquared-Agency/nova/internal/spec"
)

// Summary is the reviewed content of a solution card.
type Summary struct {
	ProblemAbstract      string          `json:"problem_abstract"`
	SolutionPattern      string          `json:"solution_pattern"`
	IndustryContext      string          `json:"industry_context"`
	FunctionalityProfile []string        `json:"functionality_profile"`
	TechStackDetails     json.RawMessage `json:"tech_stack_details,omitempty"`
	UseCaseTags          []string        `json:"use_case_tags"`
	ExternalLinks        Links           `json:"external_links"`
	Supersedes           *uuid.UUID      `json:"supersedes,omitempty"`
}

var summarySchema = llm.Schema{
	Name:        "record_solution_card",
	Description: "Record an anonymized solution card for a delivered project.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"problem_abstract":      map[string]any{"type": "string"},
			"solution_pattern":      map[string]any{"type": "string"},
			"industry_context":      map[string]any{"type": "string"},
			"functionality_profile": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"tech_stack_details":    map[string]any{"type": "object"},
			"use_case_tags":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"problem_abstract", "solution_pattern", "industry_context", "functionality_profile", "use_case_tags"},
	},
}

const summarizerSystemPrompt = `You archive delivered software projects as reusable solution cards.

Given a completed requirements document, write a card that helps recognise
similar problems in future interviews.

Rules:
- problem_abstract: 1-2 sentences describing the business problem in plain language. No company names, no personal names.
- solution_pattern: 1-2 sentences describing the technical approach that solved it.
- industry_context: the industry in a few words, or "not specified".
- functionality_profile: short capability labels (e.g. "email parsing", "invoice export").
- tech_stack_details: an object naming the technologies used, keyed by role.
- use_case_tags: lowercase tags for search.
- Use only facts present in the document.

Respond with a single JSON object and nothing else.`

// Summarizer drafts a card summary from a specification for operator review.
type Summarizer struct {
	gen     llm.Generator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewSummarizer(gen llm.Generator, m *metrics.Metrics, logger *slog.Logger) *Summarizer {
	return &Summarizer{gen: gen, metrics: m, logger: logger}
}

func (s *Summarizer) Summarize(ctx context.Context, sp *spec.Specification) (Summary, error) {
	doc, err := json.MarshalIndent(sp, "", "  ")
	if err != nil {
		return Summary{}, fmt.Errorf("marshal specification: %w", err)
	}
	p := llm.Prompt{
		System:      summarizerSystemPrompt,
		Turns:       []llm.Turn{{Role: llm.RoleUser, Text: "Requirements document:\n\n" + string(doc)}},
		MaxTokens:   1024,
		Temperature: llm.Float(0),
	}

	started := time.Now()
	raw, err := s.generate(ctx, p)
	s.metrics.ObserveGeneration("summary", started, err)
	if err != nil {
		return Summary{}, fmt.Errorf("generate summary: %w", err)
	}

	var sum Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return Summary{}, fmt.Errorf("parse summary: %w", err)
	}
	if sum.IndustryContext == "" {
		sum.IndustryContext = sp.Industry
	}

	s.logger.Info("drafted solution card summary", "specification_id", sp.ID)
	return sum, nil
}

func (s *Summarizer) generate(ctx context.Context, p llm.Prompt) (json.RawMessage, error) {
	if sg, ok := s.gen.(llm.StructuredGenerator); ok {
		return sg.GenerateJSON(ctx, p, summarySchema)
	}
	text, err := s.gen.Generate(ctx, p)
	if err != nil {
		return nil, err
	}
	return llm.FirstJSONObject(text)
}

var ErrInvalidSummary = errors.New("summary requires problem_abstract and solution_pattern")

// Validate trims the text fields and checks the required ones.
func (s *Summary) Validate() error {
	s.ProblemAbstract = strings.TrimSpace(s.ProblemAbstract)
	s.SolutionPattern = strings.TrimSpace(s.SolutionPattern)
	s.IndustryContext = strings.TrimSpace(s.IndustryContext)
	if s.ProblemAbstract == "" || s.SolutionPattern == "" {
		return ErrInvalidSummary
	}
	if s.IndustryContext == "" {
		s.IndustryContext = spec.NotSpecified
	}
	return nil
}
