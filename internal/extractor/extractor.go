package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MikeSquared-Agency/nova/internal/conversation"
	"github.com/MikeSquared-Agency/nova/internal/llm"
	"github.com/MikeSquared-Agency/nova/internal/metrics"
	"github.com/MikeSquared-Agency/nova/internal/spec"
)

const (
	DefaultHourlyRateEUR = 80
	extractionMaxTokens  = 4096
)

type Config struct {
	HourlyRateEUR float64
	Metrics       *metrics.Metrics
}

type Extractor struct {
	gen        llm.Generator
	hourlyRate float64
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

func New(gen llm.Generator, cfg Config, logger *slog.Logger) *Extractor {
	if cfg.HourlyRateEUR <= 0 {
		cfg.HourlyRateEUR = DefaultHourlyRateEUR
	}
	return &Extractor{
		gen:        gen,
		hourlyRate: cfg.HourlyRateEUR,
		metrics:    cfg.Metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Extract turns a finished transcript into a draft specification with a
// single provider call. Any failure is an *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, sessionID uuid.UUID, transcript []conversation.Message) (*spec.Specification, error) {
	fail := func(reason string, err error) (*spec.Specification, error) {
		e.metrics.RecordExtraction(reason)
		return nil, &ExtractionError{SessionID: sessionID, Reason: reason, Err: err}
	}

	if len(transcript) == 0 {
		return fail("empty_transcript", nil)
	}

	text, ownerText := formatTranscript(transcript)
	p := llm.Prompt{
		System:      systemPrompt,
		Turns:       []llm.Turn{{Role: llm.RoleUser, Text: userPromptHeader + text}},
		MaxTokens:   extractionMaxTokens,
		Temperature: llm.Float(0),
	}

	e.logger.Info("extracting specification",
		"session_id", sessionID,
		"messages", len(transcript),
		"transcript_len", len(text),
	)

	started := time.Now()
	raw, err := e.generate(ctx, p)
	e.metrics.ObserveGeneration("extraction", started, err)
	if errors.Is(err, llm.ErrNoJSONObject) {
		return fail("parse", err)
	}
	if err != nil {
		return fail("generation", err)
	}

	var resp llmResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		e.logger.Error("failed to parse extraction response",
			"session_id", sessionID,
			"error", err,
			"raw", string(raw),
		)
		return fail("parse", err)
	}

	s, err := e.build(sessionID, resp, newFactSet(ownerText))
	if err != nil {
		return fail("invalid", err)
	}

	e.metrics.RecordExtraction("ok")
	e.logger.Info("extraction complete",
		"session_id", sessionID,
		"specification_id", s.ID,
		"requirements", len(s.Requirements),
	)
	return s, nil
}

func (e *Extractor) generate(ctx context.Context, p llm.Prompt) (json.RawMessage, error) {
	if sg, ok := e.gen.(llm.StructuredGenerator); ok {
		return sg.GenerateJSON(ctx, p, extractionSchema)
	}
	text, err := e.gen.Generate(ctx, p)
	if err != nil {
		return nil, err
	}
	return llm.FirstJSONObject(text)
}

func (e *Extractor) build(sessionID uuid.UUID, r llmResponse, facts factSet) (*spec.Specification, error) {
	title := strings.TrimSpace(r.Title)
	summary := strings.TrimSpace(r.ProblemSummary)
	if title == "" {
		return nil, fmt.Errorf("missing title")
	}
	if summary == "" {
		return nil, fmt.Errorf("missing problemSummary")
	}
	if len(r.Requirements) == 0 {
		return nil, fmt.Errorf("no requirements")
	}

	id := uuid.New()
	short := shortID(id)
	now := e.now()

	reqs := make([]spec.Requirement, 0, len(r.Requirements))
	for i, lr := range r.Requirements {
		category := strings.TrimSpace(lr.Category)
		desc := strings.TrimSpace(lr.Description)
		if category == "" || desc == "" {
			return nil, fmt.Errorf("requirement %d: missing category or description", i+1)
		}
		req := spec.Requirement{
			ID:          fmt.Sprintf("REQ-%s-%03d", short, i+1),
			Category:    category,
			Description: desc,
			Priority:    normalizePriority(lr.Priority),
		}
		if h := lr.ManualHoursPerWeek; h != nil && *h > 0 && facts.has(*h) {
			v := *h
			req.ManualHoursPerWeek = &v
		}
		reqs = append(reqs, req)
	}

	outcome := spec.Outcome{
		Summary:            strings.TrimSpace(r.DesiredOutcome.Summary),
		TechStack:          r.DesiredOutcome.TechStack,
		DataFields:         r.DesiredOutcome.DataFields,
		AcceptanceCriteria: r.DesiredOutcome.AcceptanceCriteria,
	}
	if outcome.Summary == "" {
		outcome.Summary = spec.NotSpecified
	}
	if r.EstimatedHours > 0 {
		hours := math.Round(r.EstimatedHours)
		outcome.EffortEstimate = &spec.EffortEstimate{
			Hours:   hours,
			CostEUR: formatEUR(hours * e.hourlyRate),
			Basis:   fmt.Sprintf("%.0f h at %.0f EUR/h", hours, e.hourlyRate),
		}
	}

	return &spec.Specification{
		ID:              id,
		SourceSessionID: sessionID,
		ProjectNumber:   "NV-" + short,
		Title:           title,
		ProblemSummary:  summary,
		Requirements:    reqs,
		Industry:        facts.normalizeFact(r.Industry),
		TeamSize:        facts.normalizeFact(r.TeamSize),
		BudgetRange:     facts.normalizeFact(r.BudgetRange),
		DesiredOutcome:  outcome,
		Status:          spec.StatusDraft,
		Comments:        []spec.Comment{},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// formatTranscript renders the transcript for the prompt and returns the
// owner's messages separately for fact checking.
func formatTranscript(msgs []conversation.Message) (string, string) {
	var all, owner strings.Builder
	for _, m := range msgs {
		speaker := "Nova"
		if m.Role == conversation.RoleUser {
			speaker = "Owner"
			owner.WriteString(m.Text)
			owner.WriteString("\n")
		}
		fmt.Fprintf(&all, "%s: %s\n\n", speaker, m.Text)
	}
	return all.String(), owner.String()
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// formatEUR renders an amount with German thousands separators, e.g. "2.400 €".
// eurPrinter groups thousands the German way: 2.400 €.
var eurPrinter = message.NewPrinter(language.German)

func formatEUR(amount float64) string {
	return eurPrinter.Sprintf("%d €", int64(math.Round(amount)))
}
