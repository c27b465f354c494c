package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/llm"
	"github.com/MikeSquared-Agency/nova/internal/metrics"
	"github.com/MikeSquared-Agency/nova/internal/spec"
)

var ErrNotCompleted = errors.New("only completed specifications can be archived")

// Writer archives completed specifications as solution cards.
type Writer struct {
	embedder llm.Embedder
	store    Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewWriter(embedder llm.Embedder, store Store, m *metrics.Metrics, logger *slog.Logger) *Writer {
	return &Writer{
		embedder: embedder,
		store:    store,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Commit stores a new card for sp. A failed embedding still stores the card
// without a vector; it is then invisible to similarity search.
func (w *Writer) Commit(ctx context.Context, sp *spec.Specification, sum Summary) (SolutionCard, error) {
	if sp.Status != spec.StatusCompleted {
		return SolutionCard{}, ErrNotCompleted
	}
	if err := sum.Validate(); err != nil {
		return SolutionCard{}, err
	}

	specID := sp.ID
	card := SolutionCard{
		ID:                    uuid.New(),
		SourceSpecificationID: &specID,
		ProjectNumber:         sp.ProjectNumber,
		ProblemAbstract:       sum.ProblemAbstract,
		SolutionPattern:       sum.SolutionPattern,
		IndustryContext:       sum.IndustryContext,
		FunctionalityProfile:  dedupe(sum.FunctionalityProfile),
		TechStackDetails:      sum.TechStackDetails,
		UseCaseTags:           dedupe(sum.UseCaseTags),
		ExternalLinks:         sum.ExternalLinks,
		Supersedes:            sum.Supersedes,
		CreatedAt:             w.now(),
	}

	vec, err := w.embedder.Embed(ctx, card.ProblemAbstract)
	if err != nil {
		w.logger.Warn("embedding solution card failed, storing without vector",
			"specification_id", sp.ID, "card_id", card.ID, "error", err)
	} else {
		card.Embedding = vec
	}

	if err := w.store.InsertCard(ctx, &card); err != nil {
		return SolutionCard{}, fmt.Errorf("insert solution card: %w", err)
	}

	w.metrics.RecordCard(card.Embedding != nil)
	w.logger.Info("solution card committed",
		"specification_id", sp.ID, "card_id", card.ID, "embedded", card.Embedding != nil)
	return card, nil
}

// dedupe drops blanks and repeats, keeping first occurrence order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
