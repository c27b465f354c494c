package processor

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/hermes"
	"github.com/MikeSquared-Agency/nova/internal/knowledge"
	"github.com/MikeSquared-Agency/nova/internal/spec"
)

var ErrKnowledgeDisabled = errors.New("knowledge base is not configured")

// DraftSummary asks the model for a solution card draft an operator can
// review before archiving.
func (p *Processor) DraftSummary(ctx context.Context, id uuid.UUID) (knowledge.Summary, error) {
	if p.summarizer == nil {
		return knowledge.Summary{}, ErrKnowledgeDisabled
	}
	s, err := p.store.GetSpecification(ctx, id)
	if err != nil {
		return knowledge.Summary{}, err
	}
	if s.Status != spec.StatusCompleted {
		return knowledge.Summary{}, knowledge.ErrNotCompleted
	}
	return p.summarizer.Summarize(ctx, s)
}

// Archive commits a reviewed summary of a completed specification to the
// knowledge base.
func (p *Processor) Archive(ctx context.Context, id uuid.UUID, sum knowledge.Summary) (knowledge.SolutionCard, error) {
	if p.writer == nil {
		return knowledge.SolutionCard{}, ErrKnowledgeDisabled
	}
	s, err := p.store.GetSpecification(ctx, id)
	if err != nil {
		return knowledge.SolutionCard{}, err
	}
	card, err := p.writer.Commit(ctx, s, sum)
	if err != nil {
		return knowledge.SolutionCard{}, err
	}
	p.publish(hermes.SubjectCardCommitted, hermes.CardCommitted{
		CardID:          card.ID,
		SpecificationID: s.ID,
		Embedded:        card.Embedding != nil,
		Supersedes:      card.Supersedes,
	})
	return card, nil
}

// SearchKnowledge returns cards similar to query. Unlike retrieval during an
// interview, failures are returned to the caller.
func (p *Processor) SearchKnowledge(ctx context.Context, query string) ([]knowledge.Match, error) {
	if p.retriever == nil {
		return nil, ErrKnowledgeDisabled
	}
	return p.retriever.Search(ctx, query)
}
