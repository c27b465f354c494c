package processor

import (
	"context"

	"github.com/MikeSquared-Agency/nova/internal/conversation"
	"github.com/MikeSquared-Agency/nova/internal/spec"
	"github.com/MikeSquared-Agency/nova/internal/store"
)

// ListSpecifications returns the matching specifications together with the
// totals per status across all specifications.
func (p *Processor) ListSpecifications(ctx context.Context, f store.SpecificationFilter) ([]*spec.Specification, map[spec.Status]int, error) {
	specs, err := p.store.ListSpecifications(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	counts, err := p.store.CountSpecificationsByStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	return specs, counts, nil
}

// ListConversations returns stored conversations and the totals per status.
func (p *Processor) ListConversations(ctx context.Context, f store.ConversationFilter) ([]conversation.Overview, map[conversation.Status]int, error) {
	convs, err := p.store.ListConversations(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	counts, err := p.store.CountConversationsByStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	return convs, counts, nil
}
