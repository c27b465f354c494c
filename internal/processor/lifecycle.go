package processor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/hermes"
	"github.com/MikeSquared-Agency/nova/internal/spec"
	"github.com/MikeSquared-Agency/nova/internal/store"
)

type mutation func(s *spec.Specification, now time.Time) (changed bool, err error)

// apply loads the specification, runs mutate on a copy and saves it with a
// version check. A concurrent write is retried once against fresh state.
func (p *Processor) apply(ctx context.Context, id uuid.UUID, op spec.Op, mutate mutation) (*spec.Specification, error) {
	for attempt := 0; ; attempt++ {
		current, err := p.store.GetSpecification(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		from := next.Status
		changed, err := mutate(next, p.now())
		if err != nil {
			p.metrics.RecordLifecycle(string(op), "rejected")
			p.logger.Info("lifecycle operation rejected", "specification_id", id, "op", op, "error", err)
			return nil, err
		}
		if !changed {
			p.metrics.RecordLifecycle(string(op), "noop")
			return current, nil
		}

		err = p.store.UpdateSpecification(ctx, next)
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			p.metrics.RecordLifecycle(string(op), "failed")
			p.metrics.RecordPersistenceFailure("specification")
			return nil, err
		}

		p.metrics.RecordLifecycle(string(op), "applied")
		evt := hermes.SpecificationTransitioned{
			SpecificationID:       next.ID,
			Op:                    string(op),
			From:                  string(from),
			To:                    string(next.Status),
			IsDesignPaid:          next.IsDesignPaid,
			ReleasedToMarketplace: next.ReleasedToMarketplace,
			Version:               next.Version,
			At:                    next.UpdatedAt,
		}
		if next.DesignURL != nil {
			evt.DesignURL = *next.DesignURL
		}
		p.publish(hermes.SubjectSpecificationTransitioned, evt)
		p.logger.Info("lifecycle operation applied",
			"specification_id", id, "op", op, "from", from, "to", next.Status)
		return next, nil
	}
}

// Transition applies a status operation (request_review, approve,
// start_work, complete, cancel).
func (p *Processor) Transition(ctx context.Context, id uuid.UUID, op spec.Op) (*spec.Specification, error) {
	return p.apply(ctx, id, op, func(s *spec.Specification, now time.Time) (bool, error) {
		return s.Transition(op, now)
	})
}

func (p *Processor) MarkDesignPaid(ctx context.Context, id uuid.UUID) (*spec.Specification, error) {
	return p.apply(ctx, id, spec.OpMarkDesignPaid, func(s *spec.Specification, now time.Time) (bool, error) {
		return s.MarkDesignPaid(now), nil
	})
}

func (p *Processor) SetDesignURL(ctx context.Context, id uuid.UUID, url string) (*spec.Specification, error) {
	return p.apply(ctx, id, spec.OpSetDesignURL, func(s *spec.Specification, now time.Time) (bool, error) {
		return s.SetDesignURL(url, now)
	})
}

func (p *Processor) ReleaseToMarketplace(ctx context.Context, id uuid.UUID) (*spec.Specification, error) {
	return p.apply(ctx, id, spec.OpRelease, func(s *spec.Specification, now time.Time) (bool, error) {
		return s.ReleaseToMarketplace(now)
	})
}

func (p *Processor) AddComment(ctx context.Context, id uuid.UUID, author spec.CommentAuthor, content string, blocking bool) (spec.Comment, *spec.Specification, error) {
	var added spec.Comment
	s, err := p.apply(ctx, id, spec.OpAddComment, func(s *spec.Specification, now time.Time) (bool, error) {
		c, err := s.AddComment(author, content, blocking, now)
		if err != nil {
			return false, err
		}
		added = c
		return true, nil
	})
	if err != nil {
		return spec.Comment{}, nil, err
	}
	return added, s, nil
}

// RequestChanges adds a blocking reviewer comment and moves a draft into
// review in the same write.
func (p *Processor) RequestChanges(ctx context.Context, id uuid.UUID, author spec.CommentAuthor, content string) (spec.Comment, *spec.Specification, error) {
	var added spec.Comment
	s, err := p.apply(ctx, id, spec.OpRequestChanges, func(s *spec.Specification, now time.Time) (bool, error) {
		c, err := s.RequestChanges(author, content, now)
		if err != nil {
			return false, err
		}
		added = c
		return true, nil
	})
	if err != nil {
		return spec.Comment{}, nil, err
	}
	return added, s, nil
}

func (p *Processor) ResolveComment(ctx context.Context, id uuid.UUID, commentID string) (*spec.Specification, error) {
	return p.apply(ctx, id, spec.OpResolveComment, func(s *spec.Specification, now time.Time) (bool, error) {
		return s.ResolveComment(commentID, now)
	})
}
