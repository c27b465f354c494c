package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/slack"
	"github.com/MikeSquared-Agency/nova/internal/spec"
	"github.com/MikeSquared-Agency/nova/internal/store"
)

// Reviewer posts new specifications for human review. Implemented by
// *slack.Poster.
type Reviewer interface {
	PostReviewSummary(ctx context.Context, s *spec.Specification) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// ReviewIndex remembers which review message belongs to which specification.
// Implemented by *store.Store.
type ReviewIndex interface {
	SaveReviewMessage(ctx context.Context, messageTS string, specificationID uuid.UUID) error
	SpecificationForReview(ctx context.Context, messageTS string) (uuid.UUID, error)
}

func (p *Processor) postForReview(ctx context.Context, s *spec.Specification) {
	if p.reviewer == nil || p.reviews == nil {
		return
	}
	ts, err := p.reviewer.PostReviewSummary(ctx, s)
	if err != nil {
		p.logger.Warn("failed to post specification for review", "specification_id", s.ID, "error", err)
		return
	}
	if err := p.reviews.SaveReviewMessage(ctx, ts, s.ID); err != nil {
		p.metrics.RecordPersistenceFailure("review_message")
		p.logger.Error("failed to save review message", "specification_id", s.ID, "ts", ts, "error", err)
	}
}

// HandleReaction is the NATS handler for Slack reactions on review messages.
// Approval moves the specification to approved; a thumbs down moves a draft
// into review with a blocking reviewer comment.
func (p *Processor) HandleReaction(subject string, data []byte) {
	if p.reviewer == nil || p.reviews == nil {
		return
	}
	evt, err := slack.ParseReactionEvent(data)
	if err != nil {
		p.logger.Error("failed to parse reaction event", "subject", subject, "error", err)
		return
	}

	verdict := slack.ParseReaction(evt.Reaction)
	if verdict == slack.VerdictUnknown || verdict == slack.VerdictSkipped {
		p.logger.Debug("ignoring reaction", "reaction", evt.Reaction, "ts", evt.MessageTS)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	id, err := p.reviews.SpecificationForReview(ctx, evt.MessageTS)
	if errors.Is(err, store.ErrNotFound) {
		// Reaction on a message we did not post.
		return
	}
	if err != nil {
		p.logger.Error("failed to look up review message", "ts", evt.MessageTS, "error", err)
		return
	}

	var reply string
	switch verdict {
	case slack.VerdictApproved:
		_, err = p.Transition(ctx, id, spec.OpApprove)
		reply = fmt.Sprintf("Approved by <@%s>.", evt.UserID)
	case slack.VerdictChangesNeeded:
		_, _, err = p.RequestChanges(ctx, id, spec.AuthorReviewer,
			fmt.Sprintf("Changes requested in Slack review by %s.", evt.UserID))
		reply = fmt.Sprintf("<@%s> requested changes. Approval is blocked until the comment is resolved.", evt.UserID)
	}

	var lifecycleErr *spec.LifecycleError
	switch {
	case errors.As(err, &lifecycleErr):
		reply = "Not applied: " + lifecycleErr.Reason
	case err != nil:
		p.logger.Error("failed to apply review verdict",
			"specification_id", id, "verdict", verdict, "error", err)
		return
	}

	p.logger.Info("review verdict received",
		"specification_id", id, "verdict", verdict, "user", evt.UserID)
	if err := p.reviewer.PostThread(ctx, evt.MessageTS, reply); err != nil {
		p.logger.Warn("failed to post review reply", "ts", evt.MessageTS, "error", err)
	}
}
