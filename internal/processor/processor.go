package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/conversation"
	"github.com/MikeSquared-Agency/nova/internal/hermes"
	"github.com/MikeSquared-Agency/nova/internal/knowledge"
	"github.com/MikeSquared-Agency/nova/internal/metrics"
	"github.com/MikeSquared-Agency/nova/internal/spec"
	"github.com/MikeSquared-Agency/nova/internal/store"
)

// Store is the persistence the pipeline needs. Implemented by *store.Store.
type Store interface {
	CreateSpecification(ctx context.Context, s *spec.Specification) error
	GetSpecification(ctx context.Context, id uuid.UUID) (*spec.Specification, error)
	GetSpecificationBySession(ctx context.Context, sessionID uuid.UUID) (*spec.Specification, error)
	UpdateSpecification(ctx context.Context, s *spec.Specification) error
	SaveConversation(ctx context.Context, snap conversation.Snapshot) error
	GetConversation(ctx context.Context, id uuid.UUID) (conversation.Snapshot, error)
	ListSpecifications(ctx context.Context, f store.SpecificationFilter) ([]*spec.Specification, error)
	CountSpecificationsByStatus(ctx context.Context) (map[spec.Status]int, error)
	ListConversations(ctx context.Context, f store.ConversationFilter) ([]conversation.Overview, error)
	CountConversationsByStatus(ctx context.Context) (map[conversation.Status]int, error)
}

type Extractor interface {
	Extract(ctx context.Context, sessionID uuid.UUID, transcript []conversation.Message) (*spec.Specification, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, s *spec.Specification) (knowledge.Summary, error)
}

type Deps struct {
	Sessions   *conversation.Manager
	Extractor  Extractor
	Store      Store
	Summarizer Summarizer
	Writer     *knowledge.Writer
	Retriever  *knowledge.Retriever
	Publisher  hermes.Publisher
	Metrics    *metrics.Metrics

	// Reviewer and Reviews enable the Slack review loop. Both are optional.
	Reviewer Reviewer
	Reviews  ReviewIndex
}

// Processor orchestrates Nova's pipeline: interview turns, extraction,
// specification lifecycle and archival to the knowledge base.
type Processor struct {
	sessions   *conversation.Manager
	extractor  Extractor
	store      Store
	summarizer Summarizer
	writer     *knowledge.Writer
	retriever  *knowledge.Retriever
	publisher  hermes.Publisher
	metrics    *metrics.Metrics
	reviewer   Reviewer
	reviews    ReviewIndex
	logger     *slog.Logger
	now        func() time.Time
}

func New(d Deps, logger *slog.Logger) *Processor {
	pub := d.Publisher
	if pub == nil {
		pub = hermes.Noop{}
	}
	return &Processor{
		sessions:   d.Sessions,
		extractor:  d.Extractor,
		store:      d.Store,
		summarizer: d.Summarizer,
		writer:     d.Writer,
		retriever:  d.Retriever,
		publisher:  pub,
		metrics:    d.Metrics,
		reviewer:   d.Reviewer,
		reviews:    d.Reviews,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// StartSession opens an interview and returns the greeting.
func (p *Processor) StartSession(ctx context.Context, personaID string) (conversation.Snapshot, conversation.Reply, error) {
	snap, reply, err := p.sessions.Start(ctx, personaID)
	if err != nil {
		return conversation.Snapshot{}, conversation.Reply{}, err
	}
	p.persistConversation(ctx, snap)
	return snap, reply, nil
}

// SendMessage runs one interview turn. A failed save is logged and the
// conversation continues.
func (p *Processor) SendMessage(ctx context.Context, sessionID uuid.UUID, text string) (conversation.Reply, error) {
	reply, err := p.sessions.AppendUserMessage(ctx, sessionID, text)
	if errors.Is(err, conversation.ErrSessionNotFound) {
		// Completed and abandoned sessions only live in the store.
		if stored, gerr := p.store.GetConversation(ctx, sessionID); gerr == nil && stored.Status != conversation.StatusActive {
			return conversation.Reply{}, conversation.ErrSessionClosed
		}
	}
	if err != nil {
		return conversation.Reply{}, err
	}
	if snap, err := p.sessions.Snapshot(sessionID); err == nil {
		p.persistConversation(ctx, snap)
	}
	return reply, nil
}

// Session returns a live session, or the stored copy of one that is no longer
// held in memory.
func (p *Processor) Session(ctx context.Context, sessionID uuid.UUID) (conversation.Snapshot, error) {
	snap, err := p.sessions.Snapshot(sessionID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, conversation.ErrSessionNotFound) {
		return conversation.Snapshot{}, err
	}
	snap, err = p.store.GetConversation(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return conversation.Snapshot{}, conversation.ErrSessionNotFound
	}
	return snap, err
}

// AbandonSession stops the session and records it as abandoned.
func (p *Processor) AbandonSession(ctx context.Context, sessionID uuid.UUID) error {
	snap, err := p.sessions.Snapshot(sessionID)
	if err != nil {
		return err
	}
	if err := p.sessions.Abandon(sessionID); err != nil {
		return err
	}
	if snap.Status == conversation.StatusActive {
		snap.Status = conversation.StatusAbandoned
	}
	snap.UpdatedAt = p.now()
	p.persistConversation(ctx, snap)
	return nil
}

// ExtractSpecification creates the specification for a finished session.
// Repeating the call for the same session returns the existing
// specification with created=false.
func (p *Processor) ExtractSpecification(ctx context.Context, sessionID uuid.UUID) (s *spec.Specification, created bool, err error) {
	existing, err := p.store.GetSpecificationBySession(ctx, sessionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	transcript, err := p.sessions.Transcript(sessionID)
	if err != nil {
		return nil, false, err
	}

	s, err = p.extractor.Extract(ctx, sessionID, transcript)
	if err != nil {
		p.logger.Warn("extraction failed, conversation stays open", "session_id", sessionID, "error", err)
		return nil, false, err
	}

	if err := p.store.CreateSpecification(ctx, s); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			existing, gerr := p.store.GetSpecificationBySession(ctx, sessionID)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		p.metrics.RecordPersistenceFailure("specification")
		return nil, false, err
	}

	if snap, err := p.sessions.MarkCompleted(sessionID); err != nil {
		p.logger.Warn("failed to close session", "session_id", sessionID, "error", err)
	} else {
		p.persistConversation(ctx, snap)
	}

	p.publish(hermes.SubjectSpecificationCreated, hermes.SpecificationCreated{
		SpecificationID: s.ID,
		SessionID:       sessionID,
		ProjectNumber:   s.ProjectNumber,
		Title:           s.Title,
		Requirements:    len(s.Requirements),
		CreatedAt:       s.CreatedAt,
	})
	p.postForReview(ctx, s)
	p.logger.Info("specification created",
		"session_id", sessionID,
		"specification_id", s.ID,
		"project_number", s.ProjectNumber,
	)
	return s, true, nil
}

func (p *Processor) GetSpecification(ctx context.Context, id uuid.UUID) (*spec.Specification, error) {
	return p.store.GetSpecification(ctx, id)
}

func (p *Processor) persistConversation(ctx context.Context, snap conversation.Snapshot) {
	if err := p.store.SaveConversation(ctx, snap); err != nil {
		p.metrics.RecordPersistenceFailure("conversation")
		p.logger.Error("failed to save conversation", "session_id", snap.ID, "error", err)
	}
}

func (p *Processor) publish(subject string, evt any) {
	if err := p.publisher.Publish(subject, evt); err != nil {
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func errInvalidID(raw string, err error) error {
	return fmt.Errorf("invalid specification id %q: %w", raw, err)
}
