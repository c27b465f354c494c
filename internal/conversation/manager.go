package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/llm"
	"github.com/MikeSquared-Agency/nova/internal/metrics"
	"github.com/MikeSquared-Agency/nova/internal/persona"
)

// DefaultMinMessages is the message count after which a session is ready for
// extraction even without the analysis-complete marker.
const DefaultMinMessages = 10

// Retriever supplies a digest of similar past solutions for a user message.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, bool)
}

type Config struct {
	DefaultPersona string
	MinMessages    int
	Metrics        *metrics.Metrics
}

// Manager owns all live sessions, keyed by id. Sessions share nothing; each
// runs at most one turn at a time and queues the rest.
type Manager struct {
	personas       *persona.Registry
	defaultPersona string
	gen            llm.Generator
	retriever      Retriever
	minMessages    int
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// NewManager creates a manager. retriever may be nil.
func NewManager(personas *persona.Registry, gen llm.Generator, retriever Retriever, cfg Config, logger *slog.Logger) *Manager {
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = DefaultMinMessages
	}
	return &Manager{
		personas:       personas,
		defaultPersona: cfg.DefaultPersona,
		gen:            gen,
		retriever:      retriever,
		minMessages:    cfg.MinMessages,
		metrics:        cfg.Metrics,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
		sessions:       make(map[uuid.UUID]*session),
	}
}

// Start opens a session with the given persona (empty selects the default)
// and returns it together with the opening message.
func (m *Manager) Start(ctx context.Context, personaID string) (Snapshot, Reply, error) {
	if personaID == "" {
		personaID = m.defaultPersona
	}
	p, ok := m.personas.Get(personaID)
	if !ok {
		return Snapshot{}, Reply{}, fmt.Errorf("%w: %q", ErrUnknownPersona, personaID)
	}

	sctx, cancel := context.WithCancel(context.Background())
	now := m.now()
	s := &session{
		id:        uuid.New(),
		persona:   p,
		turn:      make(chan struct{}, 1),
		ctx:       sctx,
		cancel:    cancel,
		status:    StatusActive,
		createdAt: now,
		updatedAt: now,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.metrics.SessionOpened()

	reply := Reply{Phase: p.PhaseAt(0).ID}
	started := time.Now()
	raw, err := m.generate(ctx, s, p.GreetingPrompt())
	m.metrics.ObserveGeneration("greeting", started, err)
	if err != nil {
		m.logger.Warn("greeting generation failed, using fallback",
			"session_id", s.id, "persona", p.ID, "error", err)
		reply.Text = p.FallbackGreeting
		reply.Degraded = true
	} else {
		reply.Text = p.ParseReply(raw).Text
	}

	s.mu.Lock()
	s.messages = append(s.messages, Message{Role: RoleBot, Text: reply.Text, Timestamp: m.now()})
	s.updatedAt = m.now()
	s.mu.Unlock()

	m.logger.Info("session started", "session_id", s.id, "persona", p.ID, "degraded", reply.Degraded)
	return s.snapshot(), reply, nil
}

// AppendUserMessage runs one turn: retrieval, prompt, generation, append,
// phase advance and completion check. A provider failure yields the
// persona's fallback reply rather than an error.
func (m *Manager) AppendUserMessage(ctx context.Context, id uuid.UUID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	s, err := m.lookup(id)
	if err != nil {
		return Reply{}, err
	}

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-s.ctx.Done():
		return Reply{}, ErrSessionClosed
	}
	defer func() { <-s.turn }()

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	p := s.persona
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return Reply{}, ErrSessionClosed
	}
	s.messages = append(s.messages, Message{Role: RoleUser, Text: text, Timestamp: m.now()})
	phase := s.phase
	s.mu.Unlock()

	nonCommittal := p.IsNonCommittal(text)

	var digest string
	if m.retriever != nil {
		digest, _ = m.retriever.Retrieve(turnCtx, text)
	}

	prompt := p.BuildPrompt(s.history(), persona.State{Phase: phase, NonCommittal: nonCommittal}, digest)
	started := time.Now()
	raw, genErr := m.generate(turnCtx, s, prompt)
	m.metrics.ObserveGeneration("turn", started, genErr)

	if s.ctx.Err() != nil {
		return Reply{}, ErrSessionClosed
	}

	var parsed persona.ParsedReply
	if genErr != nil {
		m.logger.Warn("turn generation failed, using fallback",
			"session_id", s.id, "persona", p.ID, "phase", p.PhaseAt(phase).ID, "error", genErr)
		parsed = persona.ParsedReply{Text: p.FallbackReply}
	} else {
		parsed = p.ParseReply(raw)
	}

	s.mu.Lock()
	s.messages = append(s.messages, Message{Role: RoleBot, Text: parsed.Text, Timestamp: m.now()})
	if parsed.AnalysisComplete && s.phase == p.LastPhase() {
		s.ready = true
	}
	if parsed.PhaseDone && s.phase < p.LastPhase() {
		s.phase++
	}
	if len(s.messages) >= m.minMessages {
		s.ready = true
	}
	s.updatedAt = m.now()
	reply := Reply{
		Text:               parsed.Text,
		Phase:              p.PhaseAt(s.phase).ID,
		ReadyForExtraction: s.ready,
		Degraded:           genErr != nil,
	}
	s.mu.Unlock()

	if nonCommittal {
		reply.Choices = p.Choices(phase)
	}

	outcome := "ok"
	if reply.Degraded {
		outcome = "fallback"
	}
	m.metrics.RecordTurn(p.ID, outcome)
	m.logger.Debug("turn complete",
		"session_id", s.id, "phase", reply.Phase, "ready", reply.ReadyForExtraction, "noncommittal", nonCommittal)
	return reply, nil
}

// Abandon cancels any in-flight turn and drops the session.
func (m *Manager) Abandon(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.cancel()
	s.mu.Lock()
	if s.status == StatusActive {
		s.status = StatusAbandoned
	}
	s.updatedAt = m.now()
	s.mu.Unlock()

	m.metrics.SessionClosed()
	m.logger.Info("session abandoned", "session_id", id)
	return nil
}

func (m *Manager) Snapshot(id uuid.UUID) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(), nil
}

// Transcript returns the messages of a session that is ready for extraction.
func (m *Manager) Transcript(id uuid.UUID) ([]Message, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, ErrNotReady
	}
	return append([]Message(nil), s.messages...), nil
}

// MarkCompleted closes the session after its specification was extracted
// and drops it from memory. The returned snapshot is the final state; later
// lookups go through the caller's persisted copy.
func (m *Manager) MarkCompleted(id uuid.UUID) (Snapshot, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}

	s.cancel()
	s.mu.Lock()
	if s.status == StatusActive {
		s.status = StatusCompleted
	}
	s.updatedAt = m.now()
	s.mu.Unlock()

	m.metrics.SessionClosed()
	m.logger.Info("session completed", "session_id", id)
	return s.snapshot(), nil
}

func (m *Manager) lookup(id uuid.UUID) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) generate(ctx context.Context, s *session, p llm.Prompt) (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	return m.gen.Generate(ctx, p)
}
