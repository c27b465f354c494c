// Package conversation runs interview sessions: one ordered, isolated message
// history per session, advanced one turn at a time.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/llm"
	"github.com/MikeSquared-Agency/nova/internal/persona"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session is closed")
	ErrNotReady        = errors.New("session is not ready for extraction")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrUnknownPersona  = errors.New("unknown persona")
)

// Role is the wire name of a message author.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is immutable once appended.
type Message struct {
	Role      Role      `json:"type"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Valid reports whether s is a known session status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// Overview is a listing entry: a session's state without its messages.
type Overview struct {
	ID                 uuid.UUID `json:"id"`
	PersonaID          string    `json:"persona"`
	Phase              string    `json:"phase"`
	Status             Status    `json:"status"`
	ReadyForExtraction bool      `json:"readyForExtraction"`
	MessageCount       int       `json:"messageCount"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Snapshot is a copy of a session's state at one point in time.
type Snapshot struct {
	ID                 uuid.UUID `json:"id"`
	PersonaID          string    `json:"persona"`
	Messages           []Message `json:"messages"`
	Phase              string    `json:"phase"`
	PhaseIndex         int       `json:"phaseIndex"`
	Status             Status    `json:"status"`
	ReadyForExtraction bool      `json:"readyForExtraction"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Reply is what the user sees after a turn.
type Reply struct {
	Text               string   `json:"text"`
	Choices            []string `json:"choices,omitempty"`
	Phase              string   `json:"phase"`
	ReadyForExtraction bool     `json:"readyForExtraction"`
	// Degraded is set when the provider failed and a canned reply was used.
	Degraded bool `json:"degraded,omitempty"`
}

type session struct {
	id      uuid.UUID
	persona *persona.Persona

	// turn is a one-slot semaphore; holding it means a turn is in flight.
	turn   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	messages  []Message
	phase     int
	status    Status
	ready     bool
	createdAt time.Time
	updatedAt time.Time
}

func (s *session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:                 s.id,
		PersonaID:          s.persona.ID,
		Messages:           append([]Message(nil), s.messages...),
		Phase:              s.persona.PhaseAt(s.phase).ID,
		PhaseIndex:         s.phase,
		Status:             s.status,
		ReadyForExtraction: s.ready,
		CreatedAt:          s.createdAt,
		UpdatedAt:          s.updatedAt,
	}
}

func (s *session) history() []llm.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := make([]llm.Turn, 0, len(s.messages))
	for _, m := range s.messages {
		role := llm.RoleUser
		if m.Role == RoleBot {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Turn{Role: role, Text: m.Text})
	}
	return turns
}
