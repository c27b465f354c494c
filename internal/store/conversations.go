package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/nova/internal/conversation"
)

// SaveConversation upserts a session snapshot. Messages are stored in their
// wire shape.
func (s *Store) SaveConversation(ctx context.Context, snap conversation.Snapshot) error {
	msgs := snap.Messages
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fail("save conversation", fmt.Errorf("marshal messages: %w", err))
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversations (id, persona, messages, phase, status, ready_for_extraction, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			messages = EXCLUDED.messages,
			phase = EXCLUDED.phase,
			status = EXCLUDED.status,
			ready_for_extraction = EXCLUDED.ready_for_extraction,
			updated_at = EXCLUDED.updated_at`,
		snap.ID, snap.PersonaID, data, snap.Phase, string(snap.Status), snap.ReadyForExtraction, snap.CreatedAt, snap.UpdatedAt,
	)
	if err != nil {
		return fail("save conversation", err)
	}
	return nil
}

// GetConversation loads a stored snapshot. PhaseIndex is not persisted and
// is left zero.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (conversation.Snapshot, error) {
	var (
		snap   conversation.Snapshot
		data   []byte
		status string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, persona, messages, phase, status, ready_for_extraction, created_at, updated_at
		FROM conversations WHERE id = $1`, id,
	).Scan(&snap.ID, &snap.PersonaID, &data, &snap.Phase, &status, &snap.ReadyForExtraction, &snap.CreatedAt, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return conversation.Snapshot{}, fail("get conversation", ErrNotFound)
	}
	if err != nil {
		return conversation.Snapshot{}, fail("get conversation", err)
	}
	snap.Status = conversation.Status(status)
	if err := json.Unmarshal(data, &snap.Messages); err != nil {
		return conversation.Snapshot{}, fail("get conversation", fmt.Errorf("decode messages: %w", err))
	}
	return snap, nil
}

// ConversationFilter narrows ListConversations. Zero values match all rows.
type ConversationFilter struct {
	Status conversation.Status
	Limit  int
}

// ListConversations returns stored conversations without their messages,
// most recently active first.
func (s *Store) ListConversations(ctx context.Context, f ConversationFilter) ([]conversation.Overview, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, persona, phase, status, ready_for_extraction, jsonb_array_length(messages), created_at, updated_at
		FROM conversations
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY updated_at DESC
		LIMIT $2`,
		string(f.Status), listLimit(f.Limit),
	)
	if err != nil {
		return nil, fail("list conversations", err)
	}
	defer rows.Close()

	var out []conversation.Overview
	for rows.Next() {
		var (
			o      conversation.Overview
			status string
		)
		if err := rows.Scan(&o.ID, &o.PersonaID, &o.Phase, &status, &o.ReadyForExtraction,
			&o.MessageCount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fail("list conversations", err)
		}
		o.Status = conversation.Status(status)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list conversations", err)
	}
	return out, nil
}

func (s *Store) CountConversationsByStatus(ctx context.Context) (map[conversation.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM conversations GROUP BY status`)
	if err != nil {
		return nil, fail("count conversations", err)
	}
	defer rows.Close()

	counts := make(map[conversation.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fail("count conversations", err)
		}
		counts[conversation.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fail("count conversations", err)
	}
	return counts, nil
}
