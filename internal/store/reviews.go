package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveReviewMessage links a posted Slack review message to its specification.
func (s *Store) SaveReviewMessage(ctx context.Context, messageTS string, specificationID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO review_messages (message_ts, specification_id)
		VALUES ($1, $2)
		ON CONFLICT (message_ts) DO NOTHING`,
		messageTS, specificationID,
	)
	if err != nil {
		return fail("save review message", err)
	}
	return nil
}

// SpecificationForReview returns the specification a review message was
// posted for.
func (s *Store) SpecificationForReview(ctx context.Context, messageTS string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT specification_id FROM review_messages WHERE message_ts = $1`, messageTS,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fail("get review message", ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fail("get review message", err)
	}
	return id, nil
}
