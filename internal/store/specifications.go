package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/nova/internal/spec"
)

const specColumns = `id, source_session_id, project_number, title, problem_summary, requirements,
	industry, team_size, budget_range, desired_outcome, status, is_design_paid, design_url,
	released_to_marketplace, comments, version, created_at, updated_at`

// CreateSpecification inserts a new specification. A second specification
// for the same session fails with ErrAlreadyExists.
func (s *Store) CreateSpecification(ctx context.Context, sp *spec.Specification) error {
	reqs, outcome, comments, err := marshalSpecJSON(sp)
	if err != nil {
		return fail("create specification", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO specifications (id, source_session_id, project_number, title, problem_summary, requirements,
			industry, team_size, budget_range, desired_outcome, status, is_design_paid, design_url,
			released_to_marketplace, comments, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		sp.ID, sp.SourceSessionID, nullable(sp.ProjectNumber), sp.Title, sp.ProblemSummary, reqs,
		sp.Industry, sp.TeamSize, sp.BudgetRange, outcome, string(sp.Status), sp.IsDesignPaid, sp.DesignURL,
		sp.ReleasedToMarketplace, comments, sp.Version, sp.CreatedAt, sp.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fail("create specification", ErrAlreadyExists)
	}
	if err != nil {
		return fail("create specification", err)
	}
	return nil
}

func (s *Store) GetSpecification(ctx context.Context, id uuid.UUID) (*spec.Specification, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+specColumns+` FROM specifications WHERE id = $1`, id)
	sp, err := scanSpecification(row)
	if err != nil {
		return nil, fail("get specification", err)
	}
	return sp, nil
}

func (s *Store) GetSpecificationBySession(ctx context.Context, sessionID uuid.UUID) (*spec.Specification, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+specColumns+` FROM specifications WHERE source_session_id = $1`, sessionID)
	sp, err := scanSpecification(row)
	if err != nil {
		return nil, fail("get specification by session", err)
	}
	return sp, nil
}

// UpdateSpecification writes sp if the stored version still equals
// sp.Version, then bumps sp.Version. A stale version fails with ErrConflict.
func (s *Store) UpdateSpecification(ctx context.Context, sp *spec.Specification) error {
	reqs, outcome, comments, err := marshalSpecJSON(sp)
	if err != nil {
		return fail("update specification", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE specifications SET
			title = $3, problem_summary = $4, requirements = $5, industry = $6, team_size = $7,
			budget_range = $8, desired_outcome = $9, status = $10, is_design_paid = $11,
			design_url = $12, released_to_marketplace = $13, comments = $14,
			version = version + 1, updated_at = $15
		WHERE id = $1 AND version = $2`,
		sp.ID, sp.Version, sp.Title, sp.ProblemSummary, reqs, sp.Industry, sp.TeamSize,
		sp.BudgetRange, outcome, string(sp.Status), sp.IsDesignPaid,
		sp.DesignURL, sp.ReleasedToMarketplace, comments, sp.UpdatedAt,
	)
	if err != nil {
		return fail("update specification", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM specifications WHERE id = $1)`, sp.ID).Scan(&exists); err != nil {
			return fail("update specification", err)
		}
		if !exists {
			return fail("update specification", ErrNotFound)
		}
		return fail("update specification", ErrConflict)
	}
	sp.Version++
	return nil
}

func marshalSpecJSON(sp *spec.Specification) (reqs, outcome, comments []byte, err error) {
	if reqs, err = json.Marshal(sp.Requirements); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal requirements: %w", err)
	}
	if outcome, err = json.Marshal(sp.DesiredOutcome); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal desired outcome: %w", err)
	}
	if sp.Comments == nil {
		sp.Comments = []spec.Comment{}
	}
	if comments, err = json.Marshal(sp.Comments); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal comments: %w", err)
	}
	return reqs, outcome, comments, nil
}

func scanSpecification(row pgx.Row) (*spec.Specification, error) {
	var (
		sp                      spec.Specification
		projectNumber           *string
		status                  string
		reqs, outcome, comments []byte
	)
	err := row.Scan(&sp.ID, &sp.SourceSessionID, &projectNumber, &sp.Title, &sp.ProblemSummary, &reqs,
		&sp.Industry, &sp.TeamSize, &sp.BudgetRange, &outcome, &status, &sp.IsDesignPaid, &sp.DesignURL,
		&sp.ReleasedToMarketplace, &comments, &sp.Version, &sp.CreatedAt, &sp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sp.Status = spec.Status(status)
	if projectNumber != nil {
		sp.ProjectNumber = *projectNumber
	}
	if err := json.Unmarshal(reqs, &sp.Requirements); err != nil {
		return nil, fmt.Errorf("decode requirements: %w", err)
	}
	if err := json.Unmarshal(outcome, &sp.DesiredOutcome); err != nil {
		return nil, fmt.Errorf("decode desired outcome: %w", err)
	}
	if err := json.Unmarshal(comments, &sp.Comments); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return &sp, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

// SpecificationFilter narrows ListSpecifications. Zero values match all rows.
type SpecificationFilter struct {
	Status   spec.Status
	Released *bool
	Limit    int
}

// ListSpecifications returns matching specifications, newest first.
func (s *Store) ListSpecifications(ctx context.Context, f SpecificationFilter) ([]*spec.Specification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+specColumns+` FROM specifications
		WHERE ($1::text = '' OR status = $1::text)
			AND ($2::boolean IS NULL OR released_to_marketplace = $2::boolean)
		ORDER BY created_at DESC
		LIMIT $3`,
		string(f.Status), f.Released, listLimit(f.Limit),
	)
	if err != nil {
		return nil, fail("list specifications", err)
	}
	defer rows.Close()

	var out []*spec.Specification
	for rows.Next() {
		sp, err := scanSpecification(rows)
		if err != nil {
			return nil, fail("list specifications", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list specifications", err)
	}
	return out, nil
}

// CountSpecificationsByStatus returns the number of specifications per
// status. Statuses without rows are absent.
func (s *Store) CountSpecificationsByStatus(ctx context.Context) (map[spec.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM specifications GROUP BY status`)
	if err != nil {
		return nil, fail("count specifications", err)
	}
	defer rows.Close()

	counts := make(map[spec.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fail("count specifications", err)
		}
		counts[spec.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fail("count specifications", err)
	}
	return counts, nil
}
