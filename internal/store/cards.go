package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/MikeSquared-Agency/nova/internal/knowledge"
)

// InsertCard appends a solution card. Cards are never updated.
func (s *Store) InsertCard(ctx context.Context, c *knowledge.SolutionCard) error {
	if c.Embedding != nil && s.dimensions > 0 && len(c.Embedding) != s.dimensions {
		return fail("insert card", fmt.Errorf("embedding has %d dimensions, want %d", len(c.Embedding), s.dimensions))
	}
	links, err := json.Marshal(c.ExternalLinks)
	if err != nil {
		return fail("insert card", fmt.Errorf("marshal links: %w", err))
	}

	var embedding *pgvector.Vector
	if c.Embedding != nil {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}
	var techStack []byte
	if len(c.TechStackDetails) > 0 {
		techStack = c.TechStackDetails
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO solution_cards (id, source_specification_id, project_number, problem_abstract, solution_pattern,
			industry_context, functionality_profile, tech_stack_details, use_case_tags, embedding,
			external_links, supersedes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector, $11, $12, $13)`,
		c.ID, c.SourceSpecificationID, c.ProjectNumber, c.ProblemAbstract, c.SolutionPattern,
		c.IndustryContext, nonNil(c.FunctionalityProfile), techStack, nonNil(c.UseCaseTags), embedding,
		links, c.Supersedes, c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fail("insert card", ErrAlreadyExists)
	}
	if err != nil {
		return fail("insert card", err)
	}
	return nil
}

// SimilaritySearch returns up to topK embedded cards whose cosine similarity
// to query is at least threshold, most similar first, ties by newest.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, threshold float64, topK int) ([]knowledge.Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, source_specification_id, COALESCE(project_number, ''), problem_abstract, solution_pattern,
			industry_context, functionality_profile, tech_stack_details, use_case_tags, external_links,
			supersedes, created_at, 1 - (embedding <=> $1::vector) AS similarity
		FROM solution_cards
		WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1::vector) >= $2
		ORDER BY similarity DESC, seq DESC
		LIMIT $3`,
		pgvector.NewVector(query), threshold, topK,
	)
	if err != nil {
		return nil, fail("similarity search", err)
	}
	defer rows.Close()

	var out []knowledge.Match
	for rows.Next() {
		var (
			m         knowledge.Match
			techStack []byte
			links     []byte
		)
		c := &m.Card
		if err := rows.Scan(&c.ID, &c.SourceSpecificationID, &c.ProjectNumber, &c.ProblemAbstract, &c.SolutionPattern,
			&c.IndustryContext, &c.FunctionalityProfile, &techStack, &c.UseCaseTags, &links,
			&c.Supersedes, &c.CreatedAt, &m.Similarity); err != nil {
			return nil, fail("similarity search", err)
		}
		if len(techStack) > 0 {
			c.TechStackDetails = techStack
		}
		if err := json.Unmarshal(links, &c.ExternalLinks); err != nil {
			return nil, fail("similarity search", fmt.Errorf("decode links: %w", err))
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("similarity search", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
