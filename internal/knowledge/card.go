// Package knowledge stores solution cards for previously solved problems and
// retrieves similar ones as generation context.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type Links struct {
	GitHubURL     string `json:"github_url,omitempty"`
	DeploymentURL string `json:"deployment_url,omitempty"`
}

// SolutionCard is an append-only record of a solved problem. Corrections are
// stored as a new card that supersedes the old one.
type SolutionCard struct {
	ID                    uuid.UUID       `json:"id"`
	SourceSpecificationID *uuid.UUID      `json:"source_specification_id,omitempty"`
	ProjectNumber         string          `json:"project_number,omitempty"`
	ProblemAbstract       string          `json:"problem_abstract"`
	SolutionPattern       string          `json:"solution_pattern"`
	IndustryContext       string          `json:"industry_context"`
	FunctionalityProfile  []string        `json:"functionality_profile"`
	TechStackDetails      json.RawMessage `json:"tech_stack_details,omitempty"`
	UseCaseTags           []string        `json:"use_case_tags"`
	Embedding             []float32       `json:"-"`
	ExternalLinks         Links           `json:"external_links"`
	Supersedes            *uuid.UUID      `json:"supersedes,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// Match is a card returned by a similarity search.
type Match struct {
	Card       SolutionCard
	Similarity float64
}

// Store persists cards and answers similarity queries. Results are ordered by
// descending similarity, ties broken by most recent insertion.
type Store interface {
	InsertCard(ctx context.Context, card *SolutionCard) error
	SimilaritySearch(ctx context.Context, query []float32, threshold float64, topK int) ([]Match, error)
}

// RetrievalError wraps an embedding or search failure. It is logged, never
// shown to the end user.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// CosineSimilarity returns the cosine of the angle between a and b, or 0 if
// either is empty, zero, or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
