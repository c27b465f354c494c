// Package spec models the requirements document produced from an interview
// and the lifecycle it goes through afterwards.
package spec

import (
	"time"

	"github.com/google/uuid"
)

// NotSpecified marks a fact the owner never stated.
const NotSpecified = "not specified"

type Status string

const (
	StatusDraft      Status = "draft"
	StatusReview     Status = "review"
	StatusApproved   Status = "approved"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusApproved, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Requirement struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	// ManualHoursPerWeek is the time the owner says the task costs today.
	// Only set when the owner stated it.
	ManualHoursPerWeek *float64 `json:"manualHoursPerWeek,omitempty"`
}

type EffortEstimate struct {
	Hours   float64 `json:"hours"`
	CostEUR string  `json:"cost"`
	Basis   string  `json:"basis,omitempty"`
}

// Outcome is the structured desired result: what the owner wants and what a
// developer needs to deliver it.
type Outcome struct {
	Summary            string          `json:"summary"`
	TechStack          []string        `json:"techStack,omitempty"`
	DataFields         []string        `json:"dataFields,omitempty"`
	AcceptanceCriteria []string        `json:"acceptanceCriteria,omitempty"`
	EffortEstimate     *EffortEstimate `json:"effortEstimate,omitempty"`
}

type CommentAuthor string

const (
	AuthorEntrepreneur CommentAuthor = "entrepreneur"
	AuthorNova         CommentAuthor = "nova"
	AuthorReviewer     CommentAuthor = "reviewer"
	AuthorOperator     CommentAuthor = "operator"
)

func (a CommentAuthor) Valid() bool {
	switch a {
	case AuthorEntrepreneur, AuthorNova, AuthorReviewer, AuthorOperator:
		return true
	}
	return false
}

type Comment struct {
	ID        string        `json:"id"`
	Author    CommentAuthor `json:"author"`
	Content   string        `json:"content"`
	Blocking  bool          `json:"blocking,omitempty"`
	Resolved  bool          `json:"resolved,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type Specification struct {
	ID              uuid.UUID     `json:"id"`
	SourceSessionID uuid.UUID     `json:"sourceSessionId"`
	ProjectNumber   string        `json:"projectNumber,omitempty"`
	Title           string        `json:"title"`
	ProblemSummary  string        `json:"problemSummary"`
	Requirements    []Requirement `json:"requirements"`
	Industry        string        `json:"industry"`
	TeamSize        string        `json:"teamSize"`
	BudgetRange     string        `json:"budgetRange"`
	DesiredOutcome  Outcome       `json:"desiredOutcome"`
	Status          Status        `json:"status"`

	IsDesignPaid          bool    `json:"isDesignPaid"`
	DesignURL             *string `json:"designUrl,omitempty"`
	ReleasedToMarketplace bool    `json:"releasedToMarketplace"`

	Comments  []Comment `json:"comments"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so a failed transition never leaks into the
// caller's value.
func (s *Specification) Clone() *Specification {
	c := *s
	c.Requirements = make([]Requirement, len(s.Requirements))
	for i, r := range s.Requirements {
		if r.ManualHoursPerWeek != nil {
			h := *r.ManualHoursPerWeek
			r.ManualHoursPerWeek = &h
		}
		c.Requirements[i] = r
	}
	c.Comments = append([]Comment(nil), s.Comments...)
	c.DesiredOutcome.TechStack = append([]string(nil), s.DesiredOutcome.TechStack...)
	c.DesiredOutcome.DataFields = append([]string(nil), s.DesiredOutcome.DataFields...)
	c.DesiredOutcome.AcceptanceCriteria = append([]string(nil), s.DesiredOutcome.AcceptanceCriteria...)
	if s.DesiredOutcome.EffortEstimate != nil {
		e := *s.DesiredOutcome.EffortEstimate
		c.DesiredOutcome.EffortEstimate = &e
	}
	if s.DesignURL != nil {
		u := *s.DesignURL
		c.DesignURL = &u
	}
	return &c
}
