package extractor

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ExtractionError means the model output could not be turned into a
// specification. Nothing is persisted when it occurs.
type ExtractionError struct {
	SessionID uuid.UUID
	Reason    string
	Err       error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction for session %s: %s: %v", e.SessionID, e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction for session %s: %s", e.SessionID, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// llmRequirement is a requirement as the model writes it.
type llmRequirement struct {
	Category           string   `json:"category"`
	Description        string   `json:"description"`
	Priority           string   `json:"priority"`
	ManualHoursPerWeek *float64 `json:"manualHoursPerWeek"`
}

type llmOutcome struct {
	Summary            string   `json:"summary"`
	TechStack          []string `json:"techStack"`
	DataFields         []string `json:"dataFields"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
}

// UnmarshalJSON also accepts a bare string, which models fall back to when
// the outcome is short.
func (o *llmOutcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = llmOutcome{Summary: s}
		return nil
	}
	type plain llmOutcome
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = llmOutcome(p)
	return nil
}

type llmResponse struct {
	Title          string           `json:"title"`
	ProblemSummary string           `json:"problemSummary"`
	Requirements   []llmRequirement `json:"requirements"`
	Industry       string           `json:"industry"`
	TeamSize       string           `json:"teamSize"`
	BudgetRange    string           `json:"budgetRange"`
	DesiredOutcome llmOutcome       `json:"desiredOutcome"`
	EstimatedHours float64          `json:"estimatedHours"`
}
