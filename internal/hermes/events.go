package hermes

import (
	"time"

	"github.com/google/uuid"
)

// Outbound subjects.
const (
	SubjectSpecificationCreated      = "nova.specification.created"
	SubjectSpecificationTransitioned = "nova.specification.transitioned"
	SubjectCardCommitted             = "nova.knowledge.card.committed"
	SubjectAgentRegistered           = "nova.agent.registered"
)

// Inbound subjects.
const (
	SubjectDesignPaymentCompleted = "nova.payment.design.completed"
	SubjectFulfillmentUpdated     = "nova.fulfillment.updated"
	SubjectSlackReaction          = "swarm.slack.reaction"
)

type SpecificationCreated struct {
	SpecificationID uuid.UUID `json:"specification_id"`
	SessionID       uuid.UUID `json:"session_id"`
	ProjectNumber   string    `json:"project_number"`
	Title           string    `json:"title"`
	Requirements    int       `json:"requirements"`
	CreatedAt       time.Time `json:"created_at"`
}

// SpecificationTransitioned is published after every applied lifecycle
// operation, including flag changes that leave the status untouched.
type SpecificationTransitioned struct {
	SpecificationID       uuid.UUID `json:"specification_id"`
	Op                    string    `json:"op"`
	From                  string    `json:"from"`
	To                    string    `json:"to"`
	IsDesignPaid          bool      `json:"is_design_paid"`
	DesignURL             string    `json:"design_url,omitempty"`
	ReleasedToMarketplace bool      `json:"released_to_marketplace"`
	Version               int       `json:"version"`
	At                    time.Time `json:"at"`
}

type CardCommitted struct {
	CardID          uuid.UUID  `json:"card_id"`
	SpecificationID uuid.UUID  `json:"specification_id"`
	Embedded        bool       `json:"embedded"`
	Supersedes      *uuid.UUID `json:"supersedes,omitempty"`
}

// DesignPaymentCompleted is sent by the payment service once the design fee
// for a specification was captured.
type DesignPaymentCompleted struct {
	SpecificationID string    `json:"specification_id"`
	PaymentID       string    `json:"payment_id"`
	PaidAt          time.Time `json:"paid_at"`
}

// Fulfillment states reported by the delivery side.
const (
	FulfillmentAssigned  = "assigned"
	FulfillmentDelivered = "delivered"
	FulfillmentCancelled = "cancelled"
)

type FulfillmentUpdated struct {
	SpecificationID string `json:"specification_id"`
	Status          string `json:"status"`
	Reference       string `json:"reference,omitempty"`
}
