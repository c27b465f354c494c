package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/hermes"
	"github.com/MikeSquared-Agency/nova/internal/spec"
)

const eventTimeout = 30 * time.Second

// HandleDesignPayment is the NATS handler for nova.payment.design.completed.
func (p *Processor) HandleDesignPayment(subject string, data []byte) {
	var evt hermes.DesignPaymentCompleted
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse payment event", "subject", subject, "error", err)
		return
	}
	id, err := uuid.Parse(evt.SpecificationID)
	if err != nil {
		p.logger.Error("payment event rejected", "error", errInvalidID(evt.SpecificationID, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if _, err := p.MarkDesignPaid(ctx, id); err != nil {
		p.logger.Error("failed to record design payment",
			"specification_id", id, "payment_id", evt.PaymentID, "error", err)
		return
	}
	p.logger.Info("design payment recorded", "specification_id", id, "payment_id", evt.PaymentID)
}

// HandleFulfillment is the NATS handler for nova.fulfillment.updated. It maps
// delivery progress onto the status machine.
func (p *Processor) HandleFulfillment(subject string, data []byte) {
	var evt hermes.FulfillmentUpdated
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse fulfillment event", "subject", subject, "error", err)
		return
	}
	id, err := uuid.Parse(evt.SpecificationID)
	if err != nil {
		p.logger.Error("fulfillment event rejected", "error", errInvalidID(evt.SpecificationID, err))
		return
	}

	var op spec.Op
	switch evt.Status {
	case hermes.FulfillmentAssigned:
		op = spec.OpStartWork
	case hermes.FulfillmentDelivered:
		op = spec.OpComplete
	case hermes.FulfillmentCancelled:
		op = spec.OpCancel
	default:
		p.logger.Warn("ignoring fulfillment status", "specification_id", id, "status", evt.Status)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if _, err := p.Transition(ctx, id, op); err != nil {
		p.logger.Error("failed to apply fulfillment update",
			"specification_id", id, "status", evt.Status, "reference", evt.Reference, "error", err)
	}
}
