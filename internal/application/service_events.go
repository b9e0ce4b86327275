package application

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

func newOutboxEvent(eventType string, payload domain.DeliveryPayload, at time.Time) ports.OutboxEvent {
	payload.OccurredAt = at
	raw, _ := json.Marshal(payload)
	return ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: payload.AccountID,
		Payload:      raw,
		OccurredAt:   at,
	}
}
