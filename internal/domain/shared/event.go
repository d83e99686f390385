package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something an aggregate reports after a state change. The
// settlement core logs events once the transaction that raised them commits.
type DomainEvent interface {
	EventType() string
	AggregateType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// BaseDomainEvent is embedded by every concrete event
type BaseDomainEvent struct {
	Type          string    `json:"type"`
	AggregateKind string    `json:"aggregate_type"`
	Aggregate     uuid.UUID `json:"aggregate_id"`
	At            time.Time `json:"occurred_at"`
}

// NewBaseDomainEvent stamps an event of eventType raised by an aggregate
func NewBaseDomainEvent(eventType, aggregateType string, aggregateID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		Type:          eventType,
		AggregateKind: aggregateType,
		Aggregate:     aggregateID,
		At:            time.Now(),
	}
}

func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) AggregateType() string  { return e.AggregateKind }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
