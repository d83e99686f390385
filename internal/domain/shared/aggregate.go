package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and audit timestamps. Timestamps are truncated
// to microseconds, the precision PostgreSQL stores, so a reloaded entity
// compares equal to the one that was saved.
type BaseEntity struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBaseEntity creates an entity with a generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch marks the entity as modified now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
}

// BaseAggregateRoot adds the optimistic lock version and the events raised
// since the aggregate was loaded. Version starts at 1; a guarded save only
// succeeds while the stored version still matches.
type BaseAggregateRoot struct {
	BaseEntity
	Version int `json:"version"`
	events  []DomainEvent
}

// NewBaseAggregateRoot creates a fresh aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// IncrementVersion is called by repositories after a guarded save
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent records an event for the service to publish after commit
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// GetDomainEvents returns the events raised so far
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.events
}

// ClearDomainEvents drops the recorded events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.events = nil
}
