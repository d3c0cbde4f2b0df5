package shared

// BaseAggregateRoot extends BaseEntity with the optimistic-lock
// version and a queue of pending domain events. State transitions
// append events; the application layer drains them once the aggregate
// has been persisted, so an event is never observable before the
// state change that produced it.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	events  []DomainEvent
}

// NewBaseAggregateRoot returns an aggregate root at version 1.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// AddDomainEvent queues an event for publication after the next save.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// PendingEvents returns the queued events without clearing them.
func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.events
}

// DrainEvents returns the queued events and empties the queue.
func (a *BaseAggregateRoot) DrainEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}
