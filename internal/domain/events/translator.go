package events

// DomainEventTranslator centralizes the translation of domain-level
// constructs into event bus-specific constructs. It keeps translation logic
// out of individual publishers, ensuring consistency and maintainability.
type DomainEventTranslator struct{}

// NewDomainEventTranslator creates a new DomainEventTranslator.
func NewDomainEventTranslator() *DomainEventTranslator {
	return new(DomainEventTranslator)
}

// ToEnvelope wraps a domain event in a transport envelope, stamping it with
// the event's own occurrence time so consumers see domain time rather than
// publish time.
func (t *DomainEventTranslator) ToEnvelope(event DomainEvent) EventEnvelope {
	return EventEnvelope{
		Type:      event.EventType(),
		Timestamp: event.OccurredAt(),
		Payload:   event,
	}
}

// ConvertDomainOptions transforms domain-level publishing options into event
// bus options. This allows the domain layer to configure event publishing
// (routing keys, headers) without being tightly coupled to the event bus
// implementation.
func (t *DomainEventTranslator) ConvertDomainOptions(domainOpts []PublishOption) []PublishOption {
	dp := PublishParams{}
	for _, dOpt := range domainOpts {
		dOpt(&dp)
	}

	var eventOpts []PublishOption
	if dp.Key != "" {
		eventOpts = append(eventOpts, WithKey(dp.Key))
	}
	if len(dp.Headers) > 0 {
		eventOpts = append(eventOpts, WithHeaders(dp.Headers))
	}

	return eventOpts
}
