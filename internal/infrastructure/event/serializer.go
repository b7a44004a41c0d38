package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
)

// EventSerializer converts domain events to JSON and back by event type
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type // eventType -> Go type
}

// NewEventSerializer creates a serializer that knows every invoice and payment event
func NewEventSerializer() *EventSerializer {
	s := &EventSerializer{registry: make(map[string]reflect.Type)}

	s.Register(invoicing.EventTypeInvoiceCreated, &invoicing.InvoiceCreatedEvent{})
	s.Register(invoicing.EventTypeInvoiceFinalized, &invoicing.InvoiceFinalizedEvent{})
	s.Register(invoicing.EventTypeInvoiceCancelled, &invoicing.InvoiceCancelledEvent{})
	s.Register(invoicing.EventTypeInvoicePaid, &invoicing.InvoicePaidEvent{})

	s.Register(finance.EventTypePaymentCompleted, &finance.PaymentCompletedEvent{})
	s.Register(finance.EventTypePaymentFailed, &finance.PaymentFailedEvent{})
	s.Register(finance.EventTypePaymentRefunded, &finance.PaymentRefundedEvent{})
	s.Register(finance.EventTypePaymentCancelled, &finance.PaymentCancelledEvent{})

	return s
}

// Register maps eventType to the Go type of eventInstance
func (s *EventSerializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Serialize encodes a domain event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	if !s.IsRegistered(event.EventType()) {
		return nil, fmt.Errorf("unknown event type: %s", event.EventType())
	}
	return json.Marshal(event)
}

// Deserialize decodes JSON into a new instance of the type registered for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.registry[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", eventType, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns the registered event types in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
