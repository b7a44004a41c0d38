package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// recordingHandler implements EventHandler for testing
type recordingHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.eventTypes }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func sampleInvoice() *invoicing.Invoice {
	inv, _ := invoicing.NewInvoice("INV-1", 1, 1, "")
	inv.ID = 7
	return inv
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	created := &recordingHandler{eventTypes: []string{invoicing.EventTypeInvoiceCreated}}
	paid := &recordingHandler{eventTypes: []string{invoicing.EventTypeInvoicePaid}}
	all := &recordingHandler{}
	bus.Subscribe(created)
	bus.Subscribe(paid)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(), invoicing.NewInvoiceCreatedEvent(sampleInvoice())))

	assert.Equal(t, 1, created.count())
	assert.Equal(t, 0, paid.count())
	assert.Equal(t, 1, all.count())
	assert.Equal(t, 2, bus.HandlerCount(invoicing.EventTypeInvoiceCreated))
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{eventTypes: []string{invoicing.EventTypeInvoiceCreated}}
	bus.Subscribe(h, invoicing.EventTypeInvoicePaid)

	_ = bus.Publish(context.Background(), invoicing.NewInvoiceCreatedEvent(sampleInvoice()))
	assert.Equal(t, 0, h.count())
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := &recordingHandler{err: errors.New("boom")}
	panicking := &recordingHandler{panicWith: "kaboom"}
	healthy := &recordingHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), invoicing.NewInvoiceCreatedEvent(sampleInvoice()))

	require.NoError(t, err)
	assert.Equal(t, 1, healthy.count(), "later handlers still run")
	assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{eventTypes: []string{invoicing.EventTypeInvoiceCreated}}
	w := &recordingHandler{}
	bus.Subscribe(h)
	bus.Subscribe(w)

	bus.Unsubscribe(h)
	bus.Unsubscribe(w)

	_ = bus.Publish(context.Background(), invoicing.NewInvoiceCreatedEvent(sampleInvoice()))
	assert.Equal(t, 0, h.count())
	assert.Equal(t, 0, w.count())
	assert.Equal(t, 0, bus.HandlerCount(invoicing.EventTypeInvoiceCreated))
}
