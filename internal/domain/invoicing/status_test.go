package invoicing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to InvoiceStatus
		want     bool
	}{
		{InvoiceStatusDraft, InvoiceStatusFinalized, true},
		{InvoiceStatusDraft, InvoiceStatusCancelled, true},
		{InvoiceStatusDraft, InvoiceStatusPaid, false},
		{InvoiceStatusFinalized, InvoiceStatusPaid, true},
		{InvoiceStatusFinalized, InvoiceStatusCancelled, true},
		{InvoiceStatusFinalized, InvoiceStatusDraft, false},
		{InvoiceStatusPaid, InvoiceStatusCancelled, false},
		{InvoiceStatusCancelled, InvoiceStatusDraft, false},
		{InvoiceStatusCancelled, InvoiceStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestInvoiceStatus_IsValid(t *testing.T) {
	assert.True(t, InvoiceStatusPaid.IsValid())
	assert.False(t, InvoiceStatus("VOID").IsValid())
	assert.True(t, InvoiceStatusCancelled.IsTerminal())
	assert.False(t, InvoiceStatusFinalized.IsTerminal())
}
