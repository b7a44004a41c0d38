package invoicing

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraft(t *testing.T) *Invoice {
	t.Helper()
	inv, err := NewInvoice("INV-20260101-120000-ABCD", 10, 20, "first order")
	require.NoError(t, err)
	inv.ID = 1
	return inv
}

func assertTotalsConsistent(t *testing.T, inv *Invoice) {
	t.Helper()
	want := CalculateTotals(inv.Details)
	assert.True(t, inv.Subtotal.Equal(want.Subtotal), "subtotal %s != %s", inv.Subtotal, want.Subtotal)
	assert.True(t, inv.Tax.Equal(want.Tax), "tax %s != %s", inv.Tax, want.Tax)
	assert.True(t, inv.Total.Equal(inv.Subtotal.Add(inv.Tax)))
}

// ==================== Construction ====================

func TestNewInvoice(t *testing.T) {
	inv := newDraft(t)
	assert.Equal(t, InvoiceStatusDraft, inv.Status)
	assert.True(t, inv.IsActive)
	assert.True(t, inv.Total.IsZero())
	assert.Empty(t, inv.Details)
	assert.Equal(t, 1, inv.GetVersion())

	_, err := NewInvoice("", 1, 1, "")
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = NewInvoice("INV-1", 0, 1, "")
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = NewInvoice("INV-1", 1, 0, "")
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

// ==================== Lines ====================

func TestInvoice_AddDetail(t *testing.T) {
	inv := newDraft(t)

	d, err := inv.AddDetail(5, "P-005", "Widget", 3, dec("10.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.InvoiceID)
	assert.True(t, d.Subtotal.Equal(dec("30.00")))
	assert.True(t, inv.Subtotal.Equal(dec("30.00")))
	assert.True(t, inv.Tax.Equal(dec("3.60")))
	assert.True(t, inv.Total.Equal(dec("33.60")))
	assertTotalsConsistent(t, inv)

	t.Run("duplicate product", func(t *testing.T) {
		_, err := inv.AddDetail(5, "P-005", "Widget", 1, dec("10.00"))
		assert.True(t, errors.Is(err, shared.ErrDuplicateLine))
		assert.Len(t, inv.Details, 1)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := inv.AddDetail(6, "P-006", "Gadget", 0, dec("1.00"))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestInvoice_RemoveDetail(t *testing.T) {
	inv := newDraft(t)
	_, err := inv.AddDetail(5, "P-005", "Widget", 3, dec("10.00"))
	require.NoError(t, err)
	_, err = inv.AddDetail(6, "P-006", "Gadget", 1, dec("2.50"))
	require.NoError(t, err)

	removed, err := inv.RemoveDetail(5)
	require.NoError(t, err)
	assert.Equal(t, 3, removed.Quantity)
	assert.Len(t, inv.Details, 1)
	assert.True(t, inv.Subtotal.Equal(dec("2.50")))
	assertTotalsConsistent(t, inv)

	_, err = inv.RemoveDetail(5)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestInvoice_LinePolicy(t *testing.T) {
	inv := newDraft(t)
	_, err := inv.AddDetail(5, "P-005", "Widget", 1, dec("10.00"))
	require.NoError(t, err)
	require.NoError(t, inv.Finalize())

	t.Run("draft-only rejects finalized", func(t *testing.T) {
		_, err := inv.AddDetail(6, "P-006", "Gadget", 1, dec("1.00"))
		assert.True(t, errors.Is(err, shared.ErrInvalidOperation))
		_, err = inv.RemoveDetail(5)
		assert.True(t, errors.Is(err, shared.ErrInvalidOperation))
	})

	t.Run("any-status lets changes through", func(t *testing.T) {
		_, err := inv.AddDetailWithPolicy(AnyStatus, 6, "P-006", "Gadget", 1, dec("1.00"))
		require.NoError(t, err)
		_, err = inv.RemoveDetailWithPolicy(AnyStatus, 6)
		require.NoError(t, err)
		assertTotalsConsistent(t, inv)
	})
}

// ==================== Lifecycle ====================

func TestInvoice_Finalize(t *testing.T) {
	inv := newDraft(t)
	err := inv.Finalize()
	assert.True(t, errors.Is(err, shared.ErrInvalidOperation), "empty invoice")

	_, err = inv.AddDetail(5, "P-005", "Widget", 1, dec("10.00"))
	require.NoError(t, err)
	require.NoError(t, inv.Finalize())
	assert.Equal(t, InvoiceStatusFinalized, inv.Status)
	assert.NotNil(t, inv.FinalizedAt)

	err = inv.Finalize()
	assert.True(t, errors.Is(err, shared.ErrInvalidOperation))

	events := inv.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeInvoiceFinalized, events[0].EventType())
}

func TestInvoice_Cancel(t *testing.T) {
	inv := newDraft(t)
	_, err := inv.AddDetail(5, "P-005", "Widget", 4, dec("10.00"))
	require.NoError(t, err)

	assert.True(t, errors.Is(inv.Cancel(" "), shared.ErrValidation))

	require.NoError(t, inv.Cancel("customer changed mind"))
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)
	assert.Equal(t, "customer changed mind", inv.CancelReason)
	assert.NotNil(t, inv.CancelledAt)
	// lines stay attached, the stock they hold is not released by cancellation
	assert.Len(t, inv.Details, 1)

	events := inv.GetDomainEvents()
	require.Len(t, events, 1)
	cancelled, ok := events[0].(*InvoiceCancelledEvent)
	require.True(t, ok)
	assert.Equal(t, 4, cancelled.HeldQuantity)

	assert.True(t, errors.Is(inv.Cancel("again"), shared.ErrInvalidOperation))
}

func TestInvoice_MarkPaid(t *testing.T) {
	inv := newDraft(t)
	assert.True(t, errors.Is(inv.MarkPaid(), shared.ErrInvalidOperation), "draft cannot be paid directly")
	assert.False(t, inv.IsPayable(), "a draft without lines cannot be finalized on payment")

	_, err := inv.AddDetail(5, "P-005", "Widget", 1, dec("10.00"))
	require.NoError(t, err)
	assert.True(t, inv.IsPayable())
	require.NoError(t, inv.Finalize())
	assert.True(t, inv.IsPayable())
	require.NoError(t, inv.MarkPaid())
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.NotNil(t, inv.PaidAt)
	assert.False(t, inv.IsPayable())

	assert.True(t, errors.Is(inv.Cancel("late"), shared.ErrInvalidOperation))
}

func TestInvoice_SoftDelete(t *testing.T) {
	t.Run("draft can be deleted and restored", func(t *testing.T) {
		inv := newDraft(t)
		require.NoError(t, inv.SoftDelete("duplicate"))
		assert.True(t, inv.IsDeleted())
		assert.Equal(t, "duplicate", inv.DeleteReason)
		assert.False(t, inv.IsPayable())
		assert.True(t, errors.Is(inv.SoftDelete("again"), shared.ErrInvalidOperation))

		inv.Restore()
		assert.False(t, inv.IsDeleted())
		assert.Nil(t, inv.DeletedAt)
		assert.Equal(t, InvoiceStatusDraft, inv.Status)
	})

	t.Run("finalized must be cancelled first", func(t *testing.T) {
		inv := newDraft(t)
		_, err := inv.AddDetail(5, "P-005", "Widget", 1, dec("10.00"))
		require.NoError(t, err)
		require.NoError(t, inv.Finalize())

		assert.True(t, errors.Is(inv.SoftDelete("x"), shared.ErrInvalidOperation))
		require.NoError(t, inv.Cancel("void"))
		require.NoError(t, inv.SoftDelete("x"))
	})

	t.Run("deleted draft cannot be finalized", func(t *testing.T) {
		inv := newDraft(t)
		_, err := inv.AddDetail(5, "P-005", "Widget", 1, dec("10.00"))
		require.NoError(t, err)
		require.NoError(t, inv.SoftDelete("x"))
		assert.True(t, errors.Is(inv.Finalize(), shared.ErrInvalidOperation))
	})
}

// ==================== Number generation ====================

func TestTimestampNumberGenerator(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	n := TimestampNumberGenerator{}.Generate(now)
	assert.Regexp(t, regexp.MustCompile(`^INV-20260304-050607-[0-9A-F]{4}$`), n)

	fixed := NumberGeneratorFunc(func(time.Time) string { return "INV-FIXED" })
	assert.Equal(t, "INV-FIXED", fixed.Generate(now))
}
