package invoicing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name     string
		lines    []InvoiceDetail
		subtotal string
		tax      string
		total    string
	}{
		{
			name:     "no lines",
			lines:    nil,
			subtotal: "0",
			tax:      "0",
			total:    "0",
		},
		{
			name:     "tax rounds down",
			lines:    []InvoiceDetail{{Quantity: 1, UnitPrice: dec("105.36")}},
			subtotal: "105.36",
			tax:      "12.64",
			total:    "118.00",
		},
		{
			name:     "tax rounds half away from zero",
			lines:    []InvoiceDetail{{Quantity: 1, UnitPrice: dec("0.125")}},
			subtotal: "0.13",
			tax:      "0.02",
			total:    "0.15",
		},
		{
			name: "several lines",
			lines: []InvoiceDetail{
				{Quantity: 3, UnitPrice: dec("19.99")},
				{Quantity: 2, UnitPrice: dec("5.50")},
			},
			subtotal: "70.97",
			tax:      "8.52",
			total:    "79.49",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTotals(tt.lines)
			assert.True(t, got.Subtotal.Equal(dec(tt.subtotal)), "subtotal %s", got.Subtotal)
			assert.True(t, got.Tax.Equal(dec(tt.tax)), "tax %s", got.Tax)
			assert.True(t, got.Total.Equal(dec(tt.total)), "total %s", got.Total)
			assert.True(t, got.Total.Equal(got.Subtotal.Add(got.Tax)))
		})
	}
}

func TestLineSubtotal(t *testing.T) {
	assert.True(t, LineSubtotal(3, dec("10.10")).Equal(dec("30.30")))
	assert.True(t, LineSubtotal(0, dec("10.10")).IsZero())
}
