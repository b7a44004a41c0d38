package invoicing

import "github.com/shopspring/decimal"

// TaxRate is the flat sales tax applied to every invoice subtotal
var TaxRate = decimal.NewFromFloat(0.12)

// Totals is the derived money summary of a set of invoice lines
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// LineSubtotal returns quantity × unit price rounded to cents
func LineSubtotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// CalculateTotals is the single place invoice money is derived from lines.
// Invoice creation, line mutation and checkout all go through it so the
// rounding never drifts between call sites. Rounding is half away from zero.
func CalculateTotals(lines []InvoiceDetail) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineSubtotal(l.Quantity, l.UnitPrice))
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
