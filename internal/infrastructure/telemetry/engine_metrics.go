package telemetry

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics records invoice, stock and payment activity.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	invoicesCreated   *Counter
	invoiceAmount     *Counter
	stockRejections   *Counter
	payments          *Counter
	paymentAmount     *Counter
	refundAmount      *Counter
	operationDuration *Histogram
}

// NewEngineMetrics registers the engine instruments on meter
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &EngineMetrics{}
	var err error
	if m.invoicesCreated, err = NewCounter(meter, "invoicing_invoices_created_total", "Invoices created", "{invoices}"); err != nil {
		return nil, err
	}
	if m.invoiceAmount, err = NewCounter(meter, "invoicing_invoice_amount_total", "Invoiced amount in cents", "{cents}"); err != nil {
		return nil, err
	}
	if m.stockRejections, err = NewCounter(meter, "invoicing_stock_rejections_total", "Stock decrements refused for insufficient stock", "{rejections}"); err != nil {
		return nil, err
	}
	if m.payments, err = NewCounter(meter, "invoicing_payments_total", "Payment attempts by method and outcome", "{payments}"); err != nil {
		return nil, err
	}
	if m.paymentAmount, err = NewCounter(meter, "invoicing_payment_amount_total", "Completed payment amount in cents", "{cents}"); err != nil {
		return nil, err
	}
	if m.refundAmount, err = NewCounter(meter, "invoicing_refund_amount_total", "Refunded amount in cents", "{cents}"); err != nil {
		return nil, err
	}
	if m.operationDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "invoicing_operation_duration_seconds",
		Description: "Duration of engine operations",
		Unit:        "s",
		Boundaries:  OperationDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordInvoiceCreated counts a new invoice; source is "direct" or "checkout"
func (m *EngineMetrics) RecordInvoiceCreated(ctx context.Context, source string, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.invoicesCreated.Inc(ctx, AttrSource.String(source))
	m.invoiceAmount.Add(ctx, cents(total), AttrSource.String(source))
}

// RecordStockRejected counts a refused stock decrement
func (m *EngineMetrics) RecordStockRejected(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.stockRejections.Inc(ctx, AttrOperation.String(operation))
}

// RecordPayment counts a payment attempt by method and resulting status
func (m *EngineMetrics) RecordPayment(ctx context.Context, method, status string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.payments.Inc(ctx, AttrPaymentMethod.String(method), AttrPaymentStatus.String(status))
	if status == "COMPLETED" {
		m.paymentAmount.Add(ctx, cents(amount), AttrPaymentMethod.String(method))
	}
}

// RecordRefund adds a refunded amount
func (m *EngineMetrics) RecordRefund(ctx context.Context, method string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.refundAmount.Add(ctx, cents(amount), AttrPaymentMethod.String(method))
}

// ObserveOperation records how long an operation took and how it ended.
// Use it as: defer metrics.ObserveOperation(ctx, "checkout", time.Now(), &err)
func (m *EngineMetrics) ObserveOperation(ctx context.Context, operation string, start time.Time, errp *error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = shared.ErrorCode(*errp)
		if outcome == "" {
			outcome = "error"
		}
	}
	m.operationDuration.Record(ctx, time.Since(start).Seconds(),
		AttrOperation.String(operation),
		AttrOutcome.String(outcome),
	)
}

func cents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
