package finance_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	appfinance "github.com/erp/invoicing/internal/application/finance"
	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/cache"
	"github.com/erp/invoicing/internal/infrastructure/payment"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const payerID int64 = 11

// MockGateway is a scripted finance.PaymentGateway
type MockGateway struct {
	mock.Mock
}

func (g *MockGateway) Name() string { return "scripted" }

func (g *MockGateway) Charge(ctx context.Context, req *finance.ChargeRequest) (*finance.ChargeResult, error) {
	args := g.Called(ctx, req)
	res, _ := args.Get(0).(*finance.ChargeResult)
	return res, args.Error(1)
}

func (g *MockGateway) Refund(ctx context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	args := g.Called(ctx, req)
	res, _ := args.Get(0).(*finance.RefundResult)
	return res, args.Error(1)
}

func approved() *finance.ChargeResult {
	return &finance.ChargeResult{Approved: true, ProcessorResponse: "scripted: approved", GatewayReference: "REF-1"}
}

type paymentFixture struct {
	db       *testutil.TestDB
	svc      *appfinance.PaymentService
	gateway  *MockGateway
	events   *testutil.RecordingPublisher
	methods  map[finance.PaymentMethodCode]*finance.PaymentMethod
	invoices *persistence.GormInvoiceRepository
	clientID int64
	seq      int
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	f := &paymentFixture{
		db:       db,
		gateway:  new(MockGateway),
		events:   testutil.NewRecordingPublisher(),
		methods:  db.SeedPaymentMethods(),
		invoices: persistence.NewGormInvoiceRepository(db.DB),
		clientID: db.SeedClient("Globex").ID,
	}

	registry := payment.NewRegistry()
	// bank transfers are left without a gateway
	registry.Register(f.gateway,
		finance.PaymentMethodCash,
		finance.PaymentMethodCreditCard,
		finance.PaymentMethodDebitCard,
		finance.PaymentMethodDigitalWallet,
	)

	txn := 0
	idempotency := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idempotency.Close() })

	f.svc = appfinance.NewPaymentService(appfinance.PaymentServiceConfig{
		Scope:       persistence.NewGormPaymentTransactionScope(db.DB),
		PaymentRepo: persistence.NewGormPaymentRepository(db.DB),
		MethodRepo:  persistence.NewGormPaymentMethodRepository(db.DB),
		Gateways:    registry,
		Idempotency: idempotency,
		IDs: finance.TransactionIDFunc(func() string {
			txn++
			return fmt.Sprintf("TXN-TEST-%03d", txn)
		}),
		EventPublisher: f.events,
		Logger:         zaptest.NewLogger(t),
	})
	return f
}

// seedInvoice stores a Draft invoice with one line priced so the total is as given by price x qty + 12% tax
func (f *paymentFixture) seedInvoice(t *testing.T, price string, qty int) *invoicing.Invoice {
	t.Helper()
	f.seq++
	code := fmt.Sprintf("SKU-%03d", f.seq)
	p := f.db.SeedProduct(code, "Item "+code, price, 100)

	inv, err := invoicing.NewInvoice(fmt.Sprintf("INV-TEST-%03d", f.seq), f.clientID, payerID, "")
	require.NoError(t, err)
	_, err = inv.AddDetail(p.ID, p.Code, p.Name, qty, p.Price)
	require.NoError(t, err)
	require.NoError(t, f.invoices.Save(context.Background(), inv))
	inv.ClearDomainEvents()
	return inv
}

func (f *paymentFixture) reload(t *testing.T, id int64) *invoicing.Invoice {
	t.Helper()
	inv, err := f.invoices.FindByID(context.Background(), id)
	require.NoError(t, err)
	return inv
}

func (f *paymentFixture) pay(inv *invoicing.Invoice, code finance.PaymentMethodCode, amount string) (*appfinance.PaymentResponse, error) {
	return f.svc.ProcessPayment(context.Background(), payerID, appfinance.ProcessPaymentRequest{
		InvoiceID:       inv.ID,
		PaymentMethodID: f.methods[code].ID,
		Amount:          decimal.RequireFromString(amount),
	})
}

func TestProcessPayment_SettlesOnce(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(approved(), nil).Once()

	// 105.36 + 12.64 tax
	inv := f.seedInvoice(t, "105.36", 1)
	require.True(t, decimal.RequireFromString("118.00").Equal(inv.Total), inv.Total.String())

	first, err := f.pay(inv, finance.PaymentMethodCash, "118.00")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", first.Status)
	assert.Equal(t, "TXN-TEST-001", first.TransactionID)
	assert.Equal(t, "REF-1", first.GatewayReference)
	assert.NotNil(t, first.ProcessedAt)

	stored := f.reload(t, inv.ID)
	assert.Equal(t, invoicing.InvoiceStatusPaid, stored.Status)
	assert.NotNil(t, stored.FinalizedAt, "a draft invoice is finalized on the way to paid")
	assert.NotNil(t, stored.PaidAt)

	_, err = f.pay(inv, finance.PaymentMethodCash, "118.00")
	assert.ErrorIs(t, err, shared.ErrAlreadyPaid)
	assert.ErrorIs(t, err, shared.ErrInvalidOperation)

	payments, err := f.svc.GetInvoicePayments(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, first.ID, payments[0].ID)
	assert.Equal(t, "COMPLETED", payments[0].Status)

	assert.Equal(t, []string{
		finance.EventTypePaymentCompleted,
		invoicing.EventTypeInvoiceFinalized,
		invoicing.EventTypeInvoicePaid,
	}, f.events.Types())
	f.gateway.AssertExpectations(t)
}

func TestProcessPayment_ValidationOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("missing invoice", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, err := f.svc.ProcessPayment(ctx, payerID, appfinance.ProcessPaymentRequest{
			InvoiceID:       404,
			PaymentMethodID: f.methods[finance.PaymentMethodCash].ID,
			Amount:          decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("cancelled invoice is checked before the method", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "10.00", 1)
		require.NoError(t, inv.Cancel("void"))
		require.NoError(t, f.invoices.SaveWithLock(ctx, inv))

		_, err := f.svc.ProcessPayment(ctx, payerID, appfinance.ProcessPaymentRequest{
			InvoiceID:       inv.ID,
			PaymentMethodID: 999,
			Amount:          inv.Total,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidOperation)
		assert.Contains(t, err.Error(), "cannot be paid")
	})

	t.Run("soft-deleted invoice", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "10.00", 1)
		require.NoError(t, inv.SoftDelete("dup"))
		require.NoError(t, f.invoices.SaveWithLock(ctx, inv))

		_, err := f.pay(inv, finance.PaymentMethodCash, inv.Total.String())
		assert.ErrorIs(t, err, shared.ErrInvalidOperation)
	})

	t.Run("draft without lines never reaches the gateway", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv, err := invoicing.NewInvoice("INV-TEST-EMPTY", f.clientID, payerID, "")
		require.NoError(t, err)
		require.NoError(t, f.invoices.Save(ctx, inv))

		// a zero total is within the one cent tolerance of 0.01
		_, err = f.pay(inv, finance.PaymentMethodCash, "0.01")
		assert.ErrorIs(t, err, shared.ErrInvalidOperation)
		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)

		payments, err := f.svc.GetInvoicePayments(ctx, inv.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
		assert.Equal(t, invoicing.InvoiceStatusDraft, f.reload(t, inv.ID).Status)
	})

	t.Run("amount is checked before settlement", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.On("Charge", mock.Anything, mock.Anything).Return(approved(), nil).Once()
		inv := f.seedInvoice(t, "10.00", 1)
		_, err := f.pay(inv, finance.PaymentMethodCash, inv.Total.String())
		require.NoError(t, err)

		_, err = f.pay(inv, finance.PaymentMethodCash, "1.00")
		assert.ErrorIs(t, err, shared.ErrAmountMismatch)
		assert.NotErrorIs(t, err, shared.ErrAlreadyPaid)
		f.gateway.AssertNumberOfCalls(t, "Charge", 1)
	})

	t.Run("missing method", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "10.00", 1)
		_, err := f.svc.ProcessPayment(ctx, payerID, appfinance.ProcessPaymentRequest{
			InvoiceID:       inv.ID,
			PaymentMethodID: 999,
			Amount:          inv.Total,
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("inactive method is checked before the amount", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "10.00", 1)
		m := f.methods[finance.PaymentMethodDebitCard]
		m.IsActive = false
		require.NoError(t, persistence.NewGormPaymentMethodRepository(f.db.DB).Save(ctx, m))

		_, err := f.pay(inv, finance.PaymentMethodDebitCard, "1.00")
		assert.ErrorIs(t, err, shared.ErrInvalidOperation)
		assert.NotErrorIs(t, err, shared.ErrAmountMismatch)
	})

	t.Run("amount tolerance is one cent", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.On("Charge", mock.Anything, mock.Anything).Return(approved(), nil)
		inv := f.seedInvoice(t, "105.36", 1)

		_, err := f.pay(inv, finance.PaymentMethodCash, "117.98")
		assert.ErrorIs(t, err, shared.ErrAmountMismatch)
		_, err = f.pay(inv, finance.PaymentMethodCash, "118.02")
		assert.ErrorIs(t, err, shared.ErrAmountMismatch)

		out, err := f.pay(inv, finance.PaymentMethodCash, "117.99")
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", out.Status)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "10.00", 1)
		_, err := f.pay(inv, finance.PaymentMethodCash, "0")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("method without gateway", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "10.00", 1)
		_, err := f.pay(inv, finance.PaymentMethodBankTransfer, inv.Total.String())
		assert.ErrorIs(t, err, shared.ErrInvalidOperation)

		payments, err := f.svc.GetInvoicePayments(ctx, inv.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
	})
}

func TestProcessPayment_DeclinedThenApproved(t *testing.T) {
	f := newPaymentFixture(t)
	inv := f.seedInvoice(t, "50.00", 2)

	f.gateway.On("Charge", mock.Anything, mock.Anything).
		Return(&finance.ChargeResult{Approved: false, FailureReason: "card declined"}, nil).Once()
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(approved(), nil).Once()

	failed, err := f.pay(inv, finance.PaymentMethodCreditCard, "112.00")
	require.NoError(t, err)
	assert.Equal(t, "FAILED", failed.Status)
	assert.Equal(t, "card declined", failed.FailureReason)
	assert.Equal(t, invoicing.InvoiceStatusDraft, f.reload(t, inv.ID).Status)

	ok, err := f.pay(inv, finance.PaymentMethodCreditCard, "112.00")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", ok.Status)
	assert.NotEqual(t, failed.TransactionID, ok.TransactionID)

	payments, err := f.svc.GetInvoicePayments(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "FAILED", payments[0].Status)
	assert.Equal(t, "COMPLETED", payments[1].Status)
}

func TestProcessPayment_GatewayErrors(t *testing.T) {
	t.Run("unknown outcome is stored as failed", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "10.00", 1)
		f.gateway.On("Charge", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: connection reset", finance.ErrGatewayRequestFailed))

		out, err := f.pay(inv, finance.PaymentMethodDigitalWallet, inv.Total.String())
		require.NoError(t, err)
		assert.Equal(t, "FAILED", out.Status)
		assert.Contains(t, out.FailureReason, "connection reset")
		assert.Equal(t, []string{finance.EventTypePaymentFailed}, f.events.Types())
	})

	t.Run("cancelled context rolls everything back", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "10.00", 1)
		f.gateway.On("Charge", mock.Anything, mock.Anything).Return(nil, context.Canceled)

		_, err := f.pay(inv, finance.PaymentMethodCash, inv.Total.String())
		assert.True(t, errors.Is(err, context.Canceled))

		payments, err := f.svc.GetInvoicePayments(context.Background(), inv.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
		assert.Empty(t, f.events.Events())
	})
}

func TestProcessPayment_IdempotencyKey(t *testing.T) {
	f := newPaymentFixture(t)
	inv := f.seedInvoice(t, "10.00", 1)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(approved(), nil).Once()

	req := appfinance.ProcessPaymentRequest{
		InvoiceID:       inv.ID,
		PaymentMethodID: f.methods[finance.PaymentMethodCash].ID,
		Amount:          decimal.RequireFromString("99.00"),
		IdempotencyKey:  "order-42",
	}

	// a rejected attempt releases its key
	_, err := f.svc.ProcessPayment(context.Background(), payerID, req)
	assert.ErrorIs(t, err, shared.ErrAmountMismatch)

	req.Amount = inv.Total
	_, err = f.svc.ProcessPayment(context.Background(), payerID, req)
	require.NoError(t, err)

	_, err = f.svc.ProcessPayment(context.Background(), payerID, req)
	assert.ErrorIs(t, err, shared.ErrConflict)
	f.gateway.AssertNumberOfCalls(t, "Charge", 1)
}

func TestRefundPayment(t *testing.T) {
	ctx := context.Background()

	settle := func(t *testing.T, f *paymentFixture) *appfinance.PaymentResponse {
		t.Helper()
		f.gateway.On("Charge", mock.Anything, mock.Anything).Return(approved(), nil).Once()
		// 89.29 + 10.71 tax = 100.00
		inv := f.seedInvoice(t, "89.29", 1)
		require.True(t, decimal.RequireFromString("100.00").Equal(inv.Total), inv.Total.String())
		out, err := f.pay(inv, finance.PaymentMethodCash, "100.00")
		require.NoError(t, err)
		require.Equal(t, "COMPLETED", out.Status)
		return out
	}

	t.Run("more than the original amount", func(t *testing.T) {
		f := newPaymentFixture(t)
		paid := settle(t, f)

		_, err := f.svc.RefundPayment(ctx, paid.ID, appfinance.RefundPaymentRequest{Amount: decimal.RequireFromString("150.00"), Reason: "goodwill"})
		assert.ErrorIs(t, err, shared.ErrInvalidOperation)
		assert.Contains(t, err.Error(), "exceeds original amount")
	})

	t.Run("partial refund keeps the invoice paid", func(t *testing.T) {
		f := newPaymentFixture(t)
		paid := settle(t, f)
		f.gateway.On("Refund", mock.Anything, mock.MatchedBy(func(r *finance.RefundRequest) bool {
			return r.GatewayReference == "REF-1" && r.Amount.Equal(decimal.RequireFromString("40.00"))
		})).Return(&finance.RefundResult{GatewayRefundID: "RF-1"}, nil).Once()

		out, err := f.svc.RefundPayment(ctx, paid.ID, appfinance.RefundPaymentRequest{Amount: decimal.RequireFromString("40.00"), Reason: "damaged box"})
		require.NoError(t, err)
		assert.Equal(t, "REFUNDED", out.Status)
		assert.True(t, decimal.RequireFromString("40.00").Equal(out.RefundAmount))
		assert.Equal(t, "damaged box", out.RefundReason)
		assert.Equal(t, invoicing.InvoiceStatusPaid, f.reload(t, paid.InvoiceID).Status)

		_, err = f.svc.RefundPayment(ctx, paid.ID, appfinance.RefundPaymentRequest{Amount: decimal.RequireFromString("1.00")})
		assert.ErrorIs(t, err, shared.ErrInvalidOperation)
		f.gateway.AssertExpectations(t)
	})

	t.Run("zero amount", func(t *testing.T) {
		f := newPaymentFixture(t)
		paid := settle(t, f)
		_, err := f.svc.RefundPayment(ctx, paid.ID, appfinance.RefundPaymentRequest{Amount: decimal.Zero})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("gateway without refunds", func(t *testing.T) {
		f := newPaymentFixture(t)
		paid := settle(t, f)
		f.gateway.On("Refund", mock.Anything, mock.Anything).Return(nil, finance.ErrRefundNotSupported).Once()

		_, err := f.svc.RefundPayment(ctx, paid.ID, appfinance.RefundPaymentRequest{Amount: decimal.RequireFromString("10.00")})
		assert.ErrorIs(t, err, shared.ErrInvalidOperation)

		status, err := f.svc.GetPaymentStatus(ctx, paid.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", status.Status)
	})
}

func TestCancelPayment(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	inv := f.seedInvoice(t, "10.00", 1)

	pending, err := finance.NewPayment(inv.ID, f.methods[finance.PaymentMethodCash].ID, payerID, inv.Total, "TXN-PENDING", "")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormPaymentRepository(f.db.DB).Save(ctx, pending))

	out, err := f.svc.CancelPayment(ctx, pending.ID, "customer left")
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", out.Status)
	assert.Equal(t, "customer left", out.CancelReason)
	assert.NotNil(t, out.ProcessedAt)

	_, err = f.svc.CancelPayment(ctx, pending.ID, "again")
	assert.ErrorIs(t, err, shared.ErrInvalidOperation)

	_, err = f.svc.CancelPayment(ctx, 9999, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPaymentQueries(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(approved(), nil)

	for i := 0; i < 3; i++ {
		inv := f.seedInvoice(t, "10.00", 1)
		_, err := f.pay(inv, finance.PaymentMethodCash, inv.Total.String())
		require.NoError(t, err)
	}

	status, err := f.svc.GetPaymentStatus(ctx, "TXN-TEST-002")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", status.Status)

	_, err = f.svc.GetPaymentStatus(ctx, "TXN-NOPE")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	page, err := f.svc.GetUserPaymentHistory(ctx, payerID, appfinance.PaymentHistoryFilter{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)

	page, err = f.svc.GetUserPaymentHistory(ctx, payerID+1, appfinance.PaymentHistoryFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	m := f.methods[finance.PaymentMethodBankTransfer]
	m.IsActive = false
	require.NoError(t, persistence.NewGormPaymentMethodRepository(f.db.DB).Save(ctx, m))

	all, err := f.svc.ListPaymentMethods(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, len(finance.AllPaymentMethodCodes))
	active, err := f.svc.ListPaymentMethods(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, len(finance.AllPaymentMethodCodes)-1)
}
