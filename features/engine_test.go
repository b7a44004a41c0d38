package features

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	appfinance "github.com/erp/invoicing/internal/application/finance"
	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/cart"
	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/partner"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/cache"
	"github.com/erp/invoicing/internal/infrastructure/payment"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/testutil"
	"github.com/shopspring/decimal"
)

const shopperID int64 = 1

// alwaysApprove is a RandomSource whose draws never reach any success rate
type alwaysApprove struct{}

func (alwaysApprove) Float64() float64 { return 0 }

type engineTestContext struct {
	t        *testing.T
	db       *testutil.TestDB
	invoices *appinvoicing.InvoiceService
	payments *appfinance.PaymentService
	registry *payment.Registry

	clients  map[string]*partner.Client
	products map[string]*catalog.Product
	methods  map[finance.PaymentMethodCode]*finance.PaymentMethod

	invoiceID int64
	lastPay   *appfinance.PaymentResponse
	err       error
}

func (c *engineTestContext) reset(t *testing.T) {
	c.t = t
	c.db = testutil.NewTestDB(t)
	c.invoices = appinvoicing.NewInvoiceService(
		persistence.NewGormTransactionScope(c.db.DB),
		persistence.NewGormInvoiceRepository(c.db.DB),
		appinvoicing.Config{},
		nil,
	)
	c.registry = payment.NewRegistry()
	c.payments = appfinance.NewPaymentService(appfinance.PaymentServiceConfig{
		Scope:       persistence.NewGormPaymentTransactionScope(c.db.DB),
		PaymentRepo: persistence.NewGormPaymentRepository(c.db.DB),
		MethodRepo:  persistence.NewGormPaymentMethodRepository(c.db.DB),
		Gateways:    c.registry,
		Idempotency: cache.NewInMemoryIdempotencyStore(),
	})
	c.clients = map[string]*partner.Client{}
	c.products = map[string]*catalog.Product{}
	c.methods = nil
	c.invoiceID = 0
	c.lastPay = nil
	c.err = nil
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (c *engineTestContext) product(code string) (*catalog.Product, error) {
	p, ok := c.products[code]
	if !ok {
		return nil, fmt.Errorf("unknown product %q", code)
	}
	return p, nil
}

func (c *engineTestContext) currentInvoice() (*invoicing.Invoice, error) {
	if c.invoiceID == 0 {
		return nil, errors.New("no invoice in this scenario")
	}
	return persistence.NewGormInvoiceRepository(c.db.DB).FindByID(context.Background(), c.invoiceID)
}

// Given steps

func (c *engineTestContext) aClient(name string) error {
	c.clients[name] = c.db.SeedClient(name)
	return nil
}

func (c *engineTestContext) aProductPricedWithStock(code, price string, stock int) error {
	c.products[code] = c.db.SeedProduct(code, "Product "+code, price, stock)
	return nil
}

func (c *engineTestContext) aDraftInvoiceFor(clientName string) error {
	client, ok := c.clients[clientName]
	if !ok {
		return fmt.Errorf("unknown client %q", clientName)
	}
	inv, err := invoicing.NewInvoice(invoicing.TimestampNumberGenerator{}.Generate(time.Now()), client.ID, shopperID, "")
	if err != nil {
		return err
	}
	if err := persistence.NewGormInvoiceRepository(c.db.DB).Save(context.Background(), inv); err != nil {
		return err
	}
	c.invoiceID = inv.ID
	return nil
}

func (c *engineTestContext) myCartHolds(qty int, code string) error {
	p, err := c.product(code)
	if err != nil {
		return err
	}
	item, err := cart.NewCartItem(shopperID, p.ID, qty, p.Price)
	if err != nil {
		return err
	}
	return persistence.NewGormCartRepository(c.db.DB).Save(context.Background(), item)
}

func (c *engineTestContext) thePaymentMethodsAreConfigured() error {
	c.methods = c.db.SeedPaymentMethods()
	return nil
}

func (c *engineTestContext) everyChargeIsApproved() error {
	c.registry.Register(payment.NewSimulatedGateway(alwaysApprove{}), finance.AllPaymentMethodCodes...)
	return nil
}

// When steps

func (c *engineTestContext) iAddToTheInvoice(qty int, code string) error {
	p, err := c.product(code)
	if err != nil {
		return err
	}
	_, c.err = c.invoices.AddProductToInvoice(context.Background(), c.invoiceID, appinvoicing.AddProductRequest{ProductID: p.ID, Quantity: qty})
	return nil
}

func (c *engineTestContext) iRemoveFromTheInvoice(code string) error {
	p, err := c.product(code)
	if err != nil {
		return err
	}
	_, c.err = c.invoices.RemoveProductFromInvoice(context.Background(), c.invoiceID, p.ID)
	return nil
}

func (c *engineTestContext) iCheckOutFor(clientName string) error {
	client, ok := c.clients[clientName]
	if !ok {
		return fmt.Errorf("unknown client %q", clientName)
	}
	inv, err := c.invoices.Checkout(context.Background(), shopperID, appinvoicing.CheckoutRequest{ClientID: client.ID})
	c.err = err
	if err == nil {
		c.invoiceID = inv.ID
	}
	return nil
}

func (c *engineTestContext) iPayWith(amount, code string) error {
	m, ok := c.methods[finance.PaymentMethodCode(code)]
	if !ok {
		return fmt.Errorf("payment method %q is not configured", code)
	}
	resp, err := c.payments.ProcessPayment(context.Background(), shopperID, appfinance.ProcessPaymentRequest{
		InvoiceID:       c.invoiceID,
		PaymentMethodID: m.ID,
		Amount:          money(amount),
	})
	c.err = err
	if err == nil {
		c.lastPay = resp
	}
	return nil
}

func (c *engineTestContext) iRefundOfThePayment(amount string) error {
	if c.lastPay == nil {
		return errors.New("no payment in this scenario")
	}
	_, c.err = c.payments.RefundPayment(context.Background(), c.lastPay.ID, appfinance.RefundPaymentRequest{Amount: money(amount)})
	return nil
}

// Then steps

func (c *engineTestContext) theOperationSucceeds() error {
	if c.err != nil {
		return fmt.Errorf("expected success, got %v", c.err)
	}
	return nil
}

func (c *engineTestContext) theOperationFailsWith(code string) error {
	if c.err == nil {
		return fmt.Errorf("expected %s, got success", code)
	}
	if !errors.Is(c.err, shared.NewDomainError(code, "")) {
		return fmt.Errorf("expected %s, got %s (%v)", code, shared.ErrorCode(c.err), c.err)
	}
	return nil
}

func (c *engineTestContext) theErrorMentions(text string) error {
	if c.err == nil || !strings.Contains(c.err.Error(), text) {
		return fmt.Errorf("expected an error mentioning %q, got %v", text, c.err)
	}
	return nil
}

func (c *engineTestContext) theStockOfIs(code string, want int) error {
	p, err := c.product(code)
	if err != nil {
		return err
	}
	if got := c.db.Stock(p.ID); got != want {
		return fmt.Errorf("stock of %s: want %d, got %d", code, want, got)
	}
	return nil
}

func (c *engineTestContext) theInvoiceSubtotalIs(amount string) error {
	inv, err := c.currentInvoice()
	if err != nil {
		return err
	}
	if !inv.Subtotal.Equal(money(amount)) {
		return fmt.Errorf("subtotal: want %s, got %s", amount, inv.Subtotal.StringFixed(2))
	}
	return nil
}

func (c *engineTestContext) theInvoiceTotalIs(amount string) error {
	inv, err := c.currentInvoice()
	if err != nil {
		return err
	}
	if !inv.Total.Equal(money(amount)) {
		return fmt.Errorf("total: want %s, got %s", amount, inv.Total.StringFixed(2))
	}
	return nil
}

func (c *engineTestContext) theInvoiceTotalsMatchItsLines() error {
	inv, err := c.currentInvoice()
	if err != nil {
		return err
	}
	want := invoicing.CalculateTotals(inv.Details)
	if !want.Subtotal.Equal(inv.Subtotal) || !want.Tax.Equal(inv.Tax) || !want.Total.Equal(inv.Total) {
		return fmt.Errorf("stored totals %s/%s/%s do not match lines %s/%s/%s",
			inv.Subtotal, inv.Tax, inv.Total, want.Subtotal, want.Tax, want.Total)
	}
	return nil
}

func (c *engineTestContext) theInvoiceStatusIs(status string) error {
	inv, err := c.currentInvoice()
	if err != nil {
		return err
	}
	if inv.Status.String() != status {
		return fmt.Errorf("invoice status: want %s, got %s", status, inv.Status)
	}
	return nil
}

func (c *engineTestContext) myCartIsEmpty() error {
	return c.myCartHoldsLines(0)
}

func (c *engineTestContext) myCartHoldsLines(want int) error {
	items, err := persistence.NewGormCartRepository(c.db.DB).FindByUser(context.Background(), shopperID)
	if err != nil {
		return err
	}
	if len(items) != want {
		return fmt.Errorf("cart lines: want %d, got %d", want, len(items))
	}
	return nil
}

func (c *engineTestContext) noInvoiceExists() error {
	_, total, err := persistence.NewGormInvoiceRepository(c.db.DB).FindAll(context.Background(), invoicing.InvoiceFilter{IncludeInactive: true})
	if err != nil {
		return err
	}
	if total != 0 {
		return fmt.Errorf("expected no invoice, found %d", total)
	}
	return nil
}

func (c *engineTestContext) thePaymentStatusIs(status string) error {
	if c.lastPay == nil {
		return errors.New("no payment in this scenario")
	}
	if c.lastPay.Status != status {
		return fmt.Errorf("payment status: want %s, got %s", status, c.lastPay.Status)
	}
	return nil
}

func (c *engineTestContext) theInvoiceHasCompletedPayments(want int) error {
	payments, err := c.payments.GetInvoicePayments(context.Background(), c.invoiceID)
	if err != nil {
		return err
	}
	completed := 0
	for _, p := range payments {
		if p.Status == finance.PaymentStatusCompleted.String() {
			completed++
		}
	}
	if completed != want {
		return fmt.Errorf("completed payments: want %d, got %d", want, completed)
	}
	return nil
}

func initializeScenario(t *testing.T) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		tc := &engineTestContext{}

		ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
			tc.reset(t)
			return ctx, nil
		})

		// Given steps
		ctx.Step(`^a client "([^"]*)"$`, tc.aClient)
		ctx.Step(`^a product "([^"]*)" priced (\d+\.\d+) with stock (\d+)$`, tc.aProductPricedWithStock)
		ctx.Step(`^a draft invoice for "([^"]*)"$`, tc.aDraftInvoiceFor)
		ctx.Step(`^my cart holds (\d+) of "([^"]*)"$`, tc.myCartHolds)
		ctx.Step(`^the payment methods are configured$`, tc.thePaymentMethodsAreConfigured)
		ctx.Step(`^every charge is approved$`, tc.everyChargeIsApproved)

		// When steps
		ctx.Step(`^I add (\d+) of "([^"]*)" to the invoice$`, tc.iAddToTheInvoice)
		ctx.Step(`^I remove "([^"]*)" from the invoice$`, tc.iRemoveFromTheInvoice)
		ctx.Step(`^I check out for "([^"]*)"$`, tc.iCheckOutFor)
		ctx.Step(`^I pay (\d+\.\d+) with "([^"]*)"$`, tc.iPayWith)
		ctx.Step(`^I refund (\d+\.\d+) of the payment$`, tc.iRefundOfThePayment)

		// Then steps
		ctx.Step(`^the operation succeeds$`, tc.theOperationSucceeds)
		ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
		ctx.Step(`^the error mentions "([^"]*)"$`, tc.theErrorMentions)
		ctx.Step(`^the stock of "([^"]*)" is (\d+)$`, tc.theStockOfIs)
		ctx.Step(`^the invoice subtotal is (\d+\.\d+)$`, tc.theInvoiceSubtotalIs)
		ctx.Step(`^the invoice total is (\d+\.\d+)$`, tc.theInvoiceTotalIs)
		ctx.Step(`^the invoice totals match its lines$`, tc.theInvoiceTotalsMatchItsLines)
		ctx.Step(`^the invoice status is "([^"]*)"$`, tc.theInvoiceStatusIs)
		ctx.Step(`^my cart is empty$`, tc.myCartIsEmpty)
		ctx.Step(`^my cart holds (\d+) lines$`, tc.myCartHoldsLines)
		ctx.Step(`^no invoice exists$`, tc.noInvoiceExists)
		ctx.Step(`^the payment status is "([^"]*)"$`, tc.thePaymentStatusIs)
		ctx.Step(`^the invoice has (\d+) completed payments?$`, tc.theInvoiceHasCompletedPayments)
	}
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario(t),
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"."},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
