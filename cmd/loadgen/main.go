// Command loadgen drives concurrent cart checkouts and payments against one
// product and checks afterwards that stock was never oversold and that no
// invoice ended up with more than one completed payment.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	appcart "github.com/erp/invoicing/internal/application/cart"
	appfinance "github.com/erp/invoicing/internal/application/finance"
	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/bootstrap"
	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/partner"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type runResult struct {
	Timestamp        string         `json:"timestamp"`
	Shoppers         int            `json:"shoppers"`
	Concurrency      int            `json:"concurrency"`
	QuantityEach     int            `json:"quantity_each"`
	InitialStock     int            `json:"initial_stock"`
	FinalStock       int            `json:"final_stock"`
	Checkouts        int            `json:"checkouts"`
	StockRejections  int            `json:"stock_rejections"`
	PaymentsComplete int            `json:"payments_completed"`
	PaymentsFailed   int            `json:"payments_failed"`
	AlreadyPaid      int            `json:"already_paid"`
	DurationSeconds  float64        `json:"duration_seconds"`
	AvgLatencyMs     float64        `json:"avg_latency_ms"`
	P50LatencyMs     float64        `json:"p50_latency_ms"`
	P95LatencyMs     float64        `json:"p95_latency_ms"`
	ErrorClasses     map[string]int `json:"error_classes"`
	FirstError       string         `json:"first_error,omitempty"`
	Violations       []string       `json:"violations,omitempty"`
}

type metrics struct {
	mu           sync.Mutex
	checkouts    int
	rejections   int
	completed    int
	failed       int
	alreadyPaid  int
	latenciesMs  []float64
	errorClasses map[string]int
	firstError   string
	invoiceIDs   []int64
}

func newMetrics() *metrics {
	return &metrics{errorClasses: make(map[string]int)}
}

func (m *metrics) recordCheckout(latency time.Duration, invoiceID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if latency > 0 {
		m.latenciesMs = append(m.latenciesMs, float64(latency.Microseconds())/1000)
	}
	switch {
	case err == nil:
		m.checkouts++
		m.invoiceIDs = append(m.invoiceIDs, invoiceID)
	case errors.Is(err, shared.ErrInsufficientStock):
		m.rejections++
	default:
		m.recordErrorLocked(err)
	}
}

func (m *metrics) recordPayment(resp *appfinance.PaymentResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err == nil && resp.Status == finance.PaymentStatusCompleted.String():
		m.completed++
	case err == nil:
		m.failed++
	case errors.Is(err, shared.ErrAlreadyPaid):
		m.alreadyPaid++
	default:
		m.recordErrorLocked(err)
	}
}

func (m *metrics) recordErrorLocked(err error) {
	class := shared.ErrorCode(err)
	if class == "" {
		class = "INTERNAL"
	}
	m.errorClasses[class]++
	if m.firstError == "" {
		m.firstError = err.Error()
	}
}

func main() {
	shoppers := flag.Int("shoppers", 200, "number of shoppers, each checking out one cart")
	concurrency := flag.Int("concurrency", 16, "number of concurrent workers")
	stock := flag.Int("stock", 100, "initial stock of the contended product")
	qty := flag.Int("qty", 1, "units each shopper buys")
	payAttempts := flag.Int("pay-attempts", 2, "concurrent payment attempts per invoice")
	method := flag.String("method", string(finance.PaymentMethodCash), "payment method code")
	migrate := flag.Bool("migrate", true, "create the schema and payment methods first")
	output := flag.String("output", "", "optional output path for the JSON result")
	flag.Parse()

	if *shoppers <= 0 || *concurrency <= 0 || *qty <= 0 || *stock < 0 || *payAttempts < 0 {
		fmt.Fprintln(os.Stderr, "shoppers, concurrency and qty must be > 0; stock and pay-attempts >= 0")
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start engine", zap.Error(err))
	}
	defer func() {
		if err := engine.Close(context.Background()); err != nil {
			log.Error("Error closing engine", zap.Error(err))
		}
	}()

	result, err := run(ctx, engine, runOptions{
		shoppers:    *shoppers,
		concurrency: *concurrency,
		stock:       *stock,
		qty:         *qty,
		payAttempts: *payAttempts,
		method:      finance.PaymentMethodCode(strings.ToUpper(*method)),
		migrate:     *migrate,
	}, log)
	if err != nil {
		log.Fatal("Load run failed", zap.Error(err))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatal("Failed to encode result", zap.Error(err))
	}
	if *output != "" {
		if err := writeJSON(*output, result); err != nil {
			log.Fatal("Failed to write output", zap.Error(err))
		}
	}
	if len(result.Violations) > 0 {
		os.Exit(2)
	}
}

type runOptions struct {
	shoppers    int
	concurrency int
	stock       int
	qty         int
	payAttempts int
	method      finance.PaymentMethodCode
	migrate     bool
}

func run(ctx context.Context, e *bootstrap.Engine, opts runOptions, log *zap.Logger) (*runResult, error) {
	if opts.migrate {
		if err := e.DB.AutoMigrate(ctx); err != nil {
			return nil, err
		}
		if _, err := persistence.SeedPaymentMethods(ctx, e.DB.DB); err != nil {
			return nil, err
		}
	}
	method, err := persistence.NewGormPaymentMethodRepository(e.DB.DB).FindByCode(ctx, opts.method)
	if err != nil {
		return nil, err
	}

	runID := strings.ToUpper(uuid.NewString()[:8])
	client, err := partner.NewClient("Loadgen "+runID, "")
	if err != nil {
		return nil, err
	}
	if err := persistence.NewGormClientRepository(e.DB.DB).Save(ctx, client); err != nil {
		return nil, err
	}
	product, err := catalog.NewProduct("LG-"+runID, "Loadgen item "+runID, decimal.RequireFromString("9.99"), opts.stock)
	if err != nil {
		return nil, err
	}
	products := persistence.NewGormProductRepository(e.DB.DB)
	if err := products.Save(ctx, product); err != nil {
		return nil, err
	}
	log.Info("Load run started",
		zap.String("run_id", runID),
		zap.Int64("product_id", product.ID),
		zap.Int("stock", opts.stock),
		zap.Int("shoppers", opts.shoppers),
	)

	// user ids are derived from the product id so concurrent runs never share carts
	baseUserID := product.ID * 1_000_000
	m := newMetrics()
	tasks := make(chan int)
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				shop(ctx, e, m, baseUserID+int64(i), client.ID, product.ID, method.ID, opts)
			}
		}()
	}
	for i := 0; i < opts.shoppers; i++ {
		select {
		case tasks <- i:
		case <-ctx.Done():
		}
	}
	close(tasks)
	wg.Wait()
	duration := time.Since(start)

	final, err := products.FindByID(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	result := &runResult{
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Shoppers:         opts.shoppers,
		Concurrency:      opts.concurrency,
		QuantityEach:     opts.qty,
		InitialStock:     opts.stock,
		FinalStock:       final.Stock,
		Checkouts:        m.checkouts,
		StockRejections:  m.rejections,
		PaymentsComplete: m.completed,
		PaymentsFailed:   m.failed,
		AlreadyPaid:      m.alreadyPaid,
		DurationSeconds:  duration.Seconds(),
		ErrorClasses:     m.errorClasses,
		FirstError:       m.firstError,
	}
	result.AvgLatencyMs, result.P50LatencyMs, result.P95LatencyMs = latencySummary(m.latenciesMs)
	result.Violations, err = verify(ctx, e, m, opts, final.Stock)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// shop fills one cart, checks it out and races payAttempts payments for the invoice
func shop(ctx context.Context, e *bootstrap.Engine, m *metrics, userID, clientID, productID, methodID int64, opts runOptions) {
	if _, err := e.Carts.AddToCart(ctx, userID, appcart.AddToCartRequest{ProductID: productID, Quantity: opts.qty}); err != nil {
		m.recordCheckout(0, 0, err)
		return
	}

	began := time.Now()
	inv, err := e.Invoices.Checkout(ctx, userID, appinvoicing.CheckoutRequest{ClientID: clientID, Observations: "loadgen"})
	if err != nil {
		m.recordCheckout(time.Since(began), 0, err)
		_ = e.Carts.ClearCart(ctx, userID)
		return
	}
	m.recordCheckout(time.Since(began), inv.ID, nil)

	var wg sync.WaitGroup
	for a := 0; a < opts.payAttempts; a++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.Payments.ProcessPayment(ctx, userID, appfinance.ProcessPaymentRequest{
				InvoiceID:       inv.ID,
				PaymentMethodID: methodID,
				Amount:          inv.Total,
			})
			m.recordPayment(resp, err)
		}()
	}
	wg.Wait()
}

// verify checks the run against the stock and payment guarantees
func verify(ctx context.Context, e *bootstrap.Engine, m *metrics, opts runOptions, finalStock int) ([]string, error) {
	var violations []string
	if finalStock < 0 {
		violations = append(violations, fmt.Sprintf("stock went negative: %d", finalStock))
	}
	if sold := opts.stock - finalStock; sold != m.checkouts*opts.qty {
		violations = append(violations, fmt.Sprintf("stock moved by %d but %d checkouts of %d units succeeded", sold, m.checkouts, opts.qty))
	}

	for _, id := range m.invoiceIDs {
		payments, err := e.Payments.GetInvoicePayments(ctx, id)
		if err != nil {
			return nil, err
		}
		completed := 0
		for _, p := range payments {
			if p.Status == finance.PaymentStatusCompleted.String() {
				completed++
			}
		}
		if completed > 1 {
			violations = append(violations, fmt.Sprintf("invoice %d has %d completed payments", id, completed))
		}
	}
	return violations, nil
}

func latencySummary(values []float64) (avg, p50, p95 float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	at := func(q float64) float64 {
		return sorted[int(q*float64(len(sorted)-1))]
	}
	return sum / float64(len(sorted)), at(0.50), at(0.95)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
