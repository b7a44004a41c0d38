// Package bootstrap assembles the invoicing engine from configuration: database,
// telemetry, event bus, idempotency store, payment gateways and the application
// services on top of them. The binaries under cmd/ share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	appcart "github.com/erp/invoicing/internal/application/cart"
	appfinance "github.com/erp/invoicing/internal/application/finance"
	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/cache"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/event"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/payment"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const meterName = "github.com/erp/invoicing"

// Engine holds the wired services and the resources that must be released on Close
type Engine struct {
	DB       *persistence.Database
	Bus      *event.InMemoryEventBus
	Gateways *payment.Registry
	Metrics  *telemetry.EngineMetrics

	Invoices *appinvoicing.InvoiceService
	Carts    *appcart.CartService
	Payments *appfinance.PaymentService

	idempotency shared.IdempotencyStore
	tracer      *telemetry.TracerProvider
	meter       *telemetry.MeterProvider
	logs        *telemetry.LoggerProvider
	logger      *zap.Logger
}

// New wires an Engine. On error every resource opened so far is released.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *Engine, err error) {
	log = logger.OrNop(log)
	e := &Engine{logger: log}
	defer func() {
		if err != nil {
			_ = e.Close(context.Background())
		}
	}()

	tcfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}
	if e.tracer, err = telemetry.NewTracerProvider(ctx, tcfg, log); err != nil {
		return nil, err
	}
	if e.meter, err = telemetry.NewMeterProvider(ctx, tcfg, log); err != nil {
		return nil, err
	}
	if e.logs, err = telemetry.NewLoggerProvider(ctx, tcfg, log); err != nil {
		return nil, err
	}
	level, lerr := zapcore.ParseLevel(cfg.Log.Level)
	if lerr != nil {
		level = zapcore.InfoLevel
	}
	log = e.logs.Bridge(log, cfg.Telemetry.ServiceName, level)
	e.logger = log

	if e.Metrics, err = telemetry.NewEngineMetrics(e.meter.Meter(meterName)); err != nil {
		return nil, fmt.Errorf("register engine metrics: %w", err)
	}

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.TraceSQL
	dbTracing.DBName = cfg.Database.DBName
	dbTracing.IncludeSQLVars = cfg.App.Env == "development"
	e.DB, err = persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithPlugin(telemetry.NewDBTracingPlugin(dbTracing, log)),
	)
	if err != nil {
		return nil, err
	}

	e.Bus = event.NewInMemoryEventBus(log)
	e.Bus.Subscribe(event.NewJournalHandler(event.NewEventSerializer(), log))

	e.idempotency, err = cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		return nil, err
	}

	if e.Gateways, err = NewGatewayRegistry(cfg.Payment, log); err != nil {
		return nil, err
	}

	e.Invoices = appinvoicing.NewInvoiceService(
		persistence.NewGormTransactionScope(e.DB.DB),
		persistence.NewGormInvoiceRepository(e.DB.DB),
		appinvoicing.Config{
			EnforceDraftOnly:  cfg.Invoicing.EnforceDraftOnly,
			NumberMaxAttempts: cfg.Invoicing.NumberMaxAttempts,
		},
		log,
	)
	e.Invoices.SetEventPublisher(e.Bus)
	e.Invoices.SetMetrics(e.Metrics)

	e.Carts = appcart.NewCartService(
		persistence.NewGormCartRepository(e.DB.DB),
		persistence.NewGormProductRepository(e.DB.DB),
		persistence.NewGormStockLedger(e.DB.DB),
		log,
	)

	e.Payments = appfinance.NewPaymentService(appfinance.PaymentServiceConfig{
		Scope:          persistence.NewGormPaymentTransactionScope(e.DB.DB),
		PaymentRepo:    persistence.NewGormPaymentRepository(e.DB.DB),
		MethodRepo:     persistence.NewGormPaymentMethodRepository(e.DB.DB),
		Gateways:       e.Gateways,
		Idempotency:    e.idempotency,
		Currency:       cfg.Invoicing.Currency,
		IdempotencyTTL: cfg.Payment.IdempotencyTTL,
		EventPublisher: e.Bus,
		Metrics:        e.Metrics,
		Logger:         log,
	})

	log.Info("Invoicing engine ready",
		zap.String("env", cfg.App.Env),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
		zap.Strings("stripe_methods", cfg.Payment.StripeMethods),
	)
	return e, nil
}

// NewGatewayRegistry routes every payment method to the simulated gateway, then
// moves the methods listed in cfg.StripeMethods to Stripe.
func NewGatewayRegistry(cfg config.PaymentConfig, log *zap.Logger) (*payment.Registry, error) {
	registry := payment.NewRegistry()
	registry.Register(
		payment.NewSimulatedGateway(payment.NewSeededSource(cfg.RandomSeed), payment.WithDelay(cfg.SimulatedDelay)),
		finance.AllPaymentMethodCodes...,
	)
	if len(cfg.StripeMethods) == 0 {
		return registry, nil
	}

	methods := make([]finance.PaymentMethodCode, 0, len(cfg.StripeMethods))
	for _, raw := range cfg.StripeMethods {
		code := finance.PaymentMethodCode(raw)
		if !code.IsValid() {
			return nil, fmt.Errorf("payment.stripe_methods: unsupported method %q", raw)
		}
		methods = append(methods, code)
	}
	stripeGateway, err := payment.NewStripeGateway(payment.StripeGatewayConfig{
		SecretKey: cfg.StripeSecretKey,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	registry.Register(stripeGateway, methods...)
	return registry, nil
}

// Close releases the database, the idempotency store and flushes telemetry
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if e.idempotency != nil {
		errs = append(errs, e.idempotency.Close())
	}
	if e.DB != nil {
		errs = append(errs, e.DB.Close())
	}
	if e.meter != nil {
		errs = append(errs, e.meter.Shutdown(ctx))
	}
	if e.tracer != nil {
		errs = append(errs, e.tracer.Shutdown(ctx))
	}
	if e.logs != nil {
		errs = append(errs, e.logs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
