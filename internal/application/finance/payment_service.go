package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/application/validation"
	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PaymentServiceConfig holds the collaborators of the payment processor
type PaymentServiceConfig struct {
	Scope          TransactionScope
	PaymentRepo    finance.PaymentRepository
	MethodRepo     finance.PaymentMethodRepository
	Gateways       finance.PaymentGatewayRegistry
	Idempotency    shared.IdempotencyStore
	IDs            finance.TransactionIDGenerator
	Currency       string
	IdempotencyTTL time.Duration
	EventPublisher shared.EventPublisher
	Metrics        *telemetry.EngineMetrics
	Logger         *zap.Logger
}

// PaymentService settles invoices through payment gateways
type PaymentService struct {
	scope          TransactionScope
	paymentRepo    finance.PaymentRepository
	methodRepo     finance.PaymentMethodRepository
	gateways       finance.PaymentGatewayRegistry
	idempotency    shared.IdempotencyStore
	ids            finance.TransactionIDGenerator
	currency       string
	idempotencyTTL time.Duration
	eventPublisher shared.EventPublisher
	metrics        *telemetry.EngineMetrics
	logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	ids := cfg.IDs
	if ids == nil {
		ids = finance.ULIDTransactionIDs
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyTTL
	}
	return &PaymentService{
		scope:          cfg.Scope,
		paymentRepo:    cfg.PaymentRepo,
		methodRepo:     cfg.MethodRepo,
		gateways:       cfg.Gateways,
		idempotency:    cfg.Idempotency,
		ids:            ids,
		currency:       currency,
		idempotencyTTL: ttl,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         logger.OrNop(cfg.Logger).Named("payment_service"),
	}
}

// ProcessPayment charges the invoice total through the chosen payment method.
//
// Checks run in a fixed order: the invoice must exist and be payable, the method must
// exist and be active, the amount must match the invoice total within one cent, and
// the invoice must not already be settled. A Draft invoice without lines is refused
// before any gateway call. A declined charge is stored as FAILED and
// returned without error. An approved charge completes the payment and marks the
// invoice Paid, finalizing a Draft invoice on the way, in the same transaction.
func (s *PaymentService) ProcessPayment(ctx context.Context, userID int64, req ProcessPaymentRequest) (resp *PaymentResponse, err error) {
	defer s.metrics.ObserveOperation(ctx, "process_payment", time.Now(), &err)
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "process")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, req.InvoiceID,
		telemetry.SpanAttrUserID, userID,
		telemetry.SpanAttrAmount, req.Amount.StringFixed(2),
	)

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, shared.Validationf("Payment amount must be positive")
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		key := "payment:" + req.IdempotencyKey
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.idempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}
		if !fresh {
			return nil, shared.NewDomainError(shared.CodeConflict,
				fmt.Sprintf("Payment request %s was already submitted", req.IdempotencyKey))
		}
		defer func() {
			if err != nil {
				if ferr := s.idempotency.Forget(context.WithoutCancel(ctx), key); ferr != nil {
					logger.For(ctx, s.logger).Warn("failed to release idempotency key",
						zap.String("key", key), zap.Error(ferr))
				}
			}
		}()
	}

	var payment *finance.Payment
	var inv *invoicing.Invoice
	var method *finance.PaymentMethod
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if inv.IsDeleted() || inv.Status == invoicing.InvoiceStatusCancelled {
			return shared.InvalidOperationf("Invoice %s cannot be paid in its current state", inv.InvoiceNumber)
		}
		if inv.Status == invoicing.InvoiceStatusDraft && !inv.IsPayable() {
			return shared.InvalidOperationf("Invoice %s has no lines to pay for", inv.InvoiceNumber)
		}

		method, err = repos.PaymentMethodRepo().FindByID(ctx, req.PaymentMethodID)
		if err != nil {
			return err
		}
		if !method.IsActive {
			return shared.InvalidOperationf("Payment method %s is not active", method.Code)
		}

		if !finance.MatchesAmount(req.Amount, inv.Total) {
			return shared.NewDomainError(shared.CodeAmountMismatch,
				fmt.Sprintf("Payment amount %s does not match invoice total %s",
					req.Amount.StringFixed(2), inv.Total.StringFixed(2)))
		}

		if inv.Status == invoicing.InvoiceStatusPaid {
			return shared.NewDomainError(shared.CodeAlreadyPaid,
				fmt.Sprintf("Invoice %s is already paid", inv.InvoiceNumber))
		}
		settled, err := repos.PaymentRepo().HasCompletedPayment(ctx, inv.ID)
		if err != nil {
			return err
		}
		if settled {
			return shared.NewDomainError(shared.CodeAlreadyPaid,
				fmt.Sprintf("Invoice %s already has a completed payment", inv.InvoiceNumber))
		}

		gateway, err := s.gateways.GetGateway(method.Code)
		if err != nil {
			return shared.InvalidOperationf("No gateway configured for payment method %s", method.Code)
		}

		payment, err = finance.NewPayment(inv.ID, method.ID, userID, req.Amount, s.ids.NewTransactionID(), req.Note)
		if err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, payment); err != nil {
			return err
		}
		if err := payment.StartProcessing(); err != nil {
			return err
		}

		if err := s.charge(ctx, gateway, inv, method, payment); err != nil {
			return err
		}

		if payment.IsCompleted() {
			if inv.Status == invoicing.InvoiceStatusDraft {
				if err := inv.Finalize(); err != nil {
					return err
				}
			}
			if err := inv.MarkPaid(); err != nil {
				return err
			}
			if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
				return err
			}
		}
		return repos.PaymentRepo().Save(ctx, payment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, payment.GetDomainEvents()...)
	payment.ClearDomainEvents()
	s.publishEvents(ctx, inv.GetDomainEvents()...)
	inv.ClearDomainEvents()

	s.metrics.RecordPayment(ctx, method.Code.String(), payment.Status.String(), payment.Amount)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, payment.ID,
		telemetry.SpanAttrTransactionID, payment.TransactionID,
		telemetry.SpanAttrPaymentMethod, method.Code.String(),
	)
	logger.For(ctx, s.logger).Info("payment processed",
		zap.Int64("payment_id", payment.ID),
		zap.String("transaction_id", payment.TransactionID),
		zap.Int64("invoice_id", inv.ID),
		zap.String("method", method.Code.String()),
		zap.String("status", payment.Status.String()),
	)

	out := ToPaymentResponse(payment)
	return &out, nil
}

// charge calls the gateway and records its outcome on the payment.
// Gateway errors become a FAILED payment; only context cancellation aborts the transaction.
func (s *PaymentService) charge(ctx context.Context, gateway finance.PaymentGateway, inv *invoicing.Invoice, method *finance.PaymentMethod, payment *finance.Payment) error {
	result, err := gateway.Charge(ctx, &finance.ChargeRequest{
		TransactionID: payment.TransactionID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Method:        method.Code,
		Amount:        payment.Amount,
		Currency:      s.currency,
		Description:   fmt.Sprintf("Invoice %s", inv.InvoiceNumber),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		logger.For(ctx, s.logger).Warn("gateway charge failed",
			zap.String("gateway", gateway.Name()),
			zap.String("transaction_id", payment.TransactionID),
			zap.Error(err),
		)
		return payment.Fail(err.Error())
	}
	if !result.Approved {
		return payment.Fail(result.FailureReason)
	}
	return payment.Complete(result.ProcessorResponse, result.GatewayReference)
}

// RefundPayment returns money of a completed payment. The invoice stays Paid.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID int64, req RefundPaymentRequest) (resp *PaymentResponse, err error) {
	defer s.metrics.ObserveOperation(ctx, "refund_payment", time.Now(), &err)
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "refund")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, paymentID,
		telemetry.SpanAttrAmount, req.Amount.StringFixed(2),
	)

	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var payment *finance.Payment
	var method *finance.PaymentMethod
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payment, err = repos.PaymentRepo().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		method, err = repos.PaymentMethodRepo().FindByID(ctx, payment.PaymentMethodID)
		if err != nil {
			return err
		}
		if err := payment.Refund(req.Amount, req.Reason); err != nil {
			return err
		}

		gateway, err := s.gateways.GetGateway(method.Code)
		if err != nil {
			return shared.InvalidOperationf("No gateway configured for payment method %s", method.Code)
		}
		result, err := gateway.Refund(ctx, &finance.RefundRequest{
			TransactionID:    payment.TransactionID,
			GatewayReference: payment.GatewayReference,
			Amount:           req.Amount,
			Reason:           req.Reason,
		})
		if err != nil {
			if errors.Is(err, finance.ErrRefundNotSupported) {
				return shared.InvalidOperationf("Payment method %s does not support refunds", method.Code)
			}
			return fmt.Errorf("gateway refund: %w", err)
		}
		logger.For(ctx, s.logger).Debug("gateway refund accepted",
			zap.String("gateway", gateway.Name()),
			zap.String("refund_id", result.GatewayRefundID),
		)
		return repos.PaymentRepo().Save(ctx, payment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, payment.GetDomainEvents()...)
	payment.ClearDomainEvents()
	s.metrics.RecordRefund(ctx, method.Code.String(), payment.RefundAmount)
	logger.For(ctx, s.logger).Info("payment refunded",
		zap.Int64("payment_id", payment.ID),
		zap.String("transaction_id", payment.TransactionID),
		zap.String("refund_amount", payment.RefundAmount.StringFixed(2)),
	)

	out := ToPaymentResponse(payment)
	return &out, nil
}

// CancelPayment abandons a Pending or Processing payment
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID int64, reason string) (resp *PaymentResponse, err error) {
	defer s.metrics.ObserveOperation(ctx, "cancel_payment", time.Now(), &err)
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "cancel")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, paymentID)

	var payment *finance.Payment
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payment, err = repos.PaymentRepo().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := payment.Cancel(reason); err != nil {
			return err
		}
		return repos.PaymentRepo().Save(ctx, payment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, payment.GetDomainEvents()...)
	payment.ClearDomainEvents()
	logger.For(ctx, s.logger).Info("payment cancelled",
		zap.Int64("payment_id", payment.ID),
		zap.String("transaction_id", payment.TransactionID),
	)

	out := ToPaymentResponse(payment)
	return &out, nil
}

// GetPaymentStatus looks a payment up by its transaction id
func (s *PaymentService) GetPaymentStatus(ctx context.Context, transactionID string) (*PaymentResponse, error) {
	payment, err := s.paymentRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	out := ToPaymentResponse(payment)
	return &out, nil
}

// GetUserPaymentHistory pages through the payments a user initiated, newest first
func (s *PaymentService) GetUserPaymentHistory(ctx context.Context, userID int64, filter PaymentHistoryFilter) (shared.Paginated[PaymentResponse], error) {
	if err := validation.Struct(filter); err != nil {
		return shared.Paginated[PaymentResponse]{}, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	payments, total, err := s.paymentRepo.FindByUser(ctx, userID, shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	})
	if err != nil {
		return shared.Paginated[PaymentResponse]{}, err
	}
	return shared.NewPaginated(ToPaymentResponses(payments), total, filter.Page, filter.PageSize), nil
}

// GetInvoicePayments lists every payment attempt of an invoice, oldest first
func (s *PaymentService) GetInvoicePayments(ctx context.Context, invoiceID int64) ([]PaymentResponse, error) {
	payments, err := s.paymentRepo.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return ToPaymentResponses(payments), nil
}

// ListPaymentMethods lists the configured payment methods
func (s *PaymentService) ListPaymentMethods(ctx context.Context, activeOnly bool) ([]PaymentMethodResponse, error) {
	methods, err := s.methodRepo.FindAll(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentMethodResponse, len(methods))
	for i := range methods {
		out[i] = ToPaymentMethodResponse(&methods[i])
	}
	return out, nil
}

func (s *PaymentService) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	// handler failures are logged by the bus
	_ = s.eventPublisher.Publish(ctx, events...)
}
