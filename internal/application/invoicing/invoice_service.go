package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/application/validation"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultNumberMaxAttempts bounds invoice number regeneration on collision
const DefaultNumberMaxAttempts = 5

// Config holds the invoice engine rules
type Config struct {
	// EnforceDraftOnly rejects line mutations on non-Draft invoices.
	// When false, lines may be added and removed whatever the invoice status.
	EnforceDraftOnly  bool
	NumberMaxAttempts int
}

// InvoiceService handles invoice lifecycle, line mutation and cart checkout
type InvoiceService struct {
	scope          TransactionScope
	invoiceRepo    invoicing.InvoiceRepository
	numbers        invoicing.NumberGenerator
	config         Config
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	metrics        *telemetry.EngineMetrics
	now            func() time.Time
}

// NewInvoiceService creates a new InvoiceService. invoiceRepo serves reads outside a transaction.
func NewInvoiceService(scope TransactionScope, invoiceRepo invoicing.InvoiceRepository, cfg Config, log *zap.Logger) *InvoiceService {
	if cfg.NumberMaxAttempts <= 0 {
		cfg.NumberMaxAttempts = DefaultNumberMaxAttempts
	}
	return &InvoiceService{
		scope:       scope,
		invoiceRepo: invoiceRepo,
		numbers:     invoicing.TimestampNumberGenerator{},
		config:      cfg,
		logger:      logger.OrNop(log).Named("invoice_service"),
		now:         time.Now,
	}
}

// SetEventPublisher sets the publisher that receives events after commit
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetNumberGenerator replaces the invoice number strategy
func (s *InvoiceService) SetNumberGenerator(g invoicing.NumberGenerator) {
	s.numbers = g
}

// SetMetrics sets the engine metrics recorder
func (s *InvoiceService) SetMetrics(m *telemetry.EngineMetrics) {
	s.metrics = m
}

func (s *InvoiceService) linePolicy() invoicing.StatusPolicy {
	if s.config.EnforceDraftOnly {
		return invoicing.EnforceDraft
	}
	return invoicing.AnyStatus
}

// publishDomainEvents publishes the invoice's pending events. Called only after commit.
func (s *InvoiceService) publishDomainEvents(ctx context.Context, inv *invoicing.Invoice) {
	events := inv.GetDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		inv.ClearDomainEvents()
		return
	}
	// the bus logs handler failures itself
	_ = s.eventPublisher.Publish(ctx, events...)
	inv.ClearDomainEvents()
}

// allocateNumber draws invoice numbers until one is free
func (s *InvoiceService) allocateNumber(ctx context.Context, repo invoicing.InvoiceRepository) (string, error) {
	for attempt := 1; attempt <= s.config.NumberMaxAttempts; attempt++ {
		number := s.numbers.Generate(s.now())
		exists, err := repo.ExistsByNumber(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		logger.For(ctx, s.logger).Debug("invoice number collision",
			zap.String("invoice_number", number),
			zap.Int("attempt", attempt),
		)
	}
	return "", shared.NewDomainError(shared.CodeConflict,
		fmt.Sprintf("Could not allocate a unique invoice number after %d attempts", s.config.NumberMaxAttempts))
}

// CreateInvoice creates a Draft invoice from explicit lines and takes their stock
func (s *InvoiceService) CreateInvoice(ctx context.Context, userID int64, req CreateInvoiceRequest) (resp *InvoiceResponse, err error) {
	defer s.metrics.ObserveOperation(ctx, "create_invoice", time.Now(), &err)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrUserID, userID, telemetry.SpanAttrClientID, req.ClientID)

	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var inv *invoicing.Invoice
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := requireClient(ctx, repos, req.ClientID); err != nil {
			return err
		}
		number, err := s.allocateNumber(ctx, repos.InvoiceRepo())
		if err != nil {
			return err
		}
		inv, err = invoicing.NewInvoice(number, req.ClientID, userID, req.Observations)
		if err != nil {
			return err
		}
		for _, line := range req.Lines {
			product, err := repos.ProductRepo().FindActiveByID(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if _, err := inv.AddDetail(product.ID, product.Code, product.Name, line.Quantity, product.Price); err != nil {
				return err
			}
			if err := s.decreaseStock(ctx, repos, "create_invoice", product.ID, line.Quantity); err != nil {
				return err
			}
		}
		return repos.InvoiceRepo().Save(ctx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	inv.RecordCreated()
	s.publishDomainEvents(ctx, inv)
	s.metrics.RecordInvoiceCreated(ctx, "direct", inv.Total)
	logger.For(ctx, s.logger).Info("invoice created",
		zap.Int64("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int("lines", inv.ItemCount()),
		zap.String("total", inv.Total.StringFixed(2)),
	)

	out := ToInvoiceResponse(inv)
	return &out, nil
}

// GetInvoice retrieves an invoice by ID, soft-deleted ones included
func (s *InvoiceService) GetInvoice(ctx context.Context, id int64) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToInvoiceResponse(inv)
	return &out, nil
}

// GetInvoiceByNumber retrieves an invoice by its number
func (s *InvoiceService) GetInvoiceByNumber(ctx context.Context, number string) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	out := ToInvoiceResponse(inv)
	return &out, nil
}

// ListInvoices lists invoices with filtering and pagination
func (s *InvoiceService) ListInvoices(ctx context.Context, filter InvoiceListFilter) (shared.Paginated[InvoiceResponse], error) {
	if err := validation.Struct(filter); err != nil {
		return shared.Paginated[InvoiceResponse]{}, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	domainFilter := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		ClientID:        filter.ClientID,
		UserID:          filter.UserID,
		Status:          invoicing.InvoiceStatus(filter.Status),
		IncludeInactive: filter.IncludeInactive,
	}
	invoices, total, err := s.invoiceRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return shared.Paginated[InvoiceResponse]{}, err
	}
	return shared.NewPaginated(ToInvoiceResponses(invoices), total, filter.Page, filter.PageSize), nil
}

// FinalizeInvoice moves a Draft invoice with lines to Finalized
func (s *InvoiceService) FinalizeInvoice(ctx context.Context, id int64) (*InvoiceResponse, error) {
	return s.transition(ctx, id, "finalize", func(inv *invoicing.Invoice) error {
		return inv.Finalize()
	})
}

// CancelInvoice cancels a Draft or Finalized invoice. Stock held by its lines stays taken.
func (s *InvoiceService) CancelInvoice(ctx context.Context, id int64, reason string) (*InvoiceResponse, error) {
	return s.transition(ctx, id, "cancel", func(inv *invoicing.Invoice) error {
		return inv.Cancel(reason)
	})
}

// DeleteInvoice soft-deletes a Draft or Cancelled invoice
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id int64, reason string) (*InvoiceResponse, error) {
	return s.transition(ctx, id, "delete", func(inv *invoicing.Invoice) error {
		return inv.SoftDelete(reason)
	})
}

// RestoreInvoice reverses a soft delete
func (s *InvoiceService) RestoreInvoice(ctx context.Context, id int64) (*InvoiceResponse, error) {
	return s.transition(ctx, id, "restore", func(inv *invoicing.Invoice) error {
		inv.Restore()
		return nil
	})
}

// transition locks the invoice, applies fn and saves under the version token
func (s *InvoiceService) transition(ctx context.Context, id int64, op string, fn func(*invoicing.Invoice) error) (resp *InvoiceResponse, err error) {
	defer s.metrics.ObserveOperation(ctx, op+"_invoice", time.Now(), &err)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", op)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, id)

	var inv *invoicing.Invoice
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(inv); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishDomainEvents(ctx, inv)
	logger.For(ctx, s.logger).Info("invoice "+op,
		zap.Int64("invoice_id", inv.ID),
		zap.String("status", inv.Status.String()),
	)
	out := ToInvoiceResponse(inv)
	return &out, nil
}

func requireClient(ctx context.Context, repos TransactionalRepositories, clientID int64) error {
	ok, err := repos.ClientRepo().Exists(ctx, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("Client %d not found", clientID)
	}
	return nil
}

// decreaseStock takes qty units from the ledger and counts refusals
func (s *InvoiceService) decreaseStock(ctx context.Context, repos TransactionalRepositories, op string, productID int64, qty int) error {
	err := repos.StockLedger().Decrease(ctx, productID, qty)
	if err != nil && shared.ErrorCode(err) == shared.CodeInsufficientStock {
		s.metrics.RecordStockRejected(ctx, op)
	}
	return err
}
