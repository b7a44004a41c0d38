package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.uber.org/zap"
)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// StripeGatewayConfig configures the StripeGateway
type StripeGatewayConfig struct {
	SecretKey string
	// PaymentMethod is the Stripe payment method confirmed against, e.g. pm_card_visa in test mode
	PaymentMethod string
	Backends      *stripe.Backends
	Logger        *zap.Logger
}

// StripeGateway charges card payments through Stripe PaymentIntents
type StripeGateway struct {
	intents       stripePaymentIntentAPI
	refunds       stripeRefundAPI
	paymentMethod string
	logger        *zap.Logger
}

// NewStripeGateway creates a StripeGateway
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if !strings.HasPrefix(key, "sk_test_") && !strings.HasPrefix(key, "sk_live_") {
		return nil, errors.New("stripe: invalid secret key format")
	}
	pm := cfg.PaymentMethod
	if pm == "" {
		pm = "pm_card_visa"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sc := client.New(key, cfg.Backends)
	return &StripeGateway{
		intents:       sc.PaymentIntents,
		refunds:       sc.Refunds,
		paymentMethod: pm,
		logger:        logger,
	}, nil
}

// Name identifies the gateway
func (g *StripeGateway) Name() string {
	return "stripe"
}

// Charge creates and confirms a PaymentIntent. Card declines come back as a declined result.
func (g *StripeGateway) Charge(ctx context.Context, req *finance.ChargeRequest) (*finance.ChargeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(minorUnits(req.Amount)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(g.paymentMethod),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.TransactionID)
	params.AddMetadata("transaction_id", req.TransactionID)
	params.AddMetadata("invoice_id", strconv.FormatInt(req.InvoiceID, 10))
	params.AddMetadata("invoice_number", req.InvoiceNumber)

	intent, err := g.intents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			g.logger.Info("stripe charge declined",
				zap.String("transaction_id", req.TransactionID),
				zap.String("decline_code", string(serr.DeclineCode)))
			return &finance.ChargeResult{Approved: false, FailureReason: serr.Msg}, nil
		}
		return nil, fmt.Errorf("%w: stripe: %v", finance.ErrGatewayRequestFailed, err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return &finance.ChargeResult{
			Approved:         false,
			FailureReason:    fmt.Sprintf("stripe payment intent %s", intent.Status),
			GatewayReference: intent.ID,
		}, nil
	}

	g.logger.Debug("stripe charge succeeded",
		zap.String("transaction_id", req.TransactionID),
		zap.String("payment_intent", intent.ID))
	return &finance.ChargeResult{
		Approved:          true,
		ProcessorResponse: "stripe payment intent succeeded",
		GatewayReference:  intent.ID,
	}, nil
}

// Refund refunds part or all of the PaymentIntent referenced by the payment
func (g *StripeGateway) Refund(ctx context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.GatewayReference == "" {
		return nil, fmt.Errorf("%w: missing payment intent reference", finance.ErrGatewayRequestFailed)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.GatewayReference),
		Amount:        stripe.Int64(minorUnits(req.Amount)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + req.TransactionID)
	params.AddMetadata("transaction_id", req.TransactionID)
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	refund, err := g.refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe refund: %v", finance.ErrGatewayRequestFailed, err)
	}
	return &finance.RefundResult{
		GatewayRefundID:   refund.ID,
		ProcessorResponse: "stripe refund " + string(refund.Status),
	}, nil
}

// minorUnits converts an amount to cents. Zero-decimal currencies are not routed here.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

var _ finance.PaymentGateway = (*StripeGateway)(nil)
