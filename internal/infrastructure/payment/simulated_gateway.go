// Package payment provides the gateways that collect money for payment methods.
package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/google/uuid"
)

// DefaultSuccessRates are the approval probabilities of the simulated gateway per method
var DefaultSuccessRates = map[finance.PaymentMethodCode]float64{
	finance.PaymentMethodCash:          0.98,
	finance.PaymentMethodDebitCard:     0.95,
	finance.PaymentMethodCreditCard:    0.92,
	finance.PaymentMethodDigitalWallet: 0.90,
	finance.PaymentMethodBankTransfer:  0.85,
}

// RandomSource yields values in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// lockedSource serializes access to a *rand.Rand, which is not safe for concurrent use
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// NewSeededSource returns a goroutine-safe RandomSource. A zero seed uses the clock.
func NewSeededSource(seed int64) RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

// SimulatedGateway approves charges with a fixed probability per payment method.
// It stands in for processors the engine is not integrated with.
type SimulatedGateway struct {
	rates  map[finance.PaymentMethodCode]float64
	random RandomSource
	delay  time.Duration
}

// SimulatedOption configures a SimulatedGateway
type SimulatedOption func(*SimulatedGateway)

// WithSuccessRate overrides the approval probability of one method
func WithSuccessRate(method finance.PaymentMethodCode, rate float64) SimulatedOption {
	return func(g *SimulatedGateway) {
		g.rates[method] = rate
	}
}

// WithDelay makes every charge wait d before answering
func WithDelay(d time.Duration) SimulatedOption {
	return func(g *SimulatedGateway) {
		g.delay = d
	}
}

// NewSimulatedGateway creates a simulated gateway drawing from random
func NewSimulatedGateway(random RandomSource, opts ...SimulatedOption) *SimulatedGateway {
	g := &SimulatedGateway{
		rates:  make(map[finance.PaymentMethodCode]float64, len(DefaultSuccessRates)),
		random: random,
	}
	for code, rate := range DefaultSuccessRates {
		g.rates[code] = rate
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name identifies the gateway
func (g *SimulatedGateway) Name() string {
	return "simulated"
}

// Charge approves the request when a random draw falls under the method's success rate
func (g *SimulatedGateway) Charge(ctx context.Context, req *finance.ChargeRequest) (*finance.ChargeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	rate, ok := g.rates[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", finance.ErrGatewayNotConfigured, req.Method)
	}
	if g.random.Float64() >= rate {
		return &finance.ChargeResult{
			Approved:      false,
			FailureReason: fmt.Sprintf("%s payment declined by processor", req.Method.DisplayName()),
		}, nil
	}
	return &finance.ChargeResult{
		Approved:          true,
		ProcessorResponse: fmt.Sprintf("%s payment approved", req.Method.DisplayName()),
		GatewayReference:  "SIM-" + uuid.NewString(),
	}, nil
}

// Refund always succeeds
func (g *SimulatedGateway) Refund(ctx context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return &finance.RefundResult{
		GatewayRefundID:   "SIMR-" + uuid.NewString(),
		ProcessorResponse: "refund accepted",
	}, nil
}

func (g *SimulatedGateway) wait(ctx context.Context) error {
	if g.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ finance.PaymentGateway = (*SimulatedGateway)(nil)
