package payment

import (
	"fmt"
	"sync"

	"github.com/erp/invoicing/internal/domain/finance"
)

// Registry maps payment methods to the gateway serving them
type Registry struct {
	mu       sync.RWMutex
	gateways map[finance.PaymentMethodCode]finance.PaymentGateway
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[finance.PaymentMethodCode]finance.PaymentGateway)}
}

// Register routes the given methods to gateway, replacing earlier routes
func (r *Registry) Register(gateway finance.PaymentGateway, methods ...finance.PaymentMethodCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range methods {
		r.gateways[m] = gateway
	}
}

// GetGateway returns the gateway for method
func (r *Registry) GetGateway(method finance.PaymentMethodCode) (finance.PaymentGateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", finance.ErrGatewayNotConfigured, method)
	}
	return gw, nil
}

var _ finance.PaymentGatewayRegistry = (*Registry)(nil)
