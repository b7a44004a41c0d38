package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/form"
)

// mockBackend implements stripe.Backend for testing
type mockBackend struct {
	handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)
	calls   []string
}

func (m *mockBackend) Call(method, path, key string, params stripe.ParamsContainer, v stripe.LastResponseSetter) error {
	m.calls = append(m.calls, method+" "+path)
	data, err := m.handler(method, path, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (m *mockBackend) CallStreaming(method, path, key string, params stripe.ParamsContainer, v stripe.StreamingLastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallRaw(method, path, key string, body *form.Values, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallMultipart(method, path, key, boundary string, body *bytes.Buffer, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) SetMaxNetworkRetries(maxNetworkRetries int64) {}

func newTestStripeGateway(t *testing.T, backend *mockBackend) *StripeGateway {
	t.Helper()
	gw, err := NewStripeGateway(StripeGatewayConfig{
		SecretKey: "sk_test_123456789",
		Backends:  &stripe.Backends{API: backend, Connect: backend, Uploads: backend},
	})
	require.NoError(t, err)
	return gw
}

func TestNewStripeGateway_InvalidKey(t *testing.T) {
	_, err := NewStripeGateway(StripeGatewayConfig{})
	assert.ErrorContains(t, err, "secret key is required")

	_, err = NewStripeGateway(StripeGatewayConfig{SecretKey: "nope"})
	assert.ErrorContains(t, err, "invalid secret key format")
}

func TestStripeGateway_ChargeSucceeded(t *testing.T) {
	var amount int64
	backend := &mockBackend{handler: func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		p := params.(*stripe.PaymentIntentParams)
		amount = *p.Amount
		return []byte(`{"id":"pi_123","object":"payment_intent","status":"succeeded"}`), nil
	}}
	gw := newTestStripeGateway(t, backend)

	req := chargeRequest(finance.PaymentMethodCreditCard)
	req.Amount = decimal.RequireFromString("112.35")
	res, err := gw.Charge(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, "pi_123", res.GatewayReference)
	assert.Equal(t, int64(11235), amount)
	assert.Equal(t, []string{"POST /v1/payment_intents"}, backend.calls)
}

func TestStripeGateway_ChargeRequiresAction(t *testing.T) {
	backend := &mockBackend{handler: func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		return []byte(`{"id":"pi_456","object":"payment_intent","status":"requires_action"}`), nil
	}}
	gw := newTestStripeGateway(t, backend)

	res, err := gw.Charge(context.Background(), chargeRequest(finance.PaymentMethodCreditCard))
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Contains(t, res.FailureReason, "requires_action")
}

func TestStripeGateway_CardDeclined(t *testing.T) {
	backend := &mockBackend{handler: func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		return nil, &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined.", DeclineCode: "generic_decline"}
	}}
	gw := newTestStripeGateway(t, backend)

	res, err := gw.Charge(context.Background(), chargeRequest(finance.PaymentMethodCreditCard))
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, "Your card was declined.", res.FailureReason)
}

func TestStripeGateway_APIError(t *testing.T) {
	backend := &mockBackend{handler: func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		return nil, &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "boom"}
	}}
	gw := newTestStripeGateway(t, backend)

	_, err := gw.Charge(context.Background(), chargeRequest(finance.PaymentMethodCreditCard))
	assert.ErrorIs(t, err, finance.ErrGatewayRequestFailed)
}

func TestStripeGateway_Refund(t *testing.T) {
	backend := &mockBackend{handler: func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		p := params.(*stripe.RefundParams)
		assert.Equal(t, "pi_123", *p.PaymentIntent)
		assert.Equal(t, int64(5000), *p.Amount)
		return []byte(`{"id":"re_1","object":"refund","status":"succeeded"}`), nil
	}}
	gw := newTestStripeGateway(t, backend)

	res, err := gw.Refund(context.Background(), &finance.RefundRequest{
		TransactionID:    "TXN-1",
		GatewayReference: "pi_123",
		Amount:           decimal.NewFromInt(50),
		Reason:           "customer request",
	})
	require.NoError(t, err)
	assert.Equal(t, "re_1", res.GatewayRefundID)

	_, err = gw.Refund(context.Background(), &finance.RefundRequest{TransactionID: "TXN-1", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, finance.ErrGatewayRequestFailed)
}
