// Package provider abstracts the payment gateways behind one interface so
// the payment service never talks to a gateway SDK directly.
package provider

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by the registry for an unregistered provider.
var ErrNotFound = errors.New("payment provider not found")

// Confirmation is the gateway's answer to a confirm call.
type Confirmation struct {
	TransactionID string // gateway's transaction/payment key
	OrderID       string // our order ID echoed back
	Amount        int64
	Currency      string
	Status        string
	Method        string // card, transfer, easy pay...
	ApprovedAt    int64  // unix seconds, 0 if the gateway omits it
}

// Refund is the gateway's answer to a cancel/refund call.
type Refund struct {
	RefundID      string
	TransactionID string
	Amount        int64
	Status        string
	Reason        string
}

// Provider is one payment gateway.
//
// Amounts are in the currency's smallest practical unit; for KRW that is
// whole won, there is no minor unit.
type Provider interface {
	// Name returns the provider name used in config and on payment records.
	Name() string

	// Confirm finalizes a payment the client already authorized. The
	// gateway rejects the call when amount does not match what the payer
	// approved, which is the server-side defense against tampered totals.
	Confirm(ctx context.Context, transactionID, orderID string, amount int64) (*Confirmation, error)

	// Cancel refunds amount against a confirmed transaction. A zero amount
	// refunds the full remainder.
	Cancel(ctx context.Context, transactionID string, amount int64, reason string) (*Refund, error)

	// VerifyWebhook checks the authenticity of a webhook delivery.
	VerifyWebhook(payload []byte, signature string) error
}

// Registry holds the configured providers keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider, replacing any previous one of the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
