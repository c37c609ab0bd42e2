package provider

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
}

// StripeProvider implements Provider for Stripe, used for international
// card payments.
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider creates a new Stripe provider.
func NewStripeProvider(config *StripeConfig) *StripeProvider {
	stripe.Key = config.APIKey
	return &StripeProvider{webhookSecret: config.WebhookSecret}
}

// Name returns the provider name.
func (p *StripeProvider) Name() string {
	return "stripe"
}

// Confirm retrieves the payment intent and checks it succeeded for the
// expected amount. Stripe confirms intents client-side, so the server-side
// confirm is a verification read rather than a state change.
func (p *StripeProvider) Confirm(ctx context.Context, transactionID, orderID string, amount int64) (*Confirmation, error) {
	pi, err := paymentintent.Get(transactionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe: get payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("stripe: payment intent %s not succeeded: %s", pi.ID, pi.Status)
	}
	if pi.Amount != amount {
		return nil, fmt.Errorf("stripe: amount mismatch: intent has %d, expected %d", pi.Amount, amount)
	}

	conf := &Confirmation{
		TransactionID: pi.ID,
		OrderID:       orderID,
		Amount:        pi.Amount,
		Currency:      string(pi.Currency),
		Status:        string(pi.Status),
		Method:        "card",
		ApprovedAt:    pi.Created,
	}
	if id, ok := pi.Metadata["order_id"]; ok {
		conf.OrderID = id
	}
	return conf, nil
}

// Cancel refunds against the intent's latest charge.
func (p *StripeProvider) Cancel(ctx context.Context, transactionID string, amount int64, reason string) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionID),
	}
	if amount > 0 {
		params.Amount = stripe.Int64(amount)
	}

	ref, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create refund: %w", err)
	}
	return &Refund{
		RefundID:      ref.ID,
		TransactionID: transactionID,
		Amount:        ref.Amount,
		Status:        string(ref.Status),
		Reason:        reason,
	}, nil
}

// VerifyWebhook checks Stripe's signature header against the endpoint
// secret.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) error {
	_, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return fmt.Errorf("stripe: verify webhook: %w", err)
	}
	return nil
}
