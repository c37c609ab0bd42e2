package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const tossDefaultBaseURL = "https://api.tosspayments.com"

// TossConfig holds TossPayments configuration.
type TossConfig struct {
	SecretKey string
	BaseURL   string // override for tests, defaults to the live API
}

// TossProvider implements Provider for TossPayments. Toss has no official
// Go SDK, so this is a thin client over its REST API.
type TossProvider struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewTossProvider creates a new TossPayments provider.
func NewTossProvider(config *TossConfig) *TossProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = tossDefaultBaseURL
	}
	return &TossProvider{
		secretKey: config.SecretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the provider name.
func (p *TossProvider) Name() string {
	return "toss"
}

type tossPayment struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"totalAmount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	ApprovedAt  string `json:"approvedAt"`
	Cancels     []struct {
		TransactionKey string `json:"transactionKey"`
		CancelAmount   int64  `json:"cancelAmount"`
		CancelReason   string `json:"cancelReason"`
		CancelStatus   string `json:"cancelStatus"`
	} `json:"cancels"`
}

type tossError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *tossError) Error() string {
	return fmt.Sprintf("toss: %s (%s)", e.Message, e.Code)
}

// Confirm finalizes an authorized payment via POST /v1/payments/confirm.
// Toss itself rejects the call when amount differs from what the payer
// approved on the checkout widget.
func (p *TossProvider) Confirm(ctx context.Context, transactionID, orderID string, amount int64) (*Confirmation, error) {
	body := map[string]any{
		"paymentKey": transactionID,
		"orderId":    orderID,
		"amount":     amount,
	}

	var payment tossPayment
	if err := p.do(ctx, http.MethodPost, "/v1/payments/confirm", body, &payment); err != nil {
		return nil, err
	}
	return confirmationFromToss(&payment), nil
}

// Cancel refunds a confirmed payment. A zero amount cancels the full
// remaining balance, which is Toss's behavior when cancelAmount is omitted.
func (p *TossProvider) Cancel(ctx context.Context, transactionID string, amount int64, reason string) (*Refund, error) {
	body := map[string]any{
		"cancelReason": reason,
	}
	if amount > 0 {
		body["cancelAmount"] = amount
	}

	var payment tossPayment
	path := fmt.Sprintf("/v1/payments/%s/cancel", transactionID)
	if err := p.do(ctx, http.MethodPost, path, body, &payment); err != nil {
		return nil, err
	}

	ref := &Refund{
		TransactionID: payment.PaymentKey,
		Amount:        amount,
		Status:        payment.Status,
		Reason:        reason,
	}
	if n := len(payment.Cancels); n > 0 {
		last := payment.Cancels[n-1]
		ref.RefundID = last.TransactionKey
		ref.Amount = last.CancelAmount
	}
	return ref, nil
}

// Payment fetches the current state of a payment from Toss. Webhook
// deliveries carry no signature, so handlers re-query instead of trusting
// the webhook body.
func (p *TossProvider) Payment(ctx context.Context, transactionID string) (*Confirmation, error) {
	var payment tossPayment
	path := fmt.Sprintf("/v1/payments/%s", transactionID)
	if err := p.do(ctx, http.MethodGet, path, nil, &payment); err != nil {
		return nil, err
	}
	return confirmationFromToss(&payment), nil
}

// VerifyWebhook always succeeds: Toss webhooks are unsigned and are
// authenticated by re-querying the payment (see Payment).
func (p *TossProvider) VerifyWebhook(payload []byte, signature string) error {
	return nil
}

func (p *TossProvider) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("toss: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("toss: build request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+basicAuth(p.secretKey))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("toss: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("toss: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr tossError
		if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("toss: %s %s: status %d", method, path, resp.StatusCode)
		}
		return &apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("toss: decode response: %w", err)
		}
	}
	return nil
}

// basicAuth builds the Toss API credential: base64 of the secret key with a
// trailing colon and an empty password.
func basicAuth(secretKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(secretKey + ":"))
}

func confirmationFromToss(payment *tossPayment) *Confirmation {
	conf := &Confirmation{
		TransactionID: payment.PaymentKey,
		OrderID:       payment.OrderID,
		Amount:        payment.TotalAmount,
		Currency:      payment.Currency,
		Status:        payment.Status,
		Method:        payment.Method,
	}
	if payment.ApprovedAt != "" {
		if t, err := time.Parse(time.RFC3339, payment.ApprovedAt); err == nil {
			conf.ApprovedAt = t.Unix()
		}
	}
	return conf
}
