package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/alipay"
)

// AlipayConfig holds Alipay configuration. Alipay is offered for overseas
// checkout; amounts are converted to yuan with two decimals on the wire.
type AlipayConfig struct {
	AppID           string
	PrivateKey      string // RSA2 private key, PEM
	AlipayPublicKey string // Alipay public key for signature verification, PEM
	IsProd          bool
	NotifyURL       string
	ReturnURL       string
}

// AlipayProvider implements Provider for Alipay.
type AlipayProvider struct {
	client *alipay.Client
	config *AlipayConfig
}

// NewAlipayProvider creates a new Alipay provider.
func NewAlipayProvider(config *AlipayConfig) (*AlipayProvider, error) {
	client, err := alipay.NewClient(config.AppID, config.PrivateKey, config.IsProd)
	if err != nil {
		return nil, fmt.Errorf("alipay: create client: %w", err)
	}
	client.AutoVerifySign([]byte(config.AlipayPublicKey))

	return &AlipayProvider{client: client, config: config}, nil
}

// Name returns the provider name.
func (p *AlipayProvider) Name() string {
	return "alipay"
}

// Confirm verifies a trade the payer completed on Alipay's side. Alipay
// settles through its redirect flow, so confirm is a TradeQuery that checks
// the trade succeeded for the expected amount.
func (p *AlipayProvider) Confirm(ctx context.Context, transactionID, orderID string, amount int64) (*Confirmation, error) {
	bm := make(gopay.BodyMap)
	if transactionID != "" {
		bm.Set("trade_no", transactionID)
	} else {
		bm.Set("out_trade_no", orderID)
	}

	resp, err := p.client.TradeQuery(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("alipay: query trade: %w", err)
	}
	if resp.Response.Code != "10000" {
		return nil, fmt.Errorf("alipay: query trade: %s - %s", resp.Response.Code, resp.Response.Msg)
	}
	if resp.Response.TradeStatus != "TRADE_SUCCESS" && resp.Response.TradeStatus != "TRADE_FINISHED" {
		return nil, fmt.Errorf("alipay: trade %s not settled: %s", resp.Response.TradeNo, resp.Response.TradeStatus)
	}

	paid := yuanToMinor(resp.Response.TotalAmount)
	if paid != amount {
		return nil, fmt.Errorf("alipay: amount mismatch: trade has %d, expected %d", paid, amount)
	}

	return &Confirmation{
		TransactionID: resp.Response.TradeNo,
		OrderID:       resp.Response.OutTradeNo,
		Amount:        paid,
		Currency:      "CNY",
		Status:        resp.Response.TradeStatus,
		Method:        "alipay",
	}, nil
}

// Cancel refunds a settled trade via TradeRefund.
func (p *AlipayProvider) Cancel(ctx context.Context, transactionID string, amount int64, reason string) (*Refund, error) {
	bm := make(gopay.BodyMap)
	bm.Set("trade_no", transactionID)
	bm.Set("refund_amount", fmt.Sprintf("%.2f", float64(amount)/100))
	if reason != "" {
		bm.Set("refund_reason", reason)
	}

	resp, err := p.client.TradeRefund(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("alipay: refund trade: %w", err)
	}
	if resp.Response.Code != "10000" {
		return nil, fmt.Errorf("alipay: refund trade: %s - %s", resp.Response.Code, resp.Response.Msg)
	}

	return &Refund{
		RefundID:      resp.Response.TradeNo,
		TransactionID: transactionID,
		Amount:        yuanToMinor(resp.Response.RefundFee),
		Status:        "succeeded",
		Reason:        reason,
	}, nil
}

// VerifyWebhook verifies the RSA2 signature on an Alipay async notify,
// which arrives form-urlencoded.
func (p *AlipayProvider) VerifyWebhook(payload []byte, signature string) error {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return fmt.Errorf("alipay: parse notify: %w", err)
	}

	bm := make(gopay.BodyMap)
	for key := range values {
		bm.Set(key, values.Get(key))
	}

	ok, err := alipay.VerifySign(p.config.AlipayPublicKey, bm)
	if err != nil {
		return fmt.Errorf("alipay: verify notify: %w", err)
	}
	if !ok {
		return fmt.Errorf("alipay: notify signature invalid")
	}
	return nil
}

// yuanToMinor parses an Alipay decimal amount string into cents.
func yuanToMinor(amount string) int64 {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	return int64(f*100 + 0.5)
}
