package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sodam/server/internal/module/payment/provider"
)

// querier is the optional provider extension for gateways whose webhooks
// carry no signature and must be authenticated by re-query.
type querier interface {
	Payment(ctx context.Context, transactionID string) (*provider.Confirmation, error)
}

// WebhookHandler receives asynchronous gateway notifications. Deliveries
// are deduplicated on the gateway event ID, so retries are harmless.
type WebhookHandler struct {
	repo     Repository
	registry *provider.Registry
	service  ServiceInterface
	logger   *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(repo Repository, registry *provider.Registry, service ServiceInterface, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		repo:     repo,
		registry: registry,
		service:  service,
		logger:   logger,
	}
}

// RegisterRoutes registers the webhook routes. These are public: the
// gateways authenticate by signature or re-query, not by session.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/toss", h.HandleToss)
	r.POST("/webhooks/stripe", h.HandleStripe)
}

type tossWebhookBody struct {
	EventType string `json:"eventType"`
	CreatedAt string `json:"createdAt"`
	Data      struct {
		PaymentKey  string `json:"paymentKey"`
		OrderID     string `json:"orderId"`
		Status      string `json:"status"`
		TotalAmount int64  `json:"totalAmount"`
	} `json:"data"`
}

// HandleToss processes a TossPayments status webhook. The body is
// untrusted; the payment state is re-queried from Toss before acting.
func (h *WebhookHandler) HandleToss(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	var body tossWebhookBody
	if err := json.Unmarshal(payload, &body); err != nil || body.Data.PaymentKey == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	eventID := fmt.Sprintf("toss:%s:%s:%s", body.Data.PaymentKey, body.Data.Status, body.CreatedAt)
	event := &WebhookEvent{
		Provider: "toss",
		EventID:  eventID,
		Type:     body.EventType,
		Payload:  string(payload),
	}
	if err := h.repo.RecordWebhookEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, ErrWebhookEventExists) {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusInternalServerError)
		return
	}

	processErr := h.processToss(c.Request.Context(), &body)
	if err := h.repo.MarkWebhookProcessed(c.Request.Context(), event, processErr); err != nil {
		h.logger.Error("mark webhook processed", zap.Error(err))
	}
	if processErr != nil {
		h.logger.Error("toss webhook failed",
			zap.String("event_id", eventID),
			zap.Error(processErr),
		)
		// Non-200 makes Toss redeliver; only a processed event row turns
		// the redelivery away, so the retry reaches Confirm again.
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

func (h *WebhookHandler) processToss(ctx context.Context, body *tossWebhookBody) error {
	if body.Data.Status != "DONE" {
		h.logger.Info("toss webhook ignored",
			zap.String("status", body.Data.Status),
			zap.String("order_id", body.Data.OrderID),
		)
		return nil
	}

	prov, err := h.registry.Get("toss")
	if err != nil {
		return err
	}
	q, ok := prov.(querier)
	if !ok {
		return fmt.Errorf("toss provider does not support re-query")
	}

	// The authoritative state comes from the re-query, not the body.
	conf, err := q.Payment(ctx, body.Data.PaymentKey)
	if err != nil {
		return err
	}
	if conf.Status != "DONE" {
		return fmt.Errorf("toss payment %s not settled: %s", conf.TransactionID, conf.Status)
	}

	_, err = h.service.Confirm(ctx, conf.OrderID, conf.TransactionID, conf.Amount)
	return err
}

type stripeWebhookBody struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandleStripe processes a Stripe event, verified by signature.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	prov, err := h.registry.Get("stripe")
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	if err := prov.VerifyWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.logger.Warn("stripe webhook signature rejected", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	var body stripeWebhookBody
	if err := json.Unmarshal(payload, &body); err != nil || body.ID == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	event := &WebhookEvent{
		Provider: "stripe",
		EventID:  "stripe:" + body.ID,
		Type:     body.Type,
		Payload:  string(payload),
	}
	if err := h.repo.RecordWebhookEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, ErrWebhookEventExists) {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusInternalServerError)
		return
	}

	var processErr error
	if body.Type == "payment_intent.succeeded" {
		orderID := body.Data.Object.Metadata["order_id"]
		if orderID == "" {
			processErr = fmt.Errorf("payment intent %s has no order_id metadata", body.Data.Object.ID)
		} else {
			_, processErr = h.service.Confirm(c.Request.Context(), orderID, body.Data.Object.ID, body.Data.Object.Amount)
		}
	}

	if err := h.repo.MarkWebhookProcessed(c.Request.Context(), event, processErr); err != nil {
		h.logger.Error("mark webhook processed", zap.Error(err))
	}
	if processErr != nil {
		h.logger.Error("stripe webhook failed", zap.String("event_id", body.ID), zap.Error(processErr))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}
