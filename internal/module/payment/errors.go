package payment

import "errors"

// Module errors.
var (
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrNotRefundable           = errors.New("only completed payments may be refunded")
	ErrAlreadyCompleted        = errors.New("payment already completed")
	ErrAmountMismatch          = errors.New("payment amount mismatch")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrWebhookEventExists      = errors.New("webhook event already processed")
)
