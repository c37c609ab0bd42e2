package payment

import "github.com/sodam/server/internal/module/billing"

// CheckoutRequest opens a pending payment for a plan.
type CheckoutRequest struct {
	PlanID   string               `json:"plan_id" binding:"required"`
	Cycle    billing.BillingCycle `json:"cycle"`
	Provider string               `json:"provider"`
}

// ConfirmRequest finalizes an authorized payment. The field names follow
// the Toss checkout widget's success-redirect query parameters.
type ConfirmRequest struct {
	OrderID    string `json:"orderId" binding:"required"`
	PaymentKey string `json:"paymentKey" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
}

// RefundRequest refunds a completed payment.
type RefundRequest struct {
	Reason string `json:"reason"`
}

// ListPaymentsResponse wraps a payment history page.
type ListPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
}
