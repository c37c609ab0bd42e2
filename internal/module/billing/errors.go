package billing

import "errors"

// Module errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrNotCancelable        = errors.New("only active subscriptions may be canceled")
	ErrInvalidResource      = errors.New("unknown resource kind")
	ErrInvalidAmount        = errors.New("amount must be positive")
)
