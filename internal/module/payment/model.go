package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/sodam/server/internal/module/billing"
)

// Status represents the status of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Payment represents one checkout attempt for a plan. Amounts are KRW for
// the toss provider (no minor unit) and gateway minor units otherwise.
type Payment struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	OrderID  string    `json:"order_id" gorm:"uniqueIndex;not null"`
	PlanID   string    `json:"plan_id" gorm:"not null"`
	Cycle    billing.BillingCycle `json:"cycle" gorm:"default:monthly"`
	Amount   int64     `json:"amount"`
	Currency string    `json:"currency" gorm:"default:KRW"`
	Status   Status    `json:"status" gorm:"not null;default:pending;index"`
	Provider string    `json:"provider" gorm:"not null"`
	Method   string    `json:"method,omitempty"`

	// TransactionID is the gateway's payment key, set on confirmation.
	TransactionID  string     `json:"-" gorm:"index"`
	FailureMessage *string    `json:"failure_message,omitempty"`
	RefundedAmount int64      `json:"refunded_amount" gorm:"default:0"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	RefundedAt     *time.Time `json:"refunded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name.
func (Payment) TableName() string {
	return "payments"
}

// IsCompleted returns true if the payment completed.
func (p *Payment) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// WebhookEvent stores a processed gateway webhook delivery. The unique
// event ID is what makes redelivered webhooks idempotent.
type WebhookEvent struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Provider    string     `gorm:"not null"`
	EventID     string     `gorm:"uniqueIndex;not null"`
	Type        string     `gorm:"not null"`
	Payload     string     `gorm:"type:jsonb"`
	Processed   bool       `gorm:"default:false"`
	ProcessedAt *time.Time
	Error       *string
	CreatedAt   time.Time
}

// TableName returns the database table name.
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
