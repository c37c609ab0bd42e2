package billing

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind identifies one metered resource.
type ResourceKind string

const (
	ResourceCreates  ResourceKind = "creates"
	ResourceAICalls  ResourceKind = "aiCalls"
	ResourceExports  ResourceKind = "exports"
	ResourceAPICalls ResourceKind = "apiCalls"
	ResourceStorage  ResourceKind = "storage" // megabytes
)

// ResourceKinds lists all metered resources in display order.
var ResourceKinds = []ResourceKind{
	ResourceCreates,
	ResourceAICalls,
	ResourceExports,
	ResourceAPICalls,
	ResourceStorage,
}

// IsValid checks if the kind is a known resource kind.
func (k ResourceKind) IsValid() bool {
	switch k {
	case ResourceCreates, ResourceAICalls, ResourceExports, ResourceAPICalls, ResourceStorage:
		return true
	default:
		return false
	}
}

// UsageLedger holds per-user usage counters for one billing period.
//
// Rows are created lazily on the first quota check of a (user, period) pair
// and are never reset: when the period rolls over a fresh row starts all
// counters at zero and the old row stays as history. Counters only grow.
type UsageLedger struct {
	ID       int64     `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_period"`
	Period   string    `json:"period" gorm:"size:7;not null;uniqueIndex:idx_usage_user_period"`
	Creates  int64     `json:"creates" gorm:"not null;default:0"`
	AICalls  int64     `json:"aiCalls" gorm:"column:ai_calls;not null;default:0"`
	Exports  int64     `json:"exports" gorm:"not null;default:0"`
	APICalls int64     `json:"apiCalls" gorm:"column:api_calls;not null;default:0"`
	Storage  int64     `json:"storage" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name.
func (UsageLedger) TableName() string {
	return "usage_ledgers"
}

// Counter returns the counter value for the given resource kind.
func (u *UsageLedger) Counter(kind ResourceKind) int64 {
	switch kind {
	case ResourceCreates:
		return u.Creates
	case ResourceAICalls:
		return u.AICalls
	case ResourceExports:
		return u.Exports
	case ResourceAPICalls:
		return u.APICalls
	case ResourceStorage:
		return u.Storage
	default:
		return 0
	}
}

// Counters returns all counters keyed by resource kind.
func (u *UsageLedger) Counters() map[ResourceKind]int64 {
	return map[ResourceKind]int64{
		ResourceCreates:  u.Creates,
		ResourceAICalls:  u.AICalls,
		ResourceExports:  u.Exports,
		ResourceAPICalls: u.APICalls,
		ResourceStorage:  u.Storage,
	}
}

// ledgerColumns maps resource kinds to their ledger column names. Keeping
// this closed set is what makes interpolating the column into raw SQL safe.
var ledgerColumns = map[ResourceKind]string{
	ResourceCreates:  "creates",
	ResourceAICalls:  "ai_calls",
	ResourceExports:  "exports",
	ResourceAPICalls: "api_calls",
	ResourceStorage:  "storage",
}

// SubscriptionStatus represents the status of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrial    SubscriptionStatus = "trial"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// IsCurrent returns true for statuses that count as "the current
// subscription": at most one record per user may be in one of them.
func (s SubscriptionStatus) IsCurrent() bool {
	return s == SubscriptionStatusTrial || s == SubscriptionStatusActive || s == SubscriptionStatusPastDue
}

// IsTerminal returns true for statuses with no further transitions.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCanceled || s == SubscriptionStatusExpired
}

// BillingCycle represents the billing period length.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// PeriodLength returns the cycle as a calendar offset (months).
func (c BillingCycle) PeriodLength() int {
	if c == BillingCycleYearly {
		return 12
	}
	return 1
}

// Subscription represents one purchase/enrollment lifecycle for one user.
//
// Free-tier records are perpetual: CurrentPeriodEnd and NextBillingDate are
// nil and the record never expires on its own.
type Subscription struct {
	ID                 uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID             uuid.UUID          `json:"user_id" gorm:"type:uuid;not null;index"`
	PlanID             string             `json:"plan_id" gorm:"not null"`
	Status             SubscriptionStatus `json:"status" gorm:"not null;default:active"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
	NextBillingDate    *time.Time         `json:"next_billing_date,omitempty"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end" gorm:"default:false"`
	CanceledAt         *time.Time         `json:"canceled_at,omitempty"`
	TrialEnd           *time.Time         `json:"trial_end,omitempty"`
	EndDate            *time.Time         `json:"end_date,omitempty"`
	Amount             int64              `json:"amount"` // KRW, no minor unit
	BillingCycle       BillingCycle       `json:"billing_cycle" gorm:"default:monthly"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// TableName returns the database table name.
func (Subscription) TableName() string {
	return "subscriptions"
}

// IsActive returns true if the subscription is active or in trial.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrial
}

// PeriodElapsed returns true if the paid period has passed at the given
// instant. Perpetual (free) subscriptions never elapse.
func (s *Subscription) PeriodElapsed(now time.Time) bool {
	return s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(now)
}

// TrialElapsed returns true if a trial deadline has passed.
func (s *Subscription) TrialElapsed(now time.Time) bool {
	return s.TrialEnd != nil && s.TrialEnd.Before(now)
}
