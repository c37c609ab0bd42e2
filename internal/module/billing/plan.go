package billing

import (
	"time"

	"github.com/lib/pq"
)

// Unlimited is the sentinel ceiling meaning "no limit enforced". It must
// never be treated as a numeric bound in comparisons.
const Unlimited int64 = -1

// PlanLimits holds the per-resource ceilings of one plan tier.
type PlanLimits struct {
	Creates  int64
	AICalls  int64
	Exports  int64
	APICalls int64
	Storage  int64 // megabytes
}

// For returns the ceiling for the given resource kind.
func (l PlanLimits) For(kind ResourceKind) int64 {
	switch kind {
	case ResourceCreates:
		return l.Creates
	case ResourceAICalls:
		return l.AICalls
	case ResourceExports:
		return l.Exports
	case ResourceAPICalls:
		return l.APICalls
	case ResourceStorage:
		return l.Storage
	default:
		// Unknown resources get the tightest possible ceiling.
		return 0
	}
}

// IsUnlimited returns true if the plan places no ceiling on the resource.
func (l PlanLimits) IsUnlimited(kind ResourceKind) bool {
	return l.For(kind) == Unlimited
}

// Map returns the limits keyed by resource kind.
func (l PlanLimits) Map() map[ResourceKind]int64 {
	return map[ResourceKind]int64{
		ResourceCreates:  l.Creates,
		ResourceAICalls:  l.AICalls,
		ResourceExports:  l.Exports,
		ResourceAPICalls: l.APICalls,
		ResourceStorage:  l.Storage,
	}
}

// planLimits is static configuration: enforcement ceilings live in code, not
// in the database, so a bad migration can never loosen them.
var planLimits = map[string]PlanLimits{
	PlanFree: {
		Creates:  10,
		AICalls:  10,
		Exports:  5,
		APICalls: 1000,
		Storage:  500,
	},
	PlanPro: {
		Creates:  100,
		AICalls:  500,
		Exports:  100,
		APICalls: 100000,
		Storage:  10240,
	},
	PlanEnterprise: {
		Creates:  Unlimited,
		AICalls:  Unlimited,
		Exports:  Unlimited,
		APICalls: Unlimited,
		Storage:  Unlimited,
	},
}

// Known plan tiers.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// LimitsFor returns the resource ceilings for a plan tier. Unknown tiers
// fall back to the free tier, the most restrictive one.
func LimitsFor(planID string) PlanLimits {
	if limits, ok := planLimits[planID]; ok {
		return limits
	}
	return planLimits[PlanFree]
}

// IsKnownPlan reports whether the tier has a limits entry.
func IsKnownPlan(planID string) bool {
	_, ok := planLimits[planID]
	return ok
}

// Plan is the displayable plan catalog entry backing the pricing page.
// Enforcement never reads this table; see LimitsFor.
type Plan struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"not null"`
	Description  string         `json:"description"`
	PriceKRW     int64          `json:"price_krw"`
	BillingCycle BillingCycle   `json:"billing_cycle" gorm:"default:monthly"`
	Features     pq.StringArray `json:"features" gorm:"type:text[]"`
	Active       bool           `json:"active" gorm:"default:true"`
	DisplayOrder int            `json:"display_order" gorm:"default:0"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name.
func (Plan) TableName() string {
	return "plans"
}
