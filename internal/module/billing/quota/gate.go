// Package quota implements the check-and-increment gate guarding metered
// resources against plan ceilings.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sodam/server/internal/module/billing"
	"github.com/sodam/server/internal/shared/metrics"
	"go.uber.org/zap"
)

// Result is the outcome of one quota gate call.
//
// For unlimited resources Limit and Remaining are the -1 sentinel, never a
// numeric bound. On rejection Current reports the counter as it stands; the
// rejected amount is not applied, not even partially.
type Result struct {
	Allowed   bool   `json:"success"`
	Current   int64  `json:"current"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Message   string `json:"error,omitempty"`
}

// Status reports a user's current-period usage against their plan limits.
type Status struct {
	Period      string                          `json:"period"`
	Usage       map[billing.ResourceKind]int64  `json:"usage"`
	Limits      map[billing.ResourceKind]int64  `json:"limits"`
	Remaining   map[billing.ResourceKind]int64  `json:"remaining"`
	PercentUsed map[billing.ResourceKind]float64 `json:"percentUsed"`
}

// Gate guards resource consumption against the usage ledger and the plan
// limits table.
type Gate struct {
	ledger  billing.LedgerRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewGate creates a new quota gate.
func NewGate(ledger billing.LedgerRepository, m *metrics.Metrics, logger *zap.Logger) *Gate {
	return &Gate{
		ledger:  ledger,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Use consumes amount units of the resource if the user's plan ceiling
// allows it. Admission and increment are a single atomic ledger operation,
// so concurrent callers cannot jointly overshoot the ceiling.
func (g *Gate) Use(ctx context.Context, userID uuid.UUID, planID string, kind billing.ResourceKind, amount int64) (*Result, error) {
	if !kind.IsValid() {
		return nil, billing.ErrInvalidResource
	}
	if amount <= 0 {
		return nil, billing.ErrInvalidAmount
	}

	period := billing.CurrentPeriod(g.now())
	limit := billing.LimitsFor(planID).For(kind)

	if limit == billing.Unlimited {
		current, err := g.ledger.Increment(ctx, userID, period, kind, amount)
		if err != nil {
			return nil, err
		}
		return &Result{
			Allowed:   true,
			Current:   current,
			Limit:     billing.Unlimited,
			Remaining: billing.Unlimited,
		}, nil
	}

	admitted, current, err := g.ledger.ConditionalIncrement(ctx, userID, period, kind, amount, limit)
	if err != nil {
		return nil, err
	}

	if !admitted {
		if g.metrics != nil {
			g.metrics.QuotaRejectionsTotal.WithLabelValues(string(kind)).Inc()
		}
		g.logger.Debug("quota rejected",
			zap.String("user_id", userID.String()),
			zap.String("resource", string(kind)),
			zap.Int64("current", current),
			zap.Int64("limit", limit),
		)
		return &Result{
			Allowed:   false,
			Current:   current,
			Limit:     limit,
			Remaining: remaining(limit, current),
			Message:   fmt.Sprintf("%s quota exceeded (%d/%d used this period)", kind, current, limit),
		}, nil
	}

	return &Result{
		Allowed:   true,
		Current:   current,
		Limit:     limit,
		Remaining: remaining(limit, current),
	}, nil
}

// Status returns the user's usage, limits, remaining headroom and percent
// used for every metered resource in the current period.
func (g *Gate) Status(ctx context.Context, userID uuid.UUID, planID string) (*Status, error) {
	period := billing.CurrentPeriod(g.now())

	ledger, err := g.ledger.GetOrCreate(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	limits := billing.LimitsFor(planID)
	status := &Status{
		Period:      period,
		Usage:       ledger.Counters(),
		Limits:      limits.Map(),
		Remaining:   make(map[billing.ResourceKind]int64, len(billing.ResourceKinds)),
		PercentUsed: make(map[billing.ResourceKind]float64, len(billing.ResourceKinds)),
	}

	for _, kind := range billing.ResourceKinds {
		limit := limits.For(kind)
		used := ledger.Counter(kind)
		if limit == billing.Unlimited {
			status.Remaining[kind] = billing.Unlimited
			status.PercentUsed[kind] = 0
			continue
		}
		status.Remaining[kind] = remaining(limit, used)
		if limit > 0 {
			status.PercentUsed[kind] = float64(used) / float64(limit) * 100
		}
	}

	return status, nil
}

func remaining(limit, current int64) int64 {
	r := limit - current
	if r < 0 {
		r = 0
	}
	return r
}
