package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionCheck is the result of a subscription status read. The read
// runs the expiry sweep first, so the answer reflects elapsed periods even
// though no background job exists.
type SubscriptionCheck struct {
	HasActiveSubscription bool          `json:"hasActiveSubscription"`
	NeedsRenewal          bool          `json:"needsRenewal,omitempty"`
	Subscription          *Subscription `json:"subscription,omitempty"`
	Message               string        `json:"message,omitempty"`
	ExpiredAt             *time.Time    `json:"expiredAt,omitempty"`
}

// ServiceInterface defines the billing service surface.
type ServiceInterface interface {
	ListPlans(ctx context.Context) ([]*Plan, error)

	CreateFreeSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	StartTrial(ctx context.Context, userID uuid.UUID, planID string, trialDays int) (*Subscription, error)
	ActivatePaid(ctx context.Context, userID uuid.UUID, planID string, cycle BillingCycle, amount int64) (*Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID, immediate bool) (*Subscription, error)
	CheckSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionCheck, error)

	// PlanFor resolves the plan tier to meter a user's requests against.
	PlanFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// Service implements the subscription lifecycle.
type Service struct {
	repo   SubscriptionRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new billing service.
func NewService(repo SubscriptionRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

var _ ServiceInterface = (*Service)(nil)

func (s *Service) ListPlans(ctx context.Context) ([]*Plan, error) {
	return s.repo.ListActivePlans(ctx)
}

// CreateFreeSubscription enrolls a new signup on the free tier. The record
// is perpetual: no period end, no billing date.
func (s *Service) CreateFreeSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	if existing, err := s.repo.GetCurrent(ctx, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	now := s.now()
	sub := &Subscription{
		ID:                 uuid.New(),
		UserID:             userID,
		PlanID:             PlanFree,
		Status:             SubscriptionStatusActive,
		CurrentPeriodStart: now,
	}

	if err := s.repo.SaveWithUserPlan(ctx, sub, PlanFree); err != nil {
		return nil, fmt.Errorf("create free subscription: %w", err)
	}
	return sub, nil
}

// StartTrial starts a trial of a paid plan ending after trialDays.
func (s *Service) StartTrial(ctx context.Context, userID uuid.UUID, planID string, trialDays int) (*Subscription, error) {
	if !IsKnownPlan(planID) {
		return nil, ErrPlanNotFound
	}

	now := s.now()
	trialEnd := now.AddDate(0, 0, trialDays)

	sub, err := s.repo.GetCurrent(ctx, userID)
	switch {
	case err == nil:
		// Reuse the current record: at most one current subscription.
		sub.PlanID = planID
		sub.Status = SubscriptionStatusTrial
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = nil
		sub.NextBillingDate = nil
		sub.TrialEnd = &trialEnd
		sub.CancelAtPeriodEnd = false
		sub.CanceledAt = nil
	case errors.Is(err, ErrSubscriptionNotFound):
		sub = &Subscription{
			ID:                 uuid.New(),
			UserID:             userID,
			PlanID:             planID,
			Status:             SubscriptionStatusTrial,
			CurrentPeriodStart: now,
			TrialEnd:           &trialEnd,
		}
	default:
		return nil, err
	}

	if err := s.repo.SaveWithUserPlan(ctx, sub, planID); err != nil {
		return nil, fmt.Errorf("start trial: %w", err)
	}
	return sub, nil
}

// ActivatePaid activates or renews a paid subscription after a confirmed
// payment. If a current record exists it is updated in place rather than
// creating a second row; that is where the "at most one current
// subscription" invariant is enforced.
func (s *Service) ActivatePaid(ctx context.Context, userID uuid.UUID, planID string, cycle BillingCycle, amount int64) (*Subscription, error) {
	if !IsKnownPlan(planID) {
		return nil, ErrPlanNotFound
	}
	if cycle == "" {
		cycle = BillingCycleMonthly
	}

	now := s.now()
	periodEnd := now.AddDate(0, cycle.PeriodLength(), 0)

	sub, err := s.repo.GetCurrent(ctx, userID)
	switch {
	case err == nil:
		sub.PlanID = planID
		sub.Status = SubscriptionStatusActive
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = &periodEnd
		sub.NextBillingDate = &periodEnd
		sub.Amount = amount
		sub.BillingCycle = cycle
		sub.CancelAtPeriodEnd = false
		sub.CanceledAt = nil
		sub.TrialEnd = nil
	case errors.Is(err, ErrSubscriptionNotFound):
		sub = &Subscription{
			ID:                 uuid.New(),
			UserID:             userID,
			PlanID:             planID,
			Status:             SubscriptionStatusActive,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   &periodEnd,
			NextBillingDate:    &periodEnd,
			Amount:             amount,
			BillingCycle:       cycle,
		}
	default:
		return nil, err
	}

	if err := s.repo.SaveWithUserPlan(ctx, sub, planID); err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	s.logger.Info("subscription activated",
		zap.String("user_id", userID.String()),
		zap.String("plan", planID),
		zap.String("cycle", string(cycle)),
	)
	return sub, nil
}

// Cancel cancels the user's active subscription.
//
// Immediate cancellation cuts service off now: the record goes terminal and
// the user's plan drops to free in the same transaction. Otherwise only
// CancelAtPeriodEnd is flagged and service continues until the expiry sweep
// observes the elapsed period.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID, immediate bool) (*Subscription, error) {
	sub, err := s.repo.GetCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub.Status != SubscriptionStatusActive {
		return nil, ErrNotCancelable
	}

	now := s.now()
	sub.CanceledAt = &now

	if immediate {
		sub.Status = SubscriptionStatusCanceled
		sub.CurrentPeriodEnd = &now
		sub.NextBillingDate = nil
		if err := s.repo.SaveWithUserPlan(ctx, sub, PlanFree); err != nil {
			return nil, fmt.Errorf("cancel subscription: %w", err)
		}
	} else {
		sub.CancelAtPeriodEnd = true
		if err := s.repo.Update(ctx, sub); err != nil {
			return nil, fmt.Errorf("cancel subscription at period end: %w", err)
		}
	}

	s.logger.Info("subscription canceled",
		zap.String("user_id", userID.String()),
		zap.Bool("immediate", immediate),
	)
	return sub, nil
}

// CheckSubscription reads the user's subscription status, running the lazy
// expiry sweep first. Every status read in the server goes through here;
// that is the invariant that makes a sweep without a scheduler sound.
func (s *Service) CheckSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionCheck, error) {
	sub, err := s.repo.GetCurrent(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return &SubscriptionCheck{Message: "no subscription"}, nil
		}
		return nil, err
	}

	now := s.now()

	switch sub.Status {
	case SubscriptionStatusTrial:
		if sub.TrialElapsed(now) {
			return s.expire(ctx, sub, now, "trial expired")
		}
		return &SubscriptionCheck{HasActiveSubscription: true, Subscription: sub}, nil

	case SubscriptionStatusActive:
		if sub.PeriodElapsed(now) {
			if sub.CancelAtPeriodEnd {
				return s.expire(ctx, sub, now, "subscription expired")
			}
			// Stale but not canceled: renewal is the payment webhook's
			// job, the sweep only reports it.
			return &SubscriptionCheck{NeedsRenewal: true, Subscription: sub}, nil
		}
		return &SubscriptionCheck{HasActiveSubscription: true, Subscription: sub}, nil

	case SubscriptionStatusPastDue:
		return &SubscriptionCheck{NeedsRenewal: true, Subscription: sub}, nil

	default:
		return &SubscriptionCheck{Message: "no subscription"}, nil
	}
}

func (s *Service) expire(ctx context.Context, sub *Subscription, now time.Time, message string) (*SubscriptionCheck, error) {
	sub.Status = SubscriptionStatusExpired
	sub.EndDate = &now
	sub.NextBillingDate = nil

	if err := s.repo.SaveWithUserPlan(ctx, sub, PlanFree); err != nil {
		return nil, fmt.Errorf("expire subscription: %w", err)
	}

	s.logger.Info("subscription expired",
		zap.String("user_id", sub.UserID.String()),
		zap.String("plan", sub.PlanID),
	)

	return &SubscriptionCheck{
		Message:   message,
		ExpiredAt: &now,
	}, nil
}

func (s *Service) PlanFor(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.repo.GetUserPlan(ctx, userID)
}
