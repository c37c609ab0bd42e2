package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodam/server/internal/module/billing"
	"github.com/sodam/server/internal/module/payment/provider"
	"github.com/sodam/server/internal/shared/metrics"
)

// planPrices is the checkout price table in KRW.
var planPrices = map[string]map[billing.BillingCycle]int64{
	billing.PlanPro: {
		billing.BillingCycleMonthly: 19000,
		billing.BillingCycleYearly:  190000,
	},
	billing.PlanEnterprise: {
		billing.BillingCycleMonthly: 99000,
		billing.BillingCycleYearly:  990000,
	},
}

// ServiceInterface defines the payment service surface.
type ServiceInterface interface {
	// Checkout opens a pending payment for a plan and returns the record
	// the client completes against the gateway.
	Checkout(ctx context.Context, userID uuid.UUID, planID string, cycle billing.BillingCycle, providerName string) (*Payment, error)

	// Confirm finalizes an authorized payment and activates the plan.
	Confirm(ctx context.Context, orderID, transactionID string, amount int64) (*Payment, error)

	// Refund refunds a completed payment in full.
	Refund(ctx context.Context, userID, paymentID uuid.UUID, reason string) (*Payment, error)

	Get(ctx context.Context, userID, paymentID uuid.UUID) (*Payment, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*Payment, error)
}

// Service implements payment checkout, confirmation and refunds on top of
// the provider registry.
type Service struct {
	repo            Repository
	registry        *provider.Registry
	billing         billing.ServiceInterface
	metrics         *metrics.Metrics
	logger          *zap.Logger
	defaultProvider string
	now             func() time.Time
}

// NewService creates a new payment service.
func NewService(repo Repository, registry *provider.Registry, billingSvc billing.ServiceInterface, m *metrics.Metrics, logger *zap.Logger, defaultProvider string) *Service {
	if defaultProvider == "" {
		defaultProvider = "toss"
	}
	return &Service{
		repo:            repo,
		registry:        registry,
		billing:         billingSvc,
		metrics:         m,
		logger:          logger,
		defaultProvider: defaultProvider,
		now:             time.Now,
	}
}

var _ ServiceInterface = (*Service)(nil)

// PriceOf returns the checkout price for a plan and cycle.
func PriceOf(planID string, cycle billing.BillingCycle) (int64, error) {
	cycles, ok := planPrices[planID]
	if !ok {
		return 0, billing.ErrPlanNotFound
	}
	price, ok := cycles[cycle]
	if !ok {
		return 0, billing.ErrPlanNotFound
	}
	return price, nil
}

func (s *Service) Checkout(ctx context.Context, userID uuid.UUID, planID string, cycle billing.BillingCycle, providerName string) (*Payment, error) {
	if cycle == "" {
		cycle = billing.BillingCycleMonthly
	}
	if providerName == "" {
		providerName = s.defaultProvider
	}
	if _, err := s.registry.Get(providerName); err != nil {
		return nil, err
	}

	amount, err := PriceOf(planID, cycle)
	if err != nil {
		return nil, err
	}

	p := &Payment{
		ID:       uuid.New(),
		UserID:   userID,
		OrderID:  fmt.Sprintf("order_%s", uuid.NewString()),
		PlanID:   planID,
		Cycle:    cycle,
		Amount:   amount,
		Currency: "KRW",
		Status:   StatusPending,
		Provider: providerName,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("checkout opened",
		zap.String("order_id", p.OrderID),
		zap.String("plan", planID),
		zap.Int64("amount", amount),
		zap.String("provider", providerName),
	)
	return p, nil
}

// Confirm finalizes the payment against the gateway, marks the record
// completed and activates the paid plan. The gateway call and the amount
// check both run before any state changes, so a failed confirm leaves the
// record pending (or failed) and the subscription untouched.
func (s *Service) Confirm(ctx context.Context, orderID, transactionID string, amount int64) (*Payment, error) {
	p, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCompleted {
		// Confirm retries and webhook redeliveries land here.
		return p, nil
	}
	if p.Status != StatusPending {
		return nil, ErrAlreadyCompleted
	}
	if amount != p.Amount {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrAmountMismatch, amount, p.Amount)
	}

	prov, err := s.registry.Get(p.Provider)
	if err != nil {
		return nil, err
	}

	conf, err := prov.Confirm(ctx, transactionID, orderID, amount)
	if err != nil {
		s.markFailed(ctx, p, err)
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	now := s.now()
	p.Status = StatusCompleted
	p.TransactionID = conf.TransactionID
	p.Method = conf.Method
	p.CompletedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	if _, err := s.billing.ActivatePaid(ctx, p.UserID, p.PlanID, p.Cycle, p.Amount); err != nil {
		// The charge went through; activation must not be lost silently.
		s.logger.Error("payment completed but activation failed",
			zap.String("order_id", p.OrderID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("activate after payment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.PaymentsTotal.WithLabelValues(p.Provider, string(StatusCompleted)).Inc()
	}
	s.logger.Info("payment completed",
		zap.String("order_id", p.OrderID),
		zap.String("transaction_id", p.TransactionID),
		zap.Int64("amount", p.Amount),
	)
	return p, nil
}

// Refund refunds a completed payment in full and drops the subscription.
// Only completed payments are refundable.
func (s *Service) Refund(ctx context.Context, userID, paymentID uuid.UUID, reason string) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	if !p.IsCompleted() {
		return nil, ErrNotRefundable
	}

	prov, err := s.registry.Get(p.Provider)
	if err != nil {
		return nil, err
	}

	ref, err := prov.Cancel(ctx, p.TransactionID, p.Amount, reason)
	if err != nil {
		return nil, fmt.Errorf("refund payment: %w", err)
	}

	now := s.now()
	p.Status = StatusRefunded
	p.RefundedAmount = ref.Amount
	p.RefundedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	if _, err := s.billing.Cancel(ctx, userID, true); err != nil {
		// Already-terminal subscriptions are fine, anything else is not.
		s.logger.Warn("refund completed but subscription cancel failed",
			zap.String("payment_id", p.ID.String()),
			zap.Error(err),
		)
	}

	if s.metrics != nil {
		s.metrics.PaymentsTotal.WithLabelValues(p.Provider, string(StatusRefunded)).Inc()
	}
	s.logger.Info("payment refunded",
		zap.String("payment_id", p.ID.String()),
		zap.Int64("amount", ref.Amount),
		zap.String("reason", reason),
	)
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID, paymentID uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int) ([]*Payment, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *Service) markFailed(ctx context.Context, p *Payment, cause error) {
	msg := cause.Error()
	p.Status = StatusFailed
	p.FailureMessage = &msg
	if err := s.repo.Update(ctx, p); err != nil {
		s.logger.Error("mark payment failed", zap.String("order_id", p.OrderID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.PaymentsTotal.WithLabelValues(p.Provider, string(StatusFailed)).Inc()
	}
}
