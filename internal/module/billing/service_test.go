package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock implementations ---

type MockSubscriptionRepo struct {
	mock.Mock
}

func (m *MockSubscriptionRepo) Create(ctx context.Context, sub *Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockSubscriptionRepo) GetCurrent(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockSubscriptionRepo) Update(ctx context.Context, sub *Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) SaveWithUserPlan(ctx context.Context, sub *Subscription, plan string) error {
	args := m.Called(ctx, sub, plan)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) GetUserPlan(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockSubscriptionRepo) ListActivePlans(ctx context.Context) ([]*Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Plan), args.Error(1)
}

func newTestService(repo SubscriptionRepository) *Service {
	return NewService(repo, zap.NewNop())
}

// --- Tests ---

func TestCreateFreeSubscription(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()

	repo.On("GetCurrent", mock.Anything, userID).Return(nil, ErrSubscriptionNotFound)
	repo.On("SaveWithUserPlan", mock.Anything, mock.Anything, PlanFree).Return(nil)

	sub, err := svc.CreateFreeSubscription(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, PlanFree, sub.PlanID)
	assert.Equal(t, SubscriptionStatusActive, sub.Status)
	assert.Nil(t, sub.CurrentPeriodEnd, "free subscriptions are perpetual")
	assert.Nil(t, sub.NextBillingDate)
	repo.AssertExpectations(t)
}

func TestCreateFreeSubscriptionIdempotent(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	existing := &Subscription{ID: uuid.New(), UserID: userID, PlanID: PlanFree, Status: SubscriptionStatusActive}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)

	sub, err := svc.CreateFreeSubscription(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, sub.ID)
	repo.AssertNotCalled(t, "SaveWithUserPlan", mock.Anything, mock.Anything, mock.Anything)
}

func TestActivatePaidCreatesNewRecord(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()

	repo.On("GetCurrent", mock.Anything, userID).Return(nil, ErrSubscriptionNotFound)
	repo.On("SaveWithUserPlan", mock.Anything, mock.Anything, PlanPro).Return(nil)

	sub, err := svc.ActivatePaid(context.Background(), userID, PlanPro, BillingCycleMonthly, 19000)
	require.NoError(t, err)

	assert.Equal(t, PlanPro, sub.PlanID)
	assert.Equal(t, SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	require.NotNil(t, sub.NextBillingDate)
	assert.Equal(t, int64(19000), sub.Amount)
	assert.WithinDuration(t, sub.CurrentPeriodStart.AddDate(0, 1, 0), *sub.CurrentPeriodEnd, time.Second)
	repo.AssertExpectations(t)
}

func TestActivatePaidRenewsInPlace(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	existingID := uuid.New()
	trialEnd := time.Now().AddDate(0, 0, 7)
	existing := &Subscription{
		ID:       existingID,
		UserID:   userID,
		PlanID:   PlanFree,
		Status:   SubscriptionStatusTrial,
		TrialEnd: &trialEnd,
	}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)
	repo.On("SaveWithUserPlan", mock.Anything, existing, PlanPro).Return(nil)

	sub, err := svc.ActivatePaid(context.Background(), userID, PlanPro, BillingCycleYearly, 190000)
	require.NoError(t, err)

	// Same row updated in place: at most one current subscription.
	assert.Equal(t, existingID, sub.ID)
	assert.Equal(t, PlanPro, sub.PlanID)
	assert.Equal(t, SubscriptionStatusActive, sub.Status)
	assert.Nil(t, sub.TrialEnd)
	assert.False(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.WithinDuration(t, sub.CurrentPeriodStart.AddDate(0, 12, 0), *sub.CurrentPeriodEnd, time.Second)
	repo.AssertExpectations(t)
}

func TestActivatePaidUnknownPlan(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)

	_, err := svc.ActivatePaid(context.Background(), uuid.New(), "platinum", BillingCycleMonthly, 1000)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCancelImmediate(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	periodEnd := time.Now().AddDate(0, 1, 0)
	existing := &Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanID:           PlanPro,
		Status:           SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)
	repo.On("SaveWithUserPlan", mock.Anything, existing, PlanFree).Return(nil)

	sub, err := svc.Cancel(context.Background(), userID, true)
	require.NoError(t, err)

	assert.Equal(t, SubscriptionStatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.WithinDuration(t, time.Now(), *sub.CurrentPeriodEnd, time.Second,
		"immediate cancel cuts the period off now")
	// The user's plan demotion rides in the same SaveWithUserPlan call.
	repo.AssertCalled(t, "SaveWithUserPlan", mock.Anything, existing, PlanFree)
}

func TestCancelAtPeriodEnd(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	periodEnd := time.Now().AddDate(0, 1, 0)
	existing := &Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanID:           PlanPro,
		Status:           SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)
	repo.On("Update", mock.Anything, existing).Return(nil)

	sub, err := svc.Cancel(context.Background(), userID, false)
	require.NoError(t, err)

	assert.Equal(t, SubscriptionStatusActive, sub.Status, "service continues until the period elapses")
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.NotNil(t, sub.CanceledAt)
	assert.WithinDuration(t, periodEnd, *sub.CurrentPeriodEnd, time.Second, "period end untouched")
	repo.AssertNotCalled(t, "SaveWithUserPlan", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelNonActiveRejected(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	existing := &Subscription{
		ID:     uuid.New(),
		UserID: userID,
		PlanID: PlanPro,
		Status: SubscriptionStatusPastDue,
	}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)

	_, err := svc.Cancel(context.Background(), userID, true)
	assert.ErrorIs(t, err, ErrNotCancelable)
}

func TestCancelNoSubscription(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()

	repo.On("GetCurrent", mock.Anything, userID).Return(nil, ErrSubscriptionNotFound)

	_, err := svc.Cancel(context.Background(), userID, false)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestCheckSubscriptionActive(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	periodEnd := time.Now().AddDate(0, 1, 0)
	existing := &Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanID:           PlanPro,
		Status:           SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)

	check, err := svc.CheckSubscription(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, check.HasActiveSubscription)
	assert.False(t, check.NeedsRenewal)
	assert.Equal(t, existing, check.Subscription)
}

func TestCheckSubscriptionElapsedWithCancelFlagExpires(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	periodEnd := time.Now().Add(-time.Hour)
	canceledAt := time.Now().Add(-48 * time.Hour)
	existing := &Subscription{
		ID:                uuid.New(),
		UserID:            userID,
		PlanID:            PlanPro,
		Status:            SubscriptionStatusActive,
		CurrentPeriodEnd:  &periodEnd,
		CancelAtPeriodEnd: true,
		CanceledAt:        &canceledAt,
	}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)
	repo.On("SaveWithUserPlan", mock.Anything, existing, PlanFree).Return(nil)

	check, err := svc.CheckSubscription(context.Background(), userID)
	require.NoError(t, err)

	assert.False(t, check.HasActiveSubscription)
	assert.NotNil(t, check.ExpiredAt)
	assert.Equal(t, SubscriptionStatusExpired, existing.Status)
	assert.NotNil(t, existing.EndDate)
	repo.AssertExpectations(t)
}

func TestCheckSubscriptionElapsedWithoutCancelFlagNeedsRenewal(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	periodEnd := time.Now().Add(-time.Hour)
	existing := &Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanID:           PlanPro,
		Status:           SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)

	check, err := svc.CheckSubscription(context.Background(), userID)
	require.NoError(t, err)

	assert.False(t, check.HasActiveSubscription)
	assert.True(t, check.NeedsRenewal)
	assert.Equal(t, SubscriptionStatusActive, existing.Status,
		"renewal is the payment webhook's job, the sweep only reports it")
	repo.AssertNotCalled(t, "SaveWithUserPlan", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckSubscriptionTrialElapsedExpires(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	trialEnd := time.Now().Add(-time.Minute)
	existing := &Subscription{
		ID:       uuid.New(),
		UserID:   userID,
		PlanID:   PlanPro,
		Status:   SubscriptionStatusTrial,
		TrialEnd: &trialEnd,
	}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)
	repo.On("SaveWithUserPlan", mock.Anything, existing, PlanFree).Return(nil)

	check, err := svc.CheckSubscription(context.Background(), userID)
	require.NoError(t, err)

	assert.False(t, check.HasActiveSubscription)
	assert.Equal(t, "trial expired", check.Message)
	assert.Equal(t, SubscriptionStatusExpired, existing.Status)
}

func TestCheckSubscriptionNone(t *testing.T) {
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()

	repo.On("GetCurrent", mock.Anything, userID).Return(nil, ErrSubscriptionNotFound)

	check, err := svc.CheckSubscription(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, check.HasActiveSubscription)
	assert.Equal(t, "no subscription", check.Message)
}

func TestCancelThenSweepExpires(t *testing.T) {
	// Full cancel-at-period-end flow: cancel leaves the record active,
	// and once the period elapses the next status read expires it.
	repo := new(MockSubscriptionRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	periodEnd := time.Now().Add(time.Hour)
	existing := &Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanID:           PlanPro,
		Status:           SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	}

	repo.On("GetCurrent", mock.Anything, userID).Return(existing, nil)
	repo.On("Update", mock.Anything, existing).Return(nil)
	repo.On("SaveWithUserPlan", mock.Anything, existing, PlanFree).Return(nil)

	_, err := svc.Cancel(context.Background(), userID, false)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionStatusActive, existing.Status)

	// Period elapses.
	elapsed := time.Now().Add(-time.Minute)
	existing.CurrentPeriodEnd = &elapsed

	check, err := svc.CheckSubscription(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, check.HasActiveSubscription)
	assert.Equal(t, SubscriptionStatusExpired, existing.Status)
	assert.NotNil(t, check.ExpiredAt)
}
