package quota

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sodam/server/internal/module/billing"
)

// memLedger is an in-memory LedgerRepository with the same atomicity
// guarantee as the SQL implementation: the admission check and the
// increment happen under one lock.
type memLedger struct {
	mu   sync.Mutex
	rows map[string]map[billing.ResourceKind]int64
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]map[billing.ResourceKind]int64)}
}

func ledgerKey(userID uuid.UUID, period string) string {
	return userID.String() + "/" + period
}

func (m *memLedger) row(userID uuid.UUID, period string) map[billing.ResourceKind]int64 {
	key := ledgerKey(userID, period)
	if m.rows[key] == nil {
		m.rows[key] = make(map[billing.ResourceKind]int64)
	}
	return m.rows[key]
}

func (m *memLedger) GetOrCreate(ctx context.Context, userID uuid.UUID, period string) (*billing.UsageLedger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.row(userID, period)
	return &billing.UsageLedger{
		UserID:   userID,
		Period:   period,
		Creates:  row[billing.ResourceCreates],
		AICalls:  row[billing.ResourceAICalls],
		Exports:  row[billing.ResourceExports],
		APICalls: row[billing.ResourceAPICalls],
		Storage:  row[billing.ResourceStorage],
	}, nil
}

func (m *memLedger) Increment(ctx context.Context, userID uuid.UUID, period string, kind billing.ResourceKind, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.row(userID, period)
	row[kind] += amount
	return row[kind], nil
}

func (m *memLedger) ConditionalIncrement(ctx context.Context, userID uuid.UUID, period string, kind billing.ResourceKind, amount, limit int64) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.row(userID, period)
	if row[kind]+amount > limit {
		return false, row[kind], nil
	}
	row[kind] += amount
	return true, row[kind], nil
}

var _ billing.LedgerRepository = (*memLedger)(nil)

func newTestGate(ledger billing.LedgerRepository) *Gate {
	return NewGate(ledger, nil, zap.NewNop())
}

func TestUseFreshPeriodStartsAtZero(t *testing.T) {
	gate := newTestGate(newMemLedger())
	userID := uuid.New()

	status, err := gate.Status(context.Background(), userID, billing.PlanFree)
	require.NoError(t, err)

	for _, kind := range billing.ResourceKinds {
		assert.Zero(t, status.Usage[kind], "fresh period counter for %s", kind)
	}
}

func TestUseWithinLimit(t *testing.T) {
	gate := newTestGate(newMemLedger())
	userID := uuid.New()

	// Free plan allows 10 creates; all 10 must be admitted.
	for i := 1; i <= 10; i++ {
		res, err := gate.Use(context.Background(), userID, billing.PlanFree, billing.ResourceCreates, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i)
		assert.Equal(t, int64(i), res.Current)
		assert.Equal(t, int64(10-i), res.Remaining)
	}
}

func TestUseRejectsWithoutMutating(t *testing.T) {
	gate := newTestGate(newMemLedger())
	userID := uuid.New()

	// 9 of 10 aiCalls used, then ask for 2.
	for i := 0; i < 9; i++ {
		_, err := gate.Use(context.Background(), userID, billing.PlanFree, billing.ResourceAICalls, 1)
		require.NoError(t, err)
	}

	res, err := gate.Use(context.Background(), userID, billing.PlanFree, billing.ResourceAICalls, 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(9), res.Current, "rejected amount must not apply, not even partially")
	assert.Equal(t, int64(1), res.Remaining)

	// A subsequent single-unit call still fits.
	res, err = gate.Use(context.Background(), userID, billing.PlanFree, billing.ResourceAICalls, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(10), res.Current)

	res, err = gate.Use(context.Background(), userID, billing.PlanFree, billing.ResourceAICalls, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Message, "10/10")
}

func TestUseUnlimited(t *testing.T) {
	gate := newTestGate(newMemLedger())
	userID := uuid.New()

	for i := 0; i < 200; i++ {
		res, err := gate.Use(context.Background(), userID, billing.PlanEnterprise, billing.ResourceAICalls, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, billing.Unlimited, res.Limit)
		assert.Equal(t, billing.Unlimited, res.Remaining)
	}
}

func TestUseUnknownResource(t *testing.T) {
	gate := newTestGate(newMemLedger())

	_, err := gate.Use(context.Background(), uuid.New(), billing.PlanFree, "teleports", 1)
	assert.ErrorIs(t, err, billing.ErrInvalidResource)
}

func TestUseNonPositiveAmount(t *testing.T) {
	gate := newTestGate(newMemLedger())

	_, err := gate.Use(context.Background(), uuid.New(), billing.PlanFree, billing.ResourceCreates, 0)
	assert.ErrorIs(t, err, billing.ErrInvalidAmount)

	_, err = gate.Use(context.Background(), uuid.New(), billing.PlanFree, billing.ResourceCreates, -3)
	assert.ErrorIs(t, err, billing.ErrInvalidAmount)
}

func TestUseConcurrentAdmitsExactlyLimit(t *testing.T) {
	const (
		callers = 50
		limit   = 10 // free plan creates ceiling
	)

	ledger := newMemLedger()
	gate := newTestGate(ledger)
	userID := uuid.New()

	var wg sync.WaitGroup
	admitted := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := gate.Use(context.Background(), userID, billing.PlanFree, billing.ResourceCreates, 1)
			if err != nil {
				t.Error(err)
				return
			}
			admitted <- res.Allowed
		}()
	}
	wg.Wait()
	close(admitted)

	var count int
	for ok := range admitted {
		if ok {
			count++
		}
	}
	assert.Equal(t, limit, count, "exactly the ceiling must be admitted, never more")

	status, err := gate.Status(context.Background(), userID, billing.PlanFree)
	require.NoError(t, err)
	assert.Equal(t, int64(limit), status.Usage[billing.ResourceCreates])
}

func TestStatusReportsHeadroom(t *testing.T) {
	gate := newTestGate(newMemLedger())
	userID := uuid.New()

	for i := 0; i < 4; i++ {
		_, err := gate.Use(context.Background(), userID, billing.PlanFree, billing.ResourceCreates, 1)
		require.NoError(t, err)
	}

	status, err := gate.Status(context.Background(), userID, billing.PlanFree)
	require.NoError(t, err)

	assert.Equal(t, int64(4), status.Usage[billing.ResourceCreates])
	assert.Equal(t, int64(10), status.Limits[billing.ResourceCreates])
	assert.Equal(t, int64(6), status.Remaining[billing.ResourceCreates])
	assert.InDelta(t, 40.0, status.PercentUsed[billing.ResourceCreates], 0.001)
}

func TestStatusUnlimitedPlan(t *testing.T) {
	gate := newTestGate(newMemLedger())
	userID := uuid.New()

	_, err := gate.Use(context.Background(), userID, billing.PlanEnterprise, billing.ResourceExports, 42)
	require.NoError(t, err)

	status, err := gate.Status(context.Background(), userID, billing.PlanEnterprise)
	require.NoError(t, err)

	assert.Equal(t, int64(42), status.Usage[billing.ResourceExports])
	assert.Equal(t, billing.Unlimited, status.Limits[billing.ResourceExports])
	assert.Equal(t, billing.Unlimited, status.Remaining[billing.ResourceExports])
	assert.Zero(t, status.PercentUsed[billing.ResourceExports])
}

func TestPeriodsAreIndependent(t *testing.T) {
	ledger := newMemLedger()
	userID := uuid.New()

	// Exhaust one period directly, then verify the gate sees a clean
	// counter once the period key differs.
	_, err := ledger.Increment(context.Background(), userID, "2026-07", billing.ResourceCreates, 10)
	require.NoError(t, err)

	gate := newTestGate(ledger)
	gate.now = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
	res, err := gate.Use(context.Background(), userID, billing.PlanFree, billing.ResourceCreates, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "last period's counters must not bleed into this one")
	assert.Equal(t, int64(1), res.Current)
}

func TestUsersAreIndependent(t *testing.T) {
	gate := newTestGate(newMemLedger())
	heavy := uuid.New()
	light := uuid.New()

	for i := 0; i < 10; i++ {
		_, err := gate.Use(context.Background(), heavy, billing.PlanFree, billing.ResourceCreates, 1)
		require.NoError(t, err)
	}

	res, err := gate.Use(context.Background(), heavy, billing.PlanFree, billing.ResourceCreates, 1)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = gate.Use(context.Background(), light, billing.PlanFree, billing.ResourceCreates, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "one user's exhaustion must not affect another")
}

func ExampleGate_Use() {
	gate := NewGate(newMemLedger(), nil, zap.NewNop())
	res, _ := gate.Use(context.Background(), uuid.New(), billing.PlanFree, billing.ResourceExports, 1)
	fmt.Println(res.Allowed, res.Limit)
	// Output: true 5
}
