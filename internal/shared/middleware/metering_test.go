package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sodam/server/internal/module/billing"
	"github.com/sodam/server/internal/module/billing/quota"
)

// meterLedger admits up to the given limit with the same atomicity contract
// as the SQL ledger.
type meterLedger struct {
	billing.LedgerRepository
	mu       sync.Mutex
	counters map[string]int64
}

func newMeterLedger() *meterLedger {
	return &meterLedger{counters: make(map[string]int64)}
}

func (l *meterLedger) key(userID uuid.UUID, period string, kind billing.ResourceKind) string {
	return userID.String() + "/" + period + "/" + string(kind)
}

func (l *meterLedger) Increment(_ context.Context, userID uuid.UUID, period string, kind billing.ResourceKind, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := l.key(userID, period, kind)
	l.counters[k] += amount
	return l.counters[k], nil
}

func (l *meterLedger) ConditionalIncrement(_ context.Context, userID uuid.UUID, period string, kind billing.ResourceKind, amount, limit int64) (bool, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := l.key(userID, period, kind)
	if l.counters[k]+amount > limit {
		return false, l.counters[k], nil
	}
	l.counters[k] += amount
	return true, l.counters[k], nil
}

// planStub resolves every user to a fixed plan.
type planStub struct {
	billing.ServiceInterface
	plan  string
	err   error
	calls int
}

func (s *planStub) PlanFor(_ context.Context, _ uuid.UUID) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.plan, nil
}

func newMeteredRouter(gate *quota.Gate, billingSvc billing.ServiceInterface, identity string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if identity != "" {
			c.Set("user_id", identity)
		}
	})
	r.Use(Metering(gate, billingSvc, zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestMeteringRejectsMissingIdentity(t *testing.T) {
	gate := quota.NewGate(newMeterLedger(), nil, zap.NewNop())
	svc := &planStub{plan: billing.PlanFree}
	router := newMeteredRouter(gate, svc, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, svc.calls, "an unidentified request must not reach metering")
}

func TestMeteringRejectsGarbledIdentity(t *testing.T) {
	gate := quota.NewGate(newMeterLedger(), nil, zap.NewNop())
	svc := &planStub{plan: billing.PlanFree}
	router := newMeteredRouter(gate, svc, "not-a-uuid")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, svc.calls)
}

func TestMeteringChargesAndRejectsAtCeiling(t *testing.T) {
	ledger := newMeterLedger()
	gate := quota.NewGate(ledger, nil, zap.NewNop())
	svc := &planStub{plan: billing.PlanFree}
	userID := uuid.New()
	router := newMeteredRouter(gate, svc, userID.String())

	limit := billing.LimitsFor(billing.PlanFree).APICalls
	for i := int64(0); i < limit; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "apiCalls quota exceeded")
}

func TestMeteringFailsOpenOnPlanLookupError(t *testing.T) {
	gate := quota.NewGate(newMeterLedger(), nil, zap.NewNop())
	svc := &planStub{err: assert.AnError}
	router := newMeteredRouter(gate, svc, uuid.New().String())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code, "metering failure must not take the API down")
}
