package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitsForKnownPlans(t *testing.T) {
	free := LimitsFor(PlanFree)
	assert.Equal(t, int64(10), free.AICalls)
	assert.Equal(t, int64(10), free.Creates)

	pro := LimitsFor(PlanPro)
	assert.Equal(t, int64(500), pro.AICalls)

	ent := LimitsFor(PlanEnterprise)
	for _, kind := range ResourceKinds {
		assert.Equal(t, Unlimited, ent.For(kind), "enterprise %s should be unlimited", kind)
		assert.True(t, ent.IsUnlimited(kind))
	}
}

func TestLimitsForUnknownPlanFallsBackToFree(t *testing.T) {
	unknown := LimitsFor("platinum")
	assert.Equal(t, LimitsFor(PlanFree), unknown, "unknown tiers must get the most restrictive limits")
}

func TestLimitsForUnknownResource(t *testing.T) {
	assert.Equal(t, int64(0), LimitsFor(PlanPro).For(ResourceKind("votes")),
		"unknown resources get a zero ceiling, not the unlimited sentinel")
}

func TestIsKnownPlan(t *testing.T) {
	assert.True(t, IsKnownPlan(PlanFree))
	assert.True(t, IsKnownPlan(PlanPro))
	assert.True(t, IsKnownPlan(PlanEnterprise))
	assert.False(t, IsKnownPlan("platinum"))
}
