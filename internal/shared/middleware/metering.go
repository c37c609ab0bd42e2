package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodam/server/internal/module/billing"
	"github.com/sodam/server/internal/module/billing/quota"
	"github.com/sodam/server/internal/shared/response"
)

// Metering charges one apiCalls unit per request against the caller's plan
// ceiling and rejects with 429 once the period allowance is spent. It must
// run after the auth middleware; a request without an authenticated user
// is rejected rather than passed through unmetered.
func Metering(gate *quota.Gate, billingSvc billing.ServiceInterface, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetString("user_id"))
		if err != nil {
			response.Unauthorized(c, "")
			c.Abort()
			return
		}

		plan, err := billingSvc.PlanFor(c.Request.Context(), userID)
		if err != nil {
			// Metering failure must not take the API down.
			log.Warn("api metering plan lookup failed", zap.Error(err))
			c.Next()
			return
		}

		res, err := gate.Use(c.Request.Context(), userID, plan, billing.ResourceAPICalls, 1)
		if err != nil {
			log.Warn("api metering failed", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, res)
			return
		}
		c.Next()
	}
}
