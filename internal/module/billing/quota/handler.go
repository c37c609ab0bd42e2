package quota

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sodam/server/internal/module/billing"
	"github.com/sodam/server/internal/shared/response"
)

// Handler handles HTTP requests for quota status.
type Handler struct {
	gate    *Gate
	billing billing.ServiceInterface
}

// NewHandler creates a new quota handler.
func NewHandler(gate *Gate, billingService billing.ServiceInterface) *Handler {
	return &Handler{gate: gate, billing: billingService}
}

// RegisterRoutes registers the quota routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/billing/usage", h.GetUsage)
}

// GetUsage returns the caller's current-period usage with plan limits.
func (h *Handler) GetUsage(c *gin.Context) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		response.Unauthorized(c, "")
		return
	}

	plan, err := h.billing.PlanFor(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "failed to resolve plan")
		return
	}

	status, err := h.gate.Status(c.Request.Context(), userID, plan)
	if err != nil {
		response.InternalError(c, "failed to load usage")
		return
	}

	c.JSON(http.StatusOK, status)
}
