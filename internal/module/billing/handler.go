package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sodam/server/internal/shared/response"
)

// Handler handles HTTP requests for billing.
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new billing handler.
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the billing routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	b := r.Group("/billing")
	{
		b.GET("/subscription", h.GetSubscription)
		b.POST("/subscription/trial", h.StartTrial)
		b.POST("/subscription/cancel", h.CancelSubscription)
	}
}

// RegisterPublicRoutes registers routes that need no session.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/billing/plans", h.ListPlans)
}

// ListPlans returns the plan catalog.
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.service.ListPlans(c.Request.Context())
	if err != nil {
		response.InternalError(c, "failed to list plans")
		return
	}
	c.JSON(http.StatusOK, GetPlansResponse{Plans: plans})
}

// GetSubscription returns the caller's subscription status. Reading the
// status runs the expiry sweep, which may transition a stale record.
func (h *Handler) GetSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	check, err := h.service.CheckSubscription(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "failed to check subscription")
		return
	}
	c.JSON(http.StatusOK, check)
}

// StartTrial starts a trial of a paid plan.
func (h *Handler) StartTrial(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req StartTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "plan_id is required")
		return
	}
	if req.TrialDays <= 0 {
		req.TrialDays = 14
	}

	sub, err := h.service.StartTrial(c.Request.Context(), userID, req.PlanID, req.TrialDays)
	if err != nil {
		handleBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// CancelSubscription cancels the caller's subscription.
func (h *Handler) CancelSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Default to cancel at period end
		req.Immediate = false
	}

	sub, err := h.service.Cancel(c.Request.Context(), userID, req.Immediate)
	if err != nil {
		handleBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		response.Unauthorized(c, "")
		return uuid.Nil, false
	}
	return userID, true
}

func handleBillingError(c *gin.Context, err error) {
	response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
		{Err: ErrSubscriptionNotFound, Status: http.StatusNotFound, Code: "SUBSCRIPTION_NOT_FOUND"},
		{Err: ErrPlanNotFound, Status: http.StatusNotFound, Code: "PLAN_NOT_FOUND"},
		{Err: ErrNotCancelable, Status: http.StatusConflict, Code: "NOT_CANCELABLE"},
	})
}
