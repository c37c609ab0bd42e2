package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sodam/server/internal/module/billing"
	"github.com/sodam/server/internal/shared/response"
)

// Handler handles HTTP requests for payments.
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new payment handler.
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the payment routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	p := r.Group("/payments")
	{
		p.POST("/checkout", h.Checkout)
		p.POST("/confirm", h.Confirm)
		p.POST("/:id/refund", h.Refund)
		p.GET("", h.List)
		p.GET("/:id", h.Get)
	}
}

// Checkout opens a pending payment the client completes on the gateway's
// checkout widget.
func (h *Handler) Checkout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "plan_id is required")
		return
	}

	p, err := h.service.Checkout(c.Request.Context(), userID, req.PlanID, req.Cycle, req.Provider)
	if err != nil {
		handlePaymentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Confirm finalizes a payment the client authorized on the gateway.
func (h *Handler) Confirm(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "orderId, paymentKey and amount are required")
		return
	}

	p, err := h.service.Confirm(c.Request.Context(), req.OrderID, req.PaymentKey, req.Amount)
	if err != nil {
		handlePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Refund refunds a completed payment in full.
func (h *Handler) Refund(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Reason = "requested by user"
	}

	p, err := h.service.Refund(c.Request.Context(), userID, paymentID, req.Reason)
	if err != nil {
		handlePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Get returns one of the caller's payments.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}

	p, err := h.service.Get(c.Request.Context(), userID, paymentID)
	if err != nil {
		handlePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// List returns the caller's payment history.
func (h *Handler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	payments, err := h.service.List(c.Request.Context(), userID, 20)
	if err != nil {
		response.InternalError(c, "failed to list payments")
		return
	}
	c.JSON(http.StatusOK, ListPaymentsResponse{Payments: payments})
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		response.Unauthorized(c, "")
		return uuid.Nil, false
	}
	return userID, true
}

func handlePaymentError(c *gin.Context, err error) {
	response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
		{Err: ErrPaymentNotFound, Status: http.StatusNotFound, Code: "PAYMENT_NOT_FOUND"},
		{Err: ErrNotRefundable, Status: http.StatusConflict, Code: "NOT_REFUNDABLE"},
		{Err: ErrAlreadyCompleted, Status: http.StatusConflict, Code: "ALREADY_COMPLETED"},
		{Err: ErrAmountMismatch, Status: http.StatusBadRequest, Code: "AMOUNT_MISMATCH"},
		{Err: billing.ErrPlanNotFound, Status: http.StatusNotFound, Code: "PLAN_NOT_FOUND"},
	})
}
