package ai

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/sodam/server/internal/shared/errors"
	"github.com/sodam/server/internal/shared/response"
)

// Handler handles HTTP requests for the AI proxy.
type Handler struct {
	service *Service
}

// NewHandler creates a new AI handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the AI routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/ai/chat", h.Chat)
}

// Chat proxies a chat completion. Exhausted aiCalls quota answers 402 with
// the quota detail so clients can render an upgrade prompt.
func (h *Handler) Chat(c *gin.Context) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		response.Unauthorized(c, "")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "messages are required")
		return
	}

	resp, quotaRes, err := h.service.Chat(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrUpstream) {
			response.Error(c, http.StatusBadGateway, "model upstream unavailable")
			return
		}
		response.InternalError(c, "")
		return
	}
	if quotaRes != nil && !quotaRes.Allowed {
		c.JSON(http.StatusPaymentRequired, quotaRes)
		return
	}
	c.JSON(http.StatusOK, resp)
}
