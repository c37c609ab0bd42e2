package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sodam/server/internal/model"
	"github.com/sodam/server/internal/shared/response"
)

// SignupRequest registers a new account.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest authenticates by email and password.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the user and their issued tokens.
type AuthResponse struct {
	User   *model.User `json:"user"`
	Tokens *TokenPair  `json:"tokens"`
}

// Handler handles HTTP requests for auth.
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new auth handler.
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes registers signup and login.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	a := r.Group("/auth")
	{
		a.POST("/signup", h.Signup)
		a.POST("/login", h.Login)
	}
}

// RegisterRoutes registers the routes that need a session.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/auth/me", h.Me)
}

// Signup registers a new account on the free tier.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email, password (min 8 chars) and name are required")
		return
	}

	user, tokens, err := h.service.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{User: user, Tokens: tokens})
}

// Login authenticates an existing account.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}

	user, tokens, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, AuthResponse{User: user, Tokens: tokens})
}

// Me returns the caller's profile.
func (h *Handler) Me(c *gin.Context) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		response.Unauthorized(c, "")
		return
	}

	user, err := h.service.Me(c.Request.Context(), userID)
	if err != nil {
		handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func handleAuthError(c *gin.Context, err error) {
	response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
		{Err: ErrEmailTaken, Status: http.StatusConflict, Code: "EMAIL_TAKEN"},
		{Err: ErrInvalidCredentials, Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS"},
		{Err: ErrUserSuspended, Status: http.StatusForbidden, Code: "ACCOUNT_SUSPENDED"},
		{Err: ErrUserNotFound, Status: http.StatusNotFound, Code: "USER_NOT_FOUND"},
	})
}
