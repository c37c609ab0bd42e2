package content

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sodam/server/internal/shared/response"
)

// CreatePostRequest creates a draft post.
type CreatePostRequest struct {
	Title string   `json:"title" binding:"required"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// UpdatePostRequest patches a post. Empty fields are left unchanged.
type UpdatePostRequest struct {
	Title  string     `json:"title"`
	Body   string     `json:"body"`
	Tags   []string   `json:"tags"`
	Status PostStatus `json:"status"`
}

// ListPostsResponse wraps one page of posts.
type ListPostsResponse struct {
	Posts []*Post `json:"posts"`
}

// Handler handles HTTP requests for content.
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new content handler.
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the content routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	p := r.Group("/posts")
	{
		p.POST("", h.Create)
		p.GET("", h.List)
		p.GET("/export", h.Export)
		p.GET("/:id", h.Get)
		p.PATCH("/:id", h.Update)
		p.DELETE("/:id", h.Delete)
	}
}

// Create creates a post. Exhausted creates quota answers 402.
func (h *Handler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title is required")
		return
	}

	post, quotaRes, err := h.service.CreatePost(c.Request.Context(), userID, req.Title, req.Body, req.Tags)
	if err != nil {
		response.InternalError(c, "")
		return
	}
	if quotaRes != nil && !quotaRes.Allowed {
		c.JSON(http.StatusPaymentRequired, quotaRes)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// Export bundles the caller's posts. Exhausted exports quota answers 402.
func (h *Handler) Export(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	export, quotaRes, err := h.service.ExportPosts(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "")
		return
	}
	if quotaRes != nil && !quotaRes.Allowed {
		c.JSON(http.StatusPaymentRequired, quotaRes)
		return
	}
	c.JSON(http.StatusOK, export)
}

// Get returns one of the caller's posts.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	postID, ok := postIDParam(c)
	if !ok {
		return
	}

	post, err := h.service.GetPost(c.Request.Context(), userID, postID)
	if err != nil {
		handleContentError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// List returns a page of the caller's posts.
func (h *Handler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	posts, err := h.service.ListPosts(c.Request.Context(), userID, intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		response.InternalError(c, "")
		return
	}
	c.JSON(http.StatusOK, ListPostsResponse{Posts: posts})
}

// Update patches one of the caller's posts.
func (h *Handler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	postID, ok := postIDParam(c)
	if !ok {
		return
	}

	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	post, err := h.service.UpdatePost(c.Request.Context(), userID, postID, req.Title, req.Body, req.Tags, req.Status)
	if err != nil {
		handleContentError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// Delete soft-deletes one of the caller's posts.
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	postID, ok := postIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeletePost(c.Request.Context(), userID, postID); err != nil {
		handleContentError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func handleContentError(c *gin.Context, err error) {
	response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
		{Err: ErrPostNotFound, Status: http.StatusNotFound, Code: "POST_NOT_FOUND"},
	})
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		response.Unauthorized(c, "")
		return uuid.Nil, false
	}
	return userID, true
}

func postIDParam(c *gin.Context) (uuid.UUID, bool) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid post id")
		return uuid.Nil, false
	}
	return postID, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
