package reviews

import (
	"github.com/gin-gonic/gin"

	"github.com/blanball/backend/internal/middleware"
	"github.com/blanball/backend/pkg/response"
)

// Handler handles review HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a review handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /reviews.
func (h *Handler) Create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rv, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rv)
}

// Mine handles GET /reviews/mine.
func (h *Handler) Mine(c *gin.Context) {
	sum, err := h.svc.Mine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sum)
}
