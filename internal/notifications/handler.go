package notifications

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blanball/backend/internal/middleware"
	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/response"
)

// IDsRequest is the body for bulk read and delete.
type IDsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// Handler handles notification HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a notification handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /notifications?limit=&offset=&skip_ids=a,b.
func (h *Handler) List(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	list, err := h.svc.List(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		response.Internal(c, "failed to list notifications")
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	response.OK(c, list)
}

// Count handles GET /notifications/count.
func (h *Handler) Count(c *gin.Context) {
	counts, err := h.svc.Counts(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to count notifications")
		return
	}
	response.OK(c, counts)
}

// Read handles POST /notifications/read.
func (h *Handler) Read(c *gin.Context) {
	var req IDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ids, err := h.svc.BulkRead(c.Request.Context(), middleware.UserID(c), req.IDs)
	if err != nil {
		response.Internal(c, "failed to read notifications")
		return
	}
	response.OK(c, gin.H{"success": nonNil(ids)})
}

// Delete handles POST /notifications/delete.
func (h *Handler) Delete(c *gin.Context) {
	var req IDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ids, err := h.svc.BulkDelete(c.Request.Context(), middleware.UserID(c), req.IDs)
	if err != nil {
		response.Internal(c, "failed to delete notifications")
		return
	}
	response.OK(c, gin.H{"success": nonNil(ids)})
}

// ReadAll handles POST /notifications/read-all. The work runs in the background.
func (h *Handler) ReadAll(c *gin.Context) {
	job, err := h.svc.RequestReadAll(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to queue read-all")
		return
	}
	response.Accepted(c, gin.H{"job_id": job.ID})
}

// DeleteAll handles DELETE /notifications. The work runs in the background.
func (h *Handler) DeleteAll(c *gin.Context) {
	job, err := h.svc.RequestDeleteAll(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to queue delete-all")
		return
	}
	response.Accepted(c, gin.H{"job_id": job.ID})
}

func parsePage(c *gin.Context) (Page, error) {
	var page Page
	var err error
	if v := c.Query("limit"); v != "" {
		if page.Limit, err = strconv.Atoi(v); err != nil {
			return page, errInvalidQuery("limit")
		}
	}
	if v := c.Query("offset"); v != "" {
		if page.Offset, err = strconv.Atoi(v); err != nil {
			return page, errInvalidQuery("offset")
		}
	}
	if v := c.Query("skip_ids"); v != "" {
		for _, s := range strings.Split(v, ",") {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				return page, errInvalidQuery("skip_ids")
			}
			page.Skip = append(page.Skip, id)
		}
	}
	return page, nil
}

type errInvalidQuery string

func (e errInvalidQuery) Error() string { return "invalid " + string(e) }

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
