package events

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blanball/backend/internal/middleware"
	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/response"
)

// IDsRequest is the body of bulk endpoints.
type IDsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// RespondRequest is the body for answering invites or requests.
type RespondRequest struct {
	IDs    []uuid.UUID `json:"ids" binding:"required,min=1"`
	Accept *bool       `json:"type" binding:"required"`
}

// RemoveRequest is the body for POST /events/:id/remove.
type RemoveRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Reason string    `json:"reason"`
}

// InviteRequest is the body for POST /events/:id/invites.
type InviteRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// BulkResult lists the ids a bulk operation applied.
type BulkResult struct {
	Success []uuid.UUID `json:"success"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an event handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, e)
}

// List handles GET /events?author=me&participating=me&status=Planned.
func (h *Handler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	var f ListFilter
	if c.Query("author") == "me" {
		f.AuthorID = userID
	}
	if c.Query("participating") == "me" {
		f.ParticipantID = userID
	}
	if s := models.EventStatus(c.Query("status")); s != "" {
		if !s.Valid() {
			response.BadRequest(c, "invalid status")
			return
		}
		f.Status = s
	}
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.Event{}
	}
	response.OK(c, list)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	e, err := h.svc.Get(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Update handles PUT /events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req EventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Update(c.Request.Context(), id, middleware.UserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkDelete handles POST /events/delete.
func (h *Handler) BulkDelete(c *gin.Context) {
	var req IDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	response.OK(c, BulkResult{Success: h.svc.BulkDelete(c.Request.Context(), middleware.UserID(c), req.IDs)})
}

// Join handles POST /events/:id/join.
func (h *Handler) Join(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	res, err := h.svc.Join(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Request != nil {
		response.Created(c, res)
		return
	}
	response.OK(c, res)
}

// Leave handles POST /events/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	h.simple(c, h.svc.Leave)
}

// Spectate handles POST /events/:id/spectate.
func (h *Handler) Spectate(c *gin.Context) {
	h.simple(c, h.svc.JoinAsSpectator)
}

// Unspectate handles POST /events/:id/unspectate.
func (h *Handler) Unspectate(c *gin.Context) {
	h.simple(c, h.svc.LeaveAsSpectator)
}

// RemoveMember handles POST /events/:id/remove.
func (h *Handler) RemoveMember(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req RemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), id, middleware.UserID(c), req.UserID, req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Invite handles POST /events/:id/invites.
func (h *Handler) Invite(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.SendInvite(c.Request.Context(), id, middleware.UserID(c), req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// ListInvites handles GET /invites.
func (h *Handler) ListInvites(c *gin.Context) {
	h.listWaiting(c, h.svc.ListInvites)
}

// ListRequests handles GET /requests.
func (h *Handler) ListRequests(c *gin.Context) {
	h.listWaiting(c, h.svc.ListRequests)
}

// RespondInvites handles POST /invites/respond.
func (h *Handler) RespondInvites(c *gin.Context) {
	h.respond(c, h.svc.RespondInvites)
}

// RespondRequests handles POST /requests/respond.
func (h *Handler) RespondRequests(c *gin.Context) {
	h.respond(c, h.svc.RespondRequests)
}

func (h *Handler) simple(c *gin.Context, op func(ctx context.Context, eventID, userID uuid.UUID) error) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) listWaiting(c *gin.Context, op func(ctx context.Context, userID uuid.UUID) ([]models.Participation, error)) {
	list, err := op(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.Participation{}
	}
	response.OK(c, list)
}

func (h *Handler) respond(c *gin.Context, op func(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, accept bool) []uuid.UUID) {
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	response.OK(c, BulkResult{Success: op(c.Request.Context(), middleware.UserID(c), req.IDs, *req.Accept)})
}

func eventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}
