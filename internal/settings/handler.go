package settings

import (
	"github.com/gin-gonic/gin"

	"github.com/blanball/backend/pkg/response"
)

// MaintenanceRequest is the body for POST /maintenance.
type MaintenanceRequest struct {
	Enabled *bool `json:"isMaintenance" binding:"required"`
}

// Handler handles settings HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a settings handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetMaintenance handles GET /maintenance.
func (h *Handler) GetMaintenance(c *gin.Context) {
	m, err := h.svc.Maintenance(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to read maintenance")
		return
	}
	response.OK(c, m)
}

// SetMaintenance handles POST /maintenance (admin only).
func (h *Handler) SetMaintenance(c *gin.Context) {
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.SetMaintenance(c.Request.Context(), *req.Enabled)
	if err != nil {
		response.Internal(c, "failed to update maintenance")
		return
	}
	response.OK(c, m)
}

// Version handles GET /version.
func (h *Handler) Version(c *gin.Context) {
	response.OK(c, gin.H{"version": h.svc.Version()})
}
