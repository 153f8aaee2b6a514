package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blanball/backend/pkg/apperror"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Accepted sends a 202 JSON response for work dispatched to the background.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401 for a missing or rejected session token.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err, Code: "unauthorized"})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Error maps a domain error to its HTTP status. Unclassified errors become a generic 500.
func Error(c *gin.Context, err error) {
	e, ok := apperror.As(err)
	if !ok {
		Internal(c, "internal error")
		return
	}
	c.JSON(StatusFor(e.Kind), Body{Success: false, Error: e.Message, Code: e.Code})
}

// StatusFor returns the HTTP status used for an error kind.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindPermission:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
