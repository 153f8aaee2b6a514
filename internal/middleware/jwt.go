package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blanball/backend/internal/auth"
	"github.com/blanball/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
)

// TokenValidator resolves a bearer token to its claims.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// JWT authenticates the request from its "Authorization: Bearer" header and stores
// the caller's id and role in the context.
func JWT(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing or malformed authorization header")
			return
		}
		claims, err := tokens.Validate(token)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	response.Unauthorized(c, msg)
	c.Abort()
}

// UserID returns the authenticated user's id, or uuid.Nil outside JWT-protected routes.
func UserID(c *gin.Context) uuid.UUID {
	id, _ := c.Value(ContextUserID).(uuid.UUID)
	return id
}

// Role returns the authenticated user's role, or "" outside JWT-protected routes.
func Role(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}
