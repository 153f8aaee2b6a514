package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/blanball/backend/pkg/apperror"
	"github.com/blanball/backend/pkg/response"
)

var errRoleRequired = apperror.New(apperror.KindPermission, "role_required", "insufficient permissions")

// RequireRole lets through only callers whose token carries one of roles. Mount it after JWT.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, authenticated := c.Get(ContextUserRole); !authenticated {
			unauthorized(c, "missing user context")
			return
		}
		if !slices.Contains(roles, Role(c)) {
			response.Error(c, errRoleRequired)
			c.Abort()
			return
		}
		c.Next()
	}
}
