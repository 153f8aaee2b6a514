package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
	corsMaxAge  = "86400"
)

type corsPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newCORSPolicy(allowedOrigins string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{})}
	for _, o := range strings.Split(allowedOrigins, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = struct{}{}
		}
	}
	if len(p.origins) == 0 {
		p.any = true
	}
	return p
}

// allow returns the Access-Control-Allow-Origin value for origin, or "" when it is not allowed.
func (p corsPolicy) allow(origin string) string {
	if p.any {
		return "*"
	}
	if _, ok := p.origins[origin]; ok {
		return origin
	}
	return ""
}

// CORS sets cross-origin headers for the web client. allowedOrigins is "*" or a
// comma-separated list such as "https://blanball.com,http://localhost:3000".
func CORS(allowedOrigins string) gin.HandlerFunc {
	policy := newCORSPolicy(allowedOrigins)
	return func(c *gin.Context) {
		if !policy.any {
			c.Writer.Header().Add("Vary", "Origin")
		}
		if origin := c.GetHeader("Origin"); origin != "" {
			if allowed := policy.allow(origin); allowed != "" {
				c.Header("Access-Control-Allow-Origin", allowed)
				c.Header("Access-Control-Allow-Methods", corsMethods)
				c.Header("Access-Control-Allow-Headers", corsHeaders)
				c.Header("Access-Control-Max-Age", corsMaxAge)
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
