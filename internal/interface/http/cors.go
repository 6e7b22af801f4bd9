package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// originPolicy decides which Access-Control-Allow-Origin value to send.
type originPolicy struct {
	any      bool
	fallback string
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	if len(origins) == 0 {
		p.any = true
		return p
	}
	p.fallback = origins[0]
	for _, origin := range origins {
		if origin == "*" {
			p.any = true
		}
		p.allowed[strings.ToLower(origin)] = struct{}{}
	}
	return p
}

// resolve echoes a listed origin; unlisted origins get the first configured
// one so the browser blocks them.
func (p originPolicy) resolve(origin string) string {
	if p.any {
		return "*"
	}
	if _, ok := p.allowed[strings.ToLower(origin)]; ok && origin != "" {
		return origin
	}
	return p.fallback
}

// corsMiddleware answers preflights and tags every response with CORS headers.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	policy := newOriginPolicy(allowed)
	return func(c *gin.Context) {
		headers := c.Writer.Header()
		headers.Set("Access-Control-Allow-Origin", policy.resolve(c.GetHeader("Origin")))
		headers.Add("Vary", "Origin")
		headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		headers.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
