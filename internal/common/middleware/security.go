package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets the response headers appropriate for a JSON
// provisioning API. Responses carry identity data, so caching is
// disabled across the board. HSTS and CSP are only sent in production
// where the service sits behind TLS.
func SecurityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")

		if production {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}

		c.Next()
	}
}
