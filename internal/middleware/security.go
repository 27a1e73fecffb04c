package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders marks every API response as private and not embeddable.
// Listings are tenant data and must not be kept by shared caches.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Cache-Control", "private, no-store")
		c.Next()
	}
}
