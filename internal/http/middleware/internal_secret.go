// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file guards the /internal route group (scheduler triggers, operational
// endpoints) with a shared-secret header. The endpoints behind it are meant
// for the deployment's own scheduler, never for end users, so a static header
// checked in constant time is sufficient and keeps the public auth stack out
// of the hot maintenance path.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderInternalSecret is the header carrying the shared internal secret.
const HeaderInternalSecret = "X-Internal-Secret"

// RequireInternalSecret returns a Gin middleware that rejects requests whose
// X-Internal-Secret header does not match secret. An empty configured secret
// disables the routes entirely (404), so a deployment cannot accidentally
// expose internal endpoints unprotected.
func RequireInternalSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "not_found",
				"message":    "route not found",
			})
			return
		}
		got := c.GetHeader(HeaderInternalSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "forbidden",
				"message":    "invalid internal secret",
			})
			return
		}
		c.Next()
	}
}
