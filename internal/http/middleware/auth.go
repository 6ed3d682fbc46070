// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication for the public API. Every
// request under /api must present a JWT signed with the shared HMAC secret;
// the token's subject becomes the request's user identity, stored in the Gin
// context under "userID" where logging, rate limiting, and handlers pick it
// up.
//
// Design notes:
//   - Only HMAC (HS256/384/512) tokens are accepted; an asymmetric token is
//     rejected outright to prevent algorithm-confusion downgrades.
//   - The middleware authenticates, it does not authorize: resource ownership
//     is enforced by the services.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthOptions configures the bearer-token middleware.
//
// Secret is the HMAC key shared with the token issuer. Issuer, when set, must
// match the token's "iss" claim.
type AuthOptions struct {
	Secret []byte
	Issuer string
}

// Auth returns a Gin middleware that validates the Authorization bearer token
// and stores the subject claim under "userID".
//
// Responses:
//
//	401 { "code": "unauthorized", "message": "missing bearer token" }
//	401 { "code": "unauthorized", "message": "invalid token" }
func Auth(opt AuthOptions) gin.HandlerFunc {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if opt.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opt.Issuer))
	}
	parser := jwt.NewParser(parserOpts...)

	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims := jwt.RegisteredClaims{}
		_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			return opt.Secret, nil
		})
		if err != nil || claims.Subject == "" {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set("userID", claims.Subject)
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme comparison is case-insensitive per RFC 9110.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
