package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/pkg/jwtutil"
	"docexplorer/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
)

// TokenParser validates a bearer token. *jwtutil.Signer satisfies it.
type TokenParser interface {
	Parse(token string) (*jwtutil.Claims, error)
}

// AuthJWT rejects the request unless it carries a valid bearer token. The
// reason is never echoed back to the caller.
func AuthJWT(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			unauthorized(c)
			return
		}

		const prefix = "Bearer "
		if len(authHeader) <= len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
			unauthorized(c)
			return
		}

		token := strings.TrimSpace(authHeader[len(prefix):])
		claims, err := parser.Parse(token)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "could not validate credentials")
}
