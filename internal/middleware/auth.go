package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vespl/caseflow-api/pkg/auth"
)

const actorContextKey = "actor"

type AuthMiddleware struct {
	parser *auth.TokenParser
}

func NewAuthMiddleware(parser *auth.TokenParser) *AuthMiddleware {
	return &AuthMiddleware{parser: parser}
}

// Authenticate extracts the acting identity from the bearer token and
// stores it on the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "missing bearer token",
			})
			return
		}

		actor, err := m.parser.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "invalid token",
			})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(c *gin.Context) (*auth.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return nil, false
	}
	actor, ok := v.(*auth.Actor)
	return actor, ok
}
