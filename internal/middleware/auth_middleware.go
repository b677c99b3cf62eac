package middleware

import (
	"strings"

	"lipia-service/internal/pkg/identity"
	"lipia-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	verifier *identity.Verifier
}

func NewAuthMiddleware(verifier *identity.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Auth validates the bearer token and resolves the caller's user id once at
// the boundary. Everything downstream receives user_id as an explicit
// parameter; no component reads ambient session state.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		userID, err := m.verifier.Verify(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// MustGetUserID gets the resolved user id from context or panics. Only valid
// behind Auth().
func MustGetUserID(c *gin.Context) int64 {
	v, exists := c.Get("user_id")
	if !exists {
		panic("user_id not found in context")
	}
	userID, ok := v.(int64)
	if !ok {
		panic("user_id has unexpected type")
	}
	return userID
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
