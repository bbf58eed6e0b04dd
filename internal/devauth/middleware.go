package devauth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// RequireToken validates the Authorization header. Both "Bearer <token>" and a
// bare token are accepted, matching the upstream this stands in for.
func (s *Service) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Not authenticated",
			})
			c.Abort()
			return
		}

		token := authHeader
		if parts := strings.Fields(authHeader); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}

		claims, err := s.tokens.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Could not validate credentials",
			})
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by RequireToken.
func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
