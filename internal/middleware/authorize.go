package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartclinic/api/internal/models"
)

// RequireRoles is the per-route access policy: it rejects requests whose
// context carries no identity, or an identity of the wrong role. The
// interceptor itself never rejects; this does.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	roleSet := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if _, ok := roleSet[identity.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access_denied"})
			return
		}

		c.Next()
	}
}
