package rbac

import (
	"net/http"

	"carecall-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireCaregiverScope enforces that a caregiver_id exists in context. Every
// read surface is scoped to it; there is no cross-caregiver listing.
func RequireCaregiverScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		cgID, err := auth.CaregiverID(c.Request.Context())
		if err != nil || cgID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "caregiver_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// Admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		if IsAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
