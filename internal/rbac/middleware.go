package rbac

import (
	"net/http"

	"callmonitor/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireOrganization enforces the multi-tenant invariant: organization_id
// must exist in context. It does not validate membership; the platform's
// authorization service owns that.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, err := auth.OrganizationID(c.Request.Context())
		if err != nil || org == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// super_admin bypasses all checks. Tenant isolation is enforced via
// RequireOrganization (use it in the chain).
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

		if IsSuperAdmin(role) {
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
