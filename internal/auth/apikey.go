package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// tenantCtxKey is the Gin context key used to store the authenticated tenant ID.
const tenantCtxKey = "tenant_id"

// APIKeyMiddleware enforces multi-tenancy by mapping X-API-Key → tenantID.
// Every event the service sees is scoped to this tenant, so dedup never
// compares events of different tenants.
func APIKeyMiddleware(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		tenantID, ok := keys[apiKey]
		if !ok || apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(tenantCtxKey, tenantID)
		c.Next()
	}
}

// TenantID returns the authenticated tenant ID from the request context.
func TenantID(c *gin.Context) string {
	v, _ := c.Get(tenantCtxKey)
	s, _ := v.(string)
	return s
}

// SameTenant reports whether an explicitly requested tenant (for example a
// tenant_id query parameter) is empty or equal to the authenticated one.
func SameTenant(c *gin.Context, requested string) bool {
	requested = strings.TrimSpace(requested)
	return requested == "" || requested == TenantID(c)
}
