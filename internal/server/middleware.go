package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gridora/gridora/pkg/apperr"
	"github.com/gridora/gridora/pkg/tenantctx"
)

// HeaderTenantID carries the caller's tenant on every scoped request.
const HeaderTenantID = "X-Tenant-Id"

var (
	errTenantHeaderMissing = apperr.Tenant("tenant_header_missing")
	errTenantHeaderInvalid = apperr.Tenant("tenant_header_invalid")
)

// TenantMiddleware resolves the tenant header into the request context.
// Requests with a missing or malformed header are rejected here, before any
// handler runs. The tenant lives only on this request's context, so nothing
// leaks between requests on a reused connection.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderTenantID)
		if raw == "" {
			AbortWithError(c, errTenantHeaderMissing)
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			AbortWithError(c, errTenantHeaderInvalid)
			return
		}

		c.Request = c.Request.WithContext(
			tenantctx.WithTenant(c.Request.Context(), tenantID),
		)
		c.Next()
	}
}
