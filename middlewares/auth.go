package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/invoice-sieve/appctx"
	"github.com/mmdatafocus/invoice-sieve/internal/apperr"
	"github.com/mmdatafocus/invoice-sieve/internal/auth"
)

// Auth requires a valid bearer token on every request it guards,
// populating appctx's tenant/actor/scope/admin keys for downstream
// handlers and the tenant-guard gorm plugin. Unlike the teacher's
// AuthMiddleware, a missing Authorization header is a hard 401 here:
// every scoring route is tenant-scoped, so there is no anonymous path
// to fall through to.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const bearer = "Bearer "
		if header == "" || !strings.HasPrefix(header, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claims, err := auth.Validate(strings.TrimPrefix(header, bearer))
		if err != nil {
			if errors.Is(err, apperr.ErrTenantMismatch) {
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			}
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		ctx = appctx.Set(ctx, appctx.ContextKeyTenantId, claims.TenantID)
		ctx = appctx.Set(ctx, appctx.ContextKeyActor, claims.Actor)
		ctx = appctx.Set(ctx, appctx.ContextKeyScopes, claims.Scopes)
		ctx = appctx.Set(ctx, appctx.ContextKeyIsAdmin, claims.IsAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
