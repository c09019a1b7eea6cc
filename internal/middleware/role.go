package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/retroludo/retrodex/internal/models"
	"github.com/retroludo/retrodex/pkg/errors"
	"github.com/retroludo/retrodex/pkg/response"
)

// RequireRole aborts the request unless the authenticated user holds one of
// the allowed roles. Administrators always pass.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxUserRoleKey)
		if role == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if role == models.RoleAdmin {
			c.Next()
			return
		}

		for _, candidate := range allowed {
			if role == candidate {
				c.Next()
				return
			}
		}

		response.Error(c, errors.ErrForbidden)
		c.Abort()
	}
}
