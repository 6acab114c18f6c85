package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/response"
)

// RequireRole checks that the JWT carries at least one of the given roles.
// Admins pass every role gate.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		set := claims.RoleSet()
		if set.Has(model.RoleAdmin) || set.HasAny(roles...) {
			c.Next()
			return
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
	}
}
