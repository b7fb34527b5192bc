package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/response"
)

// RequirePermission checks that the admin JWT carries every listed permission.
func RequirePermission(perms ...model.Permission) gin.HandlerFunc {
	return requirePermissions(perms, true)
}

// RequireAnyPermission checks that the admin JWT carries at least one of the listed permissions.
func RequireAnyPermission(perms ...model.Permission) gin.HandlerFunc {
	return requirePermissions(perms, false)
}

func requirePermissions(perms []model.Permission, all bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		held := make(map[string]struct{}, len(claims.Permissions))
		for _, p := range claims.Permissions {
			held[p] = struct{}{}
		}

		matched := 0
		for _, p := range perms {
			if _, ok := held[string(p)]; ok {
				matched++
			}
		}

		if matched == 0 || (all && matched < len(perms)) {
			response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}
