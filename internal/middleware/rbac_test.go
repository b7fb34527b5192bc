package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/service"
)

func TestPermissionChecks(t *testing.T) {
	claims := &service.Claims{
		UserID:      1,
		Role:        model.RoleAdmin,
		Permissions: []string{string(model.PermissionExamsRead), string(model.PermissionResultsRead)},
	}

	tests := []struct {
		name   string
		claims *service.Claims
		mw     gin.HandlerFunc
		want   int
	}{
		{"held", claims, RequirePermission(model.PermissionExamsRead), http.StatusOK},
		{"all held", claims, RequirePermission(model.PermissionExamsRead, model.PermissionResultsRead), http.StatusOK},
		{"one of all missing", claims, RequirePermission(model.PermissionExamsRead, model.PermissionExamsWrite), http.StatusForbidden},
		{"missing", claims, RequirePermission(model.PermissionMonitor), http.StatusForbidden},
		{"any held", claims, RequireAnyPermission(model.PermissionMonitor, model.PermissionResultsRead), http.StatusOK},
		{"any missing", claims, RequireAnyPermission(model.PermissionMonitor, model.PermissionStudentsWrite), http.StatusForbidden},
		{"no claims", nil, RequirePermission(model.PermissionExamsRead), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setClaims := func(c *gin.Context) {
				if tt.claims != nil {
					c.Set(ContextKeyClaims, tt.claims)
				}
			}
			r := newTestRouter(setClaims, tt.mw)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
