package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/service"
)

type fakeValidator map[string]*service.Claims

func (f fakeValidator) ValidateToken(tok string) (*service.Claims, error) {
	if tok == "expired" {
		return nil, fmt.Errorf("parse token: %w", jwt.ErrTokenExpired)
	}
	c, ok := f[tok]
	if !ok {
		return nil, errors.New("bad token")
	}
	return c, nil
}

type fakeSessions struct{ current map[int]string }

func (f fakeSessions) ValidateSession(_ context.Context, userID int, jti string) error {
	if f.current[userID] != jti {
		return service.ErrSessionInvalidated
	}
	return nil
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})
	r.GET("/", handlers...)
	return r
}

func TestRequireRole(t *testing.T) {
	v := fakeValidator{
		"admin":   {Role: model.RoleAdmin, UserID: 1},
		"student": {Role: model.RoleStudent, UserID: 2},
	}

	tests := []struct {
		name    string
		mw      gin.HandlerFunc
		header  string
		query   string
		want    int
		wantErr string
	}{
		{"admin ok", RequireAdminJWT(v), "Bearer admin", "", http.StatusOK, ""},
		{"admin via query", RequireAdminJWT(v), "", "admin", http.StatusOK, ""},
		{"student rejected on admin route", RequireAdminJWT(v), "Bearer student", "", http.StatusForbidden, "ADMIN_ACCESS_ONLY"},
		{"student ok", RequireStudentJWT(v), "Bearer student", "", http.StatusOK, ""},
		{"student query not accepted", RequireStudentJWT(v), "", "student", http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"missing", RequireStudentJWT(v), "", "", http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"garbage", RequireStudentJWT(v), "Bearer nope", "", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"expired", RequireStudentJWT(v), "Bearer expired", "", http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"ws student", RequireStudentWSAuth(v), "", "student", http.StatusOK, ""},
		{"ws admin", RequireStudentWSAuth(v), "", "admin", http.StatusForbidden, "STUDENT_ACCESS_ONLY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(tt.mw)
			target := "/"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if tt.wantErr != "" && !strings.Contains(w.Body.String(), tt.wantErr) {
				t.Errorf("body %s missing %s", w.Body.String(), tt.wantErr)
			}
		})
	}
}

func TestCheckSingleDeviceSession(t *testing.T) {
	v := fakeValidator{"student": {Role: model.RoleStudent, UserID: 2}}
	v["student"].ID = "jti-old"

	sessions := fakeSessions{current: map[int]string{2: "jti-new"}}
	r := newTestRouter(RequireStudentJWT(v), CheckSingleDeviceSession(sessions))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer student")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "SESSION_INVALIDATED") {
		t.Fatalf("stale session: got %d %s", w.Code, w.Body.String())
	}

	sessions.current[2] = "jti-old"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("current session: got %d %s", w.Code, w.Body.String())
	}
}
