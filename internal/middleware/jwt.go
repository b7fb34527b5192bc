package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/response"
	"github.com/stemsi/examsecure/internal/service"
)

// ContextKeyClaims holds the validated *service.Claims.
const ContextKeyClaims = "claims"

// TokenValidator parses bearer tokens into claims.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*service.Claims, error)
}

type tokenSource uint8

const (
	fromHeader tokenSource = 1 << iota
	fromQuery
)

var errNoToken = errors.New("no bearer token")

// RequireStudentJWT admits students presenting an Authorization bearer token.
func RequireStudentJWT(auth TokenValidator) gin.HandlerFunc {
	return requireRole(auth, model.RoleStudent, response.ErrStudentAccessOnly, fromHeader)
}

// RequireAdminJWT admits admins. EventSource clients cannot set headers, so the
// token may also arrive as ?token=.
func RequireAdminJWT(auth TokenValidator) gin.HandlerFunc {
	return requireRole(auth, model.RoleAdmin, response.ErrAdminAccessOnly, fromHeader|fromQuery)
}

// RequireStudentWSAuth admits students on websocket upgrades, which carry the
// token only in ?token=.
func RequireStudentWSAuth(auth TokenValidator) gin.HandlerFunc {
	return requireRole(auth, model.RoleStudent, response.ErrStudentAccessOnly, fromQuery)
}

func GetClaims(c *gin.Context) *service.Claims {
	if v, ok := c.Get(ContextKeyClaims); ok {
		if claims, ok := v.(*service.Claims); ok {
			return claims
		}
	}
	return nil
}

func requireRole(auth TokenValidator, role model.Role, denied response.ErrCode, sources tokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.Request, sources)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := auth.ValidateToken(raw)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
		case err != nil:
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		case claims.Role != role:
			response.AbortFail(c, http.StatusForbidden, denied)
		default:
			c.Set(ContextKeyClaims, claims)
			c.Next()
		}
	}
}

func bearerToken(r *http.Request, sources tokenSource) (string, error) {
	if sources&fromHeader != 0 {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if ok && strings.EqualFold(scheme, "bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
	}
	if sources&fromQuery != 0 {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
	}
	return "", errNoToken
}
