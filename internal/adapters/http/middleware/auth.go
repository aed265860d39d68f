package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
	"github.com/JaiminPatel345/glowup-sub002/internal/tokenverify"
	res "github.com/JaiminPatel345/glowup-sub002/pkg/http"
)

// Context keys set by AuthMiddleware.
const (
	KeyUserID      = "user_id"
	KeyEmail       = "email"
	KeyRole        = "role"
	KeyPermissions = "permissions"
)

type AuthMiddleware struct {
	parser tokenverify.Parser
	now    func() time.Time
}

func NewAuthMiddleware(parser tokenverify.Parser) *AuthMiddleware {
	return &AuthMiddleware{parser: parser, now: time.Now}
}

func (m *AuthMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := BearerToken(c)
		if !ok {
			return res.ErrorJSON(c, http.StatusUnauthorized, "Authorization header required")
		}
		result, err := tokenverify.Verify(m.parser, token, m.now)
		if err != nil {
			return res.ErrorJSON(c, http.StatusUnauthorized, domain.ErrUnauthorized.Msg)
		}
		c.Set(KeyUserID, result.UserID)
		c.Set(KeyEmail, result.Email)
		c.Set(KeyRole, result.Role)
		c.Set(KeyPermissions, result.Permissions)
		return next(c)
	}
}

// RequirePermission rejects authenticated callers lacking perm with 403.
// It must run after AuthMiddleware.Handler.
func RequirePermission(perm domain.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			perms, _ := c.Get(KeyPermissions).([]domain.Permission)
			if !domain.HasPermission(perms, perm) {
				return res.ErrorJSON(c, http.StatusForbidden, domain.ErrForbidden.Msg)
			}
			return next(c)
		}
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(c echo.Context) (string, bool) {
	authz := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func UserID(c echo.Context) string {
	id, _ := c.Get(KeyUserID).(string)
	return id
}
