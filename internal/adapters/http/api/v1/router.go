package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/api/v1/handlers"
	"github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/middleware"
	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
)

// Limits holds the per-route-class limiter middlewares. Nil entries are skipped.
type Limits struct {
	Login    echo.MiddlewareFunc
	Register echo.MiddlewareFunc
	Reset    echo.MiddlewareFunc
}

type Router struct {
	handlers *handlers.AuthHandler
	authMW   echo.MiddlewareFunc
	limits   Limits
}

func NewRouter(h *handlers.AuthHandler, authMW echo.MiddlewareFunc, limits Limits) *Router {
	return &Router{handlers: h, authMW: authMW, limits: limits}
}

func (r *Router) Register(g *echo.Group) {
	auth := g.Group("/auth")
	auth.POST("/register", r.handlers.Register, use(r.limits.Register)...)
	auth.POST("/login", r.handlers.Login, use(r.limits.Login)...)
	auth.POST("/refresh", r.handlers.Refresh)
	auth.POST("/logout", r.handlers.Logout)
	auth.POST("/reset-password", r.handlers.RequestPasswordReset, use(r.limits.Reset)...)
	auth.POST("/reset-password/confirm", r.handlers.ConfirmPasswordReset, use(r.limits.Reset)...)
	auth.POST("/verify-email", r.handlers.VerifyEmail)
	auth.GET("/validate", r.handlers.Validate)

	protected := auth.Group("", r.authMW)
	protected.POST("/change-password", r.handlers.ChangePassword)
	protected.GET("/me", r.handlers.Me)
	protected.PATCH("/me", r.handlers.UpdateMe)
	protected.DELETE("/me", r.handlers.DeleteMe)

	admin := g.Group("/users", r.authMW, middleware.RequirePermission(domain.PermUsersManage))
	admin.POST("/:id/deactivate", r.handlers.DeactivateUser)
}

func use(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
