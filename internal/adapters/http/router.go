package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/JaiminPatel345/glowup-sub002/config"
	v1 "github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/api/v1"
	internalhttp "github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/internal"
	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

type Router struct {
	cfg       *config.Config
	logger    pkglog.Logger
	apiRouter *v1.Router
	general   echo.MiddlewareFunc
	ready     internalhttp.ReadyFunc
}

// NewRouter wires the API under cfg.HTTPBasePath. general, when non-nil, guards every
// API route; ready backs the /ready probe.
func NewRouter(cfg *config.Config, logger pkglog.Logger, apiRouter *v1.Router, general echo.MiddlewareFunc, ready internalhttp.ReadyFunc) *Router {
	return &Router{cfg: cfg, logger: logger, apiRouter: apiRouter, general: general, ready: ready}
}

func (r *Router) Setup(e *echo.Echo) {
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			r.logger.Info().
				Str("trace_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: r.cfg.CORSAllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit("1M"))

	internalhttp.Register(e, r.ready)
	apiGroup := e.Group(r.cfg.HTTPBasePath)
	if r.general != nil {
		apiGroup.Use(r.general)
	}
	r.apiRouter.Register(apiGroup)
}
