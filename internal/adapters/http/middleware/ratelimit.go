package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
	"github.com/JaiminPatel345/glowup-sub002/internal/ratelimit"
	res "github.com/JaiminPatel345/glowup-sub002/pkg/http"
)

type KeyFunc func(c echo.Context) string

// ByIP keys requests by route class and client address.
func ByIP(class string) KeyFunc {
	return func(c echo.Context) string { return class + ":" + c.RealIP() }
}

// RateLimit counts every request against l.
func RateLimit(l ratelimit.Limiter, key KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := l.Allow(key(c))
			setRateHeaders(c, d)
			if !d.Allowed {
				return tooManyRequests(c, d)
			}
			return next(c)
		}
	}
}

// FailureRateLimit counts only requests answered with a status >= 400, so
// successful logins never use up the allowance. A slot is reserved before the
// handler runs and handed back on success, so concurrent attempts cannot
// overrun the window.
func FailureRateLimit(l ratelimit.Limiter, key KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			k := key(c)
			d := l.Allow(k)
			if !d.Allowed {
				setRateHeaders(c, d)
				return tooManyRequests(c, d)
			}
			err := next(c)
			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			if status < http.StatusBadRequest {
				l.Undo(k)
			}
			return err
		}
	}
}

// GeneralRateLimit wraps echo's rate limiter middleware around l.
func GeneralRateLimit(l ratelimit.Limiter) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: ratelimit.EchoStore{Limiter: l},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return "general:" + c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return res.ErrorJSON(c, http.StatusForbidden, domain.ErrForbidden.Msg)
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return res.ErrorJSON(c, http.StatusTooManyRequests, domain.ErrRateLimited.Msg)
		},
	})
}

func setRateHeaders(c echo.Context, d ratelimit.Decision) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func tooManyRequests(c echo.Context, d ratelimit.Decision) error {
	retry := d.RetryAfter(time.Now())
	c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(int(retry/time.Second)))
	return res.ErrorJSON(c, http.StatusTooManyRequests, domain.ErrRateLimited.Msg)
}
