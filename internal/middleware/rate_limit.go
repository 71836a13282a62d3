package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	limiterpkg "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit allows perMinute requests per authenticated user (per IP before auth)
func RateLimit(perMinute int64) echo.MiddlewareFunc {
	rate := limiterpkg.Rate{
		Period: time.Minute,
		Limit:  perMinute,
	}
	limiter := limiterpkg.New(memory.NewStore(), rate)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if id := UserID(c); id != 0 {
				key = fmt.Sprintf("user:%d", id)
			}

			ctx, err := limiter.Get(c.Request().Context(), key)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "rate limit error")
			}
			if ctx.Reached {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
