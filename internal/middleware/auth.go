package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// UserIDKey is the echo context key holding the authenticated user id
const UserIDKey = "userID"

// TokenVerifier turns a bearer credential into a user id. The same verifier
// guards the REST API and the WebSocket handshake.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (uint, error)
}

// ErrUserBanned is returned by verifiers for a valid credential whose account is suspended
var ErrUserBanned = errors.New("user is banned")

type activeUsers struct {
	verifier TokenVerifier
	users    UserGetter
}

// RejectBanned wraps a verifier so credentials of banned or deleted users
// stop working immediately, without waiting for the token to expire.
func RejectBanned(verifier TokenVerifier, users UserGetter) TokenVerifier {
	return &activeUsers{verifier: verifier, users: users}
}

func (v *activeUsers) VerifyToken(ctx context.Context, token string) (uint, error) {
	userID, err := v.verifier.VerifyToken(ctx, token)
	if err != nil {
		return 0, err
	}
	user, err := v.users.GetUserByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.Banned {
		return 0, ErrUserBanned
	}
	return userID, nil
}

// AuthMiddleware requires a valid "Authorization: Bearer <token>" header
func AuthMiddleware(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
			}

			userID, err := verifier.VerifyToken(c.Request().Context(), strings.TrimSpace(parts[1]))
			if errors.Is(err, ErrUserBanned) {
				return echo.NewHTTPError(http.StatusForbidden, "Account suspended")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// UserID returns the authenticated user id, or 0 outside AuthMiddleware
func UserID(c echo.Context) uint {
	id, _ := c.Get(UserIDKey).(uint)
	return id
}

type UserGetter interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// RequireAdmin rejects callers whose role is not admin
func RequireAdmin(users UserGetter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := users.GetUserByID(c.Request().Context(), UserID(c))
			if err != nil || !user.IsAdmin() {
				return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
			}
			return next(c)
		}
	}
}
