package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ConnectionCounter reports the number of live WebSocket connections
type ConnectionCounter interface {
	ConnectionCount() int
}

// HealthCheck reports liveness along with the live connection count
func HealthCheck(connections ConnectionCounter) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "healthy",
			"service":     "stackit-api",
			"connections": connections.ConnectionCount(),
		})
	}
}
