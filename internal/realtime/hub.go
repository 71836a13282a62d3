package realtime

import (
	"log/slog"

	"github.com/anonto42/stackit/backend/internal/models"
)

// Hub fans events out to every open handle of a user
type Hub struct {
	registry *Registry
	logger   *slog.Logger
}

func NewHub(registry *Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{registry: registry, logger: logger.With("component", "hub")}
}

// Deliver queues the event on each of the user's handles and returns how many
// accepted it. Offline users get nothing and that is not an error.
func (h *Hub) Deliver(userID uint, event string, payload any) int {
	handles := h.registry.HandlesFor(userID)
	if len(handles) == 0 {
		return 0
	}

	ev := Event{Name: event, Data: payload}
	delivered := 0
	for _, handle := range handles {
		if handle.Send(ev) {
			delivered++
			continue
		}
		h.logger.Warn("event dropped, connection backed up",
			"user_id", userID, "handle", handle.ID(), "event", event)
	}
	return delivered
}

// PushNotification sends a stored notification to its recipient
func (h *Hub) PushNotification(n *models.Notification) {
	h.Deliver(n.UserID, models.EventNewNotification, n)
}
