package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16 << 10
)

// Client is the Handle backed by a WebSocket connection. Writes go through a
// buffered queue drained by a single writer goroutine, so events reach the
// socket in the order they were queued.
type Client struct {
	id      string
	userID  uint
	conn    *websocket.Conn
	send    chan Event
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newClient(userID uint, conn *websocket.Conn, cfg GatewayConfig, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:      id,
		userID:  userID,
		conn:    conn,
		send:    make(chan Event, cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.EventsPerSecond), cfg.EventBurst),
		logger:  logger.With("user_id", userID, "handle", id),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close stops the writer, which sends a close frame and closes the socket.
// Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
