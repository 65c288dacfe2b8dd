package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/pablasso/wiggum/internal/board"
	"github.com/pablasso/wiggum/internal/status"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// socketMessage is pushed to websocket clients. Exactly one of Status and
// Error is set.
type socketMessage struct {
	Type   string           `json:"type"`
	Status *status.Snapshot `json:"status,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// statusSocket upgrades to a websocket and pushes a snapshot immediately
// and then every interval until the client goes away.
func statusSocket(collector *status.Collector, logger *log.Logger, interval time.Duration) echo.HandlerFunc {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return nil
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request().Context())
		defer cancel()

		// Clients never send anything we act on; reading detects the close.
		conn.SetReadLimit(maxMessageSize)
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						logger.WithError(err).Debug("websocket read failed")
					}
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := pushStatus(ctx, conn, collector); err != nil {
				logger.WithError(err).Debug("websocket write failed")
				return nil
			}
			select {
			case <-ctx.Done():
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			case <-ticker.C:
			}
		}
	}
}

func pushStatus(ctx context.Context, conn *websocket.Conn, collector *status.Collector) error {
	msg := socketMessage{Type: "status"}
	snap, err := collector.Collect(ctx)
	switch {
	case errors.Is(err, board.ErrNotFound):
		msg = socketMessage{Type: "error", Error: "Kanban file not found"}
	case err != nil:
		msg = socketMessage{Type: "error", Error: err.Error()}
	default:
		msg.Status = snap
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
