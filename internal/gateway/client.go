package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/common/config"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type client struct {
	participantID int64
	conn          *websocket.Conn
	send          chan ServerFrame
	done          chan struct{}
	closeOnce     sync.Once
}

func newClient(id int64, conn *websocket.Conn, buffer int) *client {
	return &client{
		participantID: id,
		conn:          conn,
		send:          make(chan ServerFrame, buffer),
		done:          make(chan struct{}),
	}
}

// enqueue never blocks; a full buffer drops the frame.
func (c *client) enqueue(frame ServerFrame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) readPump(cfg config.GatewayConfig, onFrame func(ClientFrame), logger *zap.Logger) {
	pongWait := 2 * cfg.PingInterval
	if cfg.ReadLimit > 0 {
		c.conn.SetReadLimit(cfg.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				logger.Debug("websocket read failed", zap.Int64("participant_id", c.participantID), zap.Error(err))
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.enqueue(ServerFrame{Type: FrameError, Text: "invalid frame"})
			continue
		}
		onFrame(frame)
	}
}

func (c *client) writePump(pingInterval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				logger.Debug("websocket write failed", zap.Int64("participant_id", c.participantID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
