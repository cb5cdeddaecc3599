package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/apperrors"
	"github.com/Pranaya-sht/waste-management-system/internal/auth"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendTimeout    = 5 * time.Second

	// DefaultSendBuffer is the per-client outbound queue length
	DefaultSendBuffer = 256
)

// Client is one websocket connection subscribed to a single room
type Client struct {
	room      string
	principal auth.Principal
	conn      *websocket.Conn
	hub       *Hub
	logger    *zap.SugaredLogger

	send      chan any
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection. buffer <= 0 uses DefaultSendBuffer.
func NewClient(hub *Hub, conn *websocket.Conn, room string, p auth.Principal, buffer int, logger *zap.SugaredLogger) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		room:      room,
		principal: p,
		conn:      conn,
		hub:       hub,
		logger:    logger,
		send:      make(chan any, buffer),
		done:      make(chan struct{}),
	}
}

// Deliver queues a frame without blocking
func (c *Client) Deliver(frame any) bool {
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

// Close stops the write pump, which closes the connection
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Run joins the room and pumps frames until the connection ends. It blocks.
func (c *Client) Run(ctx context.Context) {
	c.hub.Join(c.room, c)
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Leave(c.room, c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warnw("Chat read error", "room", c.room, "user_id", c.principal.UserID, "error", err)
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.Deliver(NewErrorFrame(apperrors.Validation("malformed frame")))
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		_, err = c.hub.Send(sendCtx, c.room, c.principal, in)
		cancel()
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindInternal {
				c.logger.Errorw("Chat send failed", "room", c.room, "user_id", c.principal.UserID, "error", err)
			}
			c.Deliver(NewErrorFrame(err))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
