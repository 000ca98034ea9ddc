package chathub

import (
	"context"
	"sync"
	"time"

	"astrochat/backend/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBufferSize = 256
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	user *models.User
	conn *websocket.Conn
	hub  *ManagerService
	send chan models.Event

	mu     sync.Mutex
	closed bool
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, user *models.User) *WebSocketClient {
	return &WebSocketClient{
		user: user,
		conn: conn,
		hub:  hub,
		send: make(chan models.Event, sendBufferSize),
	}
}

func (c *WebSocketClient) UserID() string     { return c.user.ID }
func (c *WebSocketClient) User() *models.User { return c.user }

func (c *WebSocketClient) Send(evt models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- evt:
		return true
	default:
		c.hub.logger.Warn("outbound buffer full, dropping event",
			zap.String("user_id", c.user.ID),
			zap.String("event", evt.Name))
		c.hub.metrics.EventDropped()
		return false
	}
}

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump decodes and dispatches frames one at a time, so a connection's
// operations run in arrival order.
func (c *WebSocketClient) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.hub.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Info("websocket read failed",
					zap.String("user_id", c.user.ID),
					zap.Error(err))
			}
			break
		}
		c.hub.HandleFrame(ctx, c, message)
	}
}

// writePump (маленька 'w') читає події з каналу send і записує їх у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				c.hub.logger.Debug("websocket write failed",
					zap.String("user_id", c.user.ID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
