package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/blanball/backend/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// TokenValidator resolves a session token to a user id.
type TokenValidator func(token string) (userID, role string, err error)

// Client represents a single WebSocket connection on one channel.
type Client struct {
	ID      string
	Channel string
	UserID  uuid.UUID // uuid.Nil on the general room for anonymous clients
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	logger  *zap.Logger
}

// ServeNotifications upgrades an authenticated connection onto the caller's user channel.
func ServeNotifications(hub *Hub, logger *zap.Logger, validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.BadRequest(c, "token required")
			return
		}
		userIDStr, _, err := validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		serve(c, hub, logger, UserChannel(userID), userID)
	}
}

// ServeGeneral upgrades a connection onto the general broadcast room.
func ServeGeneral(hub *Hub, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		serve(c, hub, logger, GeneralChannel, uuid.Nil)
	}
}

func serve(c *gin.Context, hub *Hub, logger *zap.Logger, channel string, userID uuid.UUID) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		ID:      uuid.New().String(),
		Channel: channel,
		UserID:  userID,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		logger:  logger,
	}
	hub.Register(client)
	go client.writePump()
	client.readPump()
}

// readPump only keeps the connection alive; clients have nothing to say on push channels.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.send)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
