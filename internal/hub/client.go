package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Documents travel whole, so
	// this bounds the shared document size too.
	maxMessageSize = 256 * 1024
)

// ClientMessage is an inbound frame from a connected editor.
type ClientMessage struct {
	Type     string `json:"type"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Client is one WebSocket connection attached to a room. The sessionID tags
// outbound edits so this connection can recognize and skip its own echoes.
// sendMu guards send against concurrent close: frames may still be in flight
// from the fan-out or a late edit rejection when the Hub detaches the client.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	roomID    uint
	userID    uint
	sessionID string

	send       chan []byte
	sendMu     sync.Mutex
	sendClosed bool
}

// NewClient creates a Client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, roomID, userID uint, sessionID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		roomID:    roomID,
		userID:    userID,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func (c *Client) RoomID() uint      { return c.roomID }
func (c *Client) UserID() uint      { return c.userID }
func (c *Client) SessionID() string { return c.sessionID }

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump pumps frames from the connection into the Hub. It owns the
// connection's read side and requests unregistration when the peer goes away.
func (c *Client) ReadPump() {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID})
	defer func() {
		c.hub.QueueMessage(HubMessage{Type: messageUnregister, Client: c})
		c.conn.Close()
		logCtx.Info("Read pump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logCtx.WithError(err).Warn("Dropping malformed client frame")
			c.SendError("malformed message")
			continue
		}
		switch msg.Type {
		case domain.EventCode, domain.EventLanguage:
		default:
			logCtx.WithField("type", msg.Type).Warn("Dropping client frame with unknown type")
			c.SendError("unknown message type")
			continue
		}

		if !c.hub.QueueMessage(HubMessage{Type: messageInbound, Client: c, Payload: msg}) {
			logCtx.Warn("Hub queue full, dropping client frame")
		}
	}
}

// WritePump pumps queued frames to the connection and keeps it alive with
// pings. It exits when the Hub closes the send channel or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).
					WithError(err).Warn("Failed to write message to websocket")
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

// SendError queues an error frame for this client only.
func (c *Client) SendError(message string) {
	payload, err := json.Marshal(map[string]string{"type": "error", "message": message})
	if err != nil {
		return
	}
	c.trySend(payload)
}

// trySend queues a frame without blocking. Frames for a detached client or a
// full queue are dropped.
func (c *Client) trySend(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once, letting WritePump drain and
// exit. Sends after this point become no-ops.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}
