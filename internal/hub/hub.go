// Package hub fans realtime sync events out to attached WebSocket clients
// and feeds inbound edits into the collaboration service. Outbound events
// arrive over a per-room Redis subscription, so every server instance sees
// the same stream in the same order.
package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/domain"
	redisstate "github.com/YusufStar/code-craft/internal/infra/state/redis"
	"github.com/YusufStar/code-craft/internal/service"
)

const (
	messageRegister   = "register"
	messageUnregister = "unregister"
	messageInbound    = "inbound"
)

// HubMessage is the envelope Clients use to talk to the Hub loop.
type HubMessage struct {
	Type    string
	Client  *Client
	Payload ClientMessage
}

type inboundMessage struct {
	client *Client
	msg    ClientMessage
}

// roomSession holds the per-room fan-out state: the attached clients, the
// Redis subscription feeding them, and the inbound queue that applies edits
// one at a time in arrival order.
type roomSession struct {
	clients map[*Client]bool
	inbound chan inboundMessage
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
}

// Hub coordinates client attachment and message flow. Business rules live in
// the services; the Hub only routes.
type Hub struct {
	messageChan chan HubMessage

	rooms   map[uint]*roomSession
	roomsMu sync.RWMutex

	collabService *service.CollaborationService
	roomService   *service.RoomService
	redisClient   *redis.Client
	keyPrefix     string
}

// NewHub creates a Hub.
func NewHub(collabService *service.CollaborationService, roomService *service.RoomService, redisClient *redis.Client, keyPrefix string) *Hub {
	if collabService == nil || roomService == nil || redisClient == nil {
		panic("all dependencies must be non-nil for Hub")
	}
	return &Hub{
		messageChan:   make(chan HubMessage, 512),
		rooms:         make(map[uint]*roomSession),
		collabService: collabService,
		roomService:   roomService,
		redisClient:   redisClient,
		keyPrefix:     keyPrefix,
	}
}

// Run is the Hub's main loop. It should run in its own goroutine and exits
// when the message channel closes.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running")

	for msg := range h.messageChan {
		switch msg.Type {
		case messageRegister:
			h.registerClient(msg.Client)
		case messageUnregister:
			h.unregisterClient(msg.Client)
		case messageInbound:
			h.routeInbound(msg)
		default:
			log.Warnf("Received unknown hub message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down")
}

// QueueMessage enqueues a message for the Hub loop without blocking. Returns
// false when the queue is full.
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// registerClient attaches a client to its room session, creating the session
// (and its Redis subscription) on first attach, then seeds the client with a
// full snapshot.
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": client.UserID()})

	h.roomsMu.Lock()
	session, ok := h.rooms[roomID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		session = &roomSession{
			clients: make(map[*Client]bool),
			inbound: make(chan inboundMessage, 256),
			pubsub:  h.redisClient.Subscribe(ctx, redisstate.EventChannel(h.keyPrefix, roomID)),
			cancel:  cancel,
		}
		h.rooms[roomID] = session
		go h.subscribeLoop(roomID, session)
		go h.inboundLoop(roomID, session)
		logCtx.Info("Room session started")
	}
	session.clients[client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to hub")

	go h.sendInitialSnapshot(client)
}

// unregisterClient detaches a client. The disconnect doubles as an implicit
// room departure, and the session is torn down once the last client is gone.
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": client.UserID()})

	h.roomsMu.Lock()
	session, ok := h.rooms[roomID]
	if !ok || !session.clients[client] {
		h.roomsMu.Unlock()
		return
	}
	delete(session.clients, client)
	client.closeSend()
	empty := len(session.clients) == 0
	if empty {
		delete(h.rooms, roomID)
	}
	h.roomsMu.Unlock()

	if empty {
		h.stopSession(session)
		logCtx.Info("Room session stopped, last client gone")
	}

	// Disconnecting is leaving. The departure broadcast happens inside the
	// service; a client that already left explicitly is a no-op here.
	go func() {
		if _, err := h.roomService.LeaveRoom(context.Background(), roomID, client.UserID()); err != nil &&
			!errors.Is(err, service.ErrNotMember) && !errors.Is(err, service.ErrRoomNotFound) {
			logCtx.WithError(err).Error("Implicit leave on disconnect failed")
		}
	}()
	logCtx.Info("Client unregistered from hub")
}

// routeInbound moves a client frame onto its room's FIFO queue so edits from
// one room apply in arrival order.
func (h *Hub) routeInbound(msg HubMessage) {
	if msg.Client == nil {
		return
	}
	h.roomsMu.RLock()
	session, ok := h.rooms[msg.Client.RoomID()]
	h.roomsMu.RUnlock()
	if !ok {
		return
	}
	select {
	case session.inbound <- inboundMessage{client: msg.Client, msg: msg.Payload}:
	default:
		logrus.WithFields(logrus.Fields{"room_id": msg.Client.RoomID(), "user_id": msg.Client.UserID()}).
			Warn("Room inbound queue full, dropping client frame")
	}
}

// inboundLoop applies queued client edits one at a time.
func (h *Hub) inboundLoop(roomID uint, session *roomSession) {
	for m := range session.inbound {
		h.applyInbound(roomID, m)
	}
}

func (h *Hub) applyInbound(roomID uint, m inboundMessage) {
	ctx := context.Background()
	var err error
	switch m.msg.Type {
	case domain.EventCode:
		err = h.collabService.ApplyCode(ctx, roomID, m.client.UserID(), m.client.SessionID(), m.msg.Code)
	case domain.EventLanguage:
		err = h.collabService.ApplyLanguage(ctx, roomID, m.client.UserID(), m.client.SessionID(), m.msg.Language, m.msg.Version)
	default:
		return
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": m.client.UserID(), "type": m.msg.Type}).
			WithError(err).Warn("Client edit rejected")
		m.client.SendError(err.Error())
	}
}

// subscribeLoop forwards the room's Redis event stream to attached clients.
// It exits when the subscription is closed during session teardown.
func (h *Hub) subscribeLoop(roomID uint, session *roomSession) {
	for msg := range session.pubsub.Channel() {
		h.deliver(roomID, []byte(msg.Payload))
	}
	logrus.WithField("room_id", roomID).Debug("Room subscription closed")
}

// deliver fans one event out to the room's clients. Events tagged with an
// origin are skipped for the originating session only; everything else goes
// to everyone. A departure event also detaches the departed user's own
// connections, so an ex-member stops receiving room traffic.
func (h *Hub) deliver(roomID uint, payload []byte) {
	var event domain.Event
	if err := event.Unmarshal(payload); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Dropping malformed sync event")
		return
	}

	h.roomsMu.RLock()
	session, ok := h.rooms[roomID]
	recipients := make([]*Client, 0)
	departed := make([]*Client, 0)
	if ok {
		for client := range session.clients {
			if event.Type == domain.EventLeaveRoom && event.UserID != 0 && event.UserID == client.UserID() {
				departed = append(departed, client)
			}
			if event.Origin != "" && event.Origin == client.SessionID() {
				continue
			}
			recipients = append(recipients, client)
		}
	}
	h.roomsMu.RUnlock()

	for _, client := range recipients {
		if !client.trySend(payload) {
			logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": client.UserID()}).
				Warn("Client send channel unavailable during broadcast, skipping client")
		}
	}

	// The departure frame is queued first so the leaving client sees its own
	// exit before the connection is torn down.
	for _, client := range departed {
		h.QueueMessage(HubMessage{Type: messageUnregister, Client: client})
	}
}

// sendInitialSnapshot pushes the full current room view to a newly attached
// client so it starts from the same document as everyone else.
func (h *Hub) sendInitialSnapshot(client *Client) {
	if client == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": client.RoomID(), "user_id": client.UserID()})

	view, err := h.collabService.Snapshot(context.Background(), client.RoomID())
	if err != nil {
		logCtx.WithError(err).Error("Failed to load initial snapshot")
		client.SendError("failed to load room state")
		return
	}

	event := &domain.Event{Type: domain.EventSync, RoomID: client.RoomID(), Room: view}
	payload, err := event.Marshal()
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal initial snapshot")
		return
	}

	if client.trySend(payload) {
		logCtx.Info("Initial snapshot sent")
	} else {
		logCtx.Warn("Client send channel unavailable when sending snapshot")
	}
}

// StopAllSubscriptions tears every room session down, used on shutdown.
func (h *Hub) StopAllSubscriptions() {
	h.roomsMu.Lock()
	sessions := make([]*roomSession, 0, len(h.rooms))
	for roomID, session := range h.rooms {
		sessions = append(sessions, session)
		for client := range session.clients {
			client.closeSend()
		}
		delete(h.rooms, roomID)
	}
	h.roomsMu.Unlock()

	for _, session := range sessions {
		h.stopSession(session)
	}
}

func (h *Hub) stopSession(session *roomSession) {
	session.cancel()
	if err := session.pubsub.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close room subscription")
	}
	close(session.inbound)
}
