// Package websocket upgrades authenticated room connections and hands them
// to the hub.
package websocket

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/hub"
	"github.com/YusufStar/code-craft/internal/service"
)

// WebSocketHandler validates the caller's membership, upgrades the
// connection and registers the resulting client with the hub.
type WebSocketHandler struct {
	upgrader          websocket.Upgrader
	hub               *hub.Hub
	permissionService *service.PermissionService
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(h *hub.Hub, permissionService *service.PermissionService) *WebSocketHandler {
	if h == nil || permissionService == nil {
		panic("all dependencies must be non-nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: restrict origins once the frontend host is pinned down.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub:               h,
		permissionService: permissionService,
	}
}

// HandleConnection handles GET /ws/room/:roomId. Only current room members
// may attach; everyone else is rejected before the upgrade.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	roomIDUint64, err := strconv.ParseUint(c.Param("roomId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room id"})
		return
	}
	roomID := uint(roomIDUint64)
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	if _, err := h.permissionService.GetPermissions(c.Request.Context(), roomID, userID); err != nil {
		if errors.Is(err, service.ErrMemberNotFound) {
			logCtx.Warn("WS Handler: Non-member tried to attach")
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this room"})
		} else {
			logCtx.WithError(err).Error("WS Handler: Failed to validate membership")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate membership"})
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, roomID, userID, uuid.NewString())
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", Client: client}) {
		logCtx.Error("WS Handler: Hub queue full, rejecting connection")
		conn.Close()
		return
	}

	client.Run()
	logCtx.WithField("session_id", client.SessionID()).Info("WS Handler: Client attached")
}
