package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/service"
)

// RoomHandler exposes room lifecycle and permission operations over HTTP.
type RoomHandler struct {
	roomService       *service.RoomService
	permissionService *service.PermissionService
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(roomService *service.RoomService, permissionService *service.PermissionService) *RoomHandler {
	if roomService == nil || permissionService == nil {
		panic("all dependencies must be non-nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, permissionService: permissionService}
}

// currentUserID reads the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return 0, false
	}
	userID, ok := v.(uint)
	if !ok {
		logrus.Errorf("Invalid user_id type in context: %T", v)
		ErrorResponse(c, http.StatusInternalServerError, "Invalid authentication context")
		return 0, false
	}
	return userID, true
}

// roomIDParam parses the :roomId path parameter.
func roomIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("roomId"), 10, 32)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid room id")
		return 0, false
	}
	return uint(id), true
}

// CreateRoomRequest is the room creation input.
type CreateRoomRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=100"`
	IsPrivate bool   `json:"is_private"`
	Password  string `json:"password"`
}

// CreateRoom handles POST /api/rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	view, err := h.roomService.CreateRoom(c.Request.Context(), userID, req.Name, req.IsPrivate, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, view)
}

// JoinRoomRequest is the join input.
type JoinRoomRequest struct {
	RoomCode string `json:"room_code" binding:"required,len=6"`
	Password string `json:"password"`
}

// JoinRoom handles POST /api/rooms/join.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: room_code required")
		return
	}

	view, err := h.roomService.JoinRoom(c.Request.Context(), userID, req.RoomCode, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view)
}

// LeaveRoom handles POST /api/rooms/:roomId/leave. Leaving as the last member
// deletes the room, in which case no view is returned.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	view, err := h.roomService.LeaveRoom(c.Request.Context(), roomID, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if view == nil {
		SuccessResponse(c, http.StatusOK, gin.H{"message": "Room deleted"})
		return
	}
	SuccessResponse(c, http.StatusOK, view)
}

// GetRoom handles GET /api/rooms/:roomId.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	view, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view)
}

// ListMine handles GET /api/rooms/mine.
func (h *RoomHandler) ListMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	rooms, err := h.roomService.ListRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// GetPermissions handles GET /api/rooms/:roomId/permissions. It returns the
// caller's own capability set, or another member's when a user_id query
// parameter is given.
func (h *RoomHandler) GetPermissions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	if raw := c.Query("user_id"); raw != "" {
		target, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid user id")
			return
		}
		userID = uint(target)
	}

	caps, err := h.permissionService.GetPermissions(c.Request.Context(), roomID, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, caps)
}

// UpdatePermissionsRequest replaces a member's capability set in full.
type UpdatePermissionsRequest struct {
	UserID  uint `json:"user_id" binding:"required"`
	CanEdit bool `json:"can_edit"`
	CanPlay bool `json:"can_play"`
	IsLead  bool `json:"is_lead"`
}

// UpdatePermissions handles PUT /api/rooms/:roomId/permissions.
func (h *RoomHandler) UpdatePermissions(c *gin.Context) {
	actingUserID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var req UpdatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	caps := domain.Capability{CanEdit: req.CanEdit, CanPlay: req.CanPlay, IsLead: req.IsLead}
	view, err := h.permissionService.UpdatePermissions(c.Request.Context(), roomID, actingUserID, req.UserID, caps)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view)
}
