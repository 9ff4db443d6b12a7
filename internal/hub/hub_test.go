package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/repository"
	"github.com/YusufStar/code-craft/internal/repository/mocks"
	"github.com/YusufStar/code-craft/internal/service"
)

func newTestHub(collab *service.CollaborationService) *Hub {
	return &Hub{
		messageChan:   make(chan HubMessage, 16),
		rooms:         make(map[uint]*roomSession),
		collabService: collab,
	}
}

func newTestClient(roomID, userID uint, sessionID string) *Client {
	return &Client{
		roomID:    roomID,
		userID:    userID,
		sessionID: sessionID,
		send:      make(chan []byte, 8),
	}
}

func attach(h *Hub, clients ...*Client) {
	session := &roomSession{clients: make(map[*Client]bool)}
	for _, c := range clients {
		session.clients[c] = true
	}
	h.rooms[clients[0].RoomID()] = session
}

func received(c *Client) [][]byte {
	var frames [][]byte
	for {
		select {
		case payload := <-c.send:
			frames = append(frames, payload)
		default:
			return frames
		}
	}
}

func TestDeliver_SuppressesOriginatingSessionOnly(t *testing.T) {
	h := newTestHub(nil)
	origin := newTestClient(7, 1, "session-a")
	other := newTestClient(7, 2, "session-b")
	attach(h, origin, other)

	event := &domain.Event{Type: domain.EventCode, RoomID: 7, Origin: "session-a", Code: "const x = 1;"}
	payload, err := event.Marshal()
	require.NoError(t, err)

	h.deliver(7, payload)

	assert.Empty(t, received(origin))
	require.Len(t, received(other), 1)
}

func TestDeliver_UntaggedEventReachesEveryone(t *testing.T) {
	h := newTestHub(nil)
	invoker := newTestClient(7, 1, "session-a")
	other := newTestClient(7, 2, "session-b")
	attach(h, invoker, other)

	event := &domain.Event{Type: domain.EventOutput, RoomID: 7, Output: "4"}
	payload, err := event.Marshal()
	require.NoError(t, err)

	h.deliver(7, payload)

	// Output has no origin tag, so the invoker sees it too.
	assert.Len(t, received(invoker), 1)
	assert.Len(t, received(other), 1)
}

func TestDeliver_SnapshotRebroadcastIsIdempotent(t *testing.T) {
	h := newTestHub(nil)
	client := newTestClient(7, 2, "session-b")
	attach(h, client)

	view := &domain.RoomView{
		ID:       7,
		RoomCode: "ABC123",
		Participants: []domain.ParticipantView{
			{UserID: 1, Username: "alice", CanEdit: true, CanPlay: true, IsLead: true},
			{UserID: 2, Username: "bob"},
		},
		Permissions: map[uint]domain.Capability{1: domain.FullCapability(), 2: {}},
		Code:        "print(2+2)",
		Language:    "python",
		Version:     "3.10.0",
	}
	event := &domain.Event{Type: domain.EventSync, RoomID: 7, Room: view}
	payload, err := event.Marshal()
	require.NoError(t, err)

	h.deliver(7, payload)
	h.deliver(7, payload)

	frames := received(client)
	require.Len(t, frames, 2)

	// A client replaces its local state with each snapshot, so applying the
	// frame twice must land on the same state as applying it once.
	var once domain.Event
	require.NoError(t, once.Unmarshal(frames[0]))
	local := *once.Room

	var again domain.Event
	require.NoError(t, again.Unmarshal(frames[1]))
	local = *again.Room

	assert.Equal(t, *once.Room, local)
	assert.Equal(t, frames[0], frames[1])
}

func TestDeliver_DetachesDepartedUsersClients(t *testing.T) {
	h := newTestHub(nil)
	departed := newTestClient(7, 2, "session-b")
	remaining := newTestClient(7, 1, "session-a")
	attach(h, departed, remaining)

	event := &domain.Event{Type: domain.EventLeaveRoom, RoomID: 7, UserID: 2, Room: &domain.RoomView{ID: 7}}
	payload, err := event.Marshal()
	require.NoError(t, err)

	h.deliver(7, payload)

	// Both still get the departure frame itself.
	assert.Len(t, received(departed), 1)
	assert.Len(t, received(remaining), 1)

	// The departed user's connection is queued for unregistration so it
	// stops receiving room traffic.
	select {
	case msg := <-h.messageChan:
		assert.Equal(t, messageUnregister, msg.Type)
		assert.Same(t, departed, msg.Client)
	default:
		t.Fatal("expected an unregister message for the departed client")
	}
	assert.Empty(t, h.messageChan)
}

func TestDeliver_SkipsDetachedClientWithoutPanic(t *testing.T) {
	h := newTestHub(nil)
	detached := newTestClient(7, 1, "session-a")
	active := newTestClient(7, 2, "session-b")
	attach(h, detached, active)
	detached.closeSend()

	event := &domain.Event{Type: domain.EventOutput, RoomID: 7, Output: "done"}
	payload, err := event.Marshal()
	require.NoError(t, err)

	assert.NotPanics(t, func() { h.deliver(7, payload) })
	assert.Len(t, received(active), 1)
}

func TestApplyInbound_LateEditFromDepartedMemberDoesNotPanic(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	collab := service.NewCollaborationService(mockRoomRepo, mockUserRepo, mockStateRepo, nil, service.NewRoomLocker())
	h := newTestHub(collab)

	// The member left while this edit sat in the room queue; the membership
	// check rejects it.
	mockRoomRepo.On("FindByID", mock.Anything, uint(7)).Return(&domain.Room{ID: 7}, nil).Once()
	mockRoomRepo.On("FindMember", mock.Anything, uint(7), uint(2)).
		Return(nil, repository.ErrMemberNotFound).Once()

	client := newTestClient(7, 2, "session-b")
	client.closeSend()

	assert.NotPanics(t, func() {
		h.applyInbound(7, inboundMessage{client: client, msg: ClientMessage{Type: domain.EventCode, Code: "x"}})
	})
	mockRoomRepo.AssertExpectations(t)
	mockStateRepo.AssertNotCalled(t, "SetCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendError_AfterDetachIsDropped(t *testing.T) {
	client := newTestClient(7, 2, "session-b")
	client.closeSend()

	assert.NotPanics(t, func() { client.SendError("edit rejected") })
	assert.False(t, client.trySend([]byte("late frame")))
}
