package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncspace/backend/internal/protocol"
)

func newTestClient(h *Hub, roomID, socketID string) *Client {
	c := &Client{
		Hub:      h,
		Send:     make(chan []byte, 16),
		SocketID: socketID,
		RoomID:   roomID,
	}
	if _, ok := h.Rooms[roomID]; !ok {
		h.Rooms[roomID] = make(map[string]*Client)
	}
	h.Rooms[roomID][socketID] = c
	return c
}

func drain(t *testing.T, c *Client) []protocol.Envelope {
	t.Helper()
	var envs []protocol.Envelope
	for {
		select {
		case data := <-c.Send:
			var env protocol.Envelope
			require.NoError(t, json.Unmarshal(data, &env))
			envs = append(envs, env)
		default:
			return envs
		}
	}
}

func join(t *testing.T, h *Hub, c *Client, username, userID string) {
	t.Helper()
	data, err := protocol.Marshal(protocol.EventJoinRequest, protocol.JoinRequest{
		RoomID:   c.RoomID,
		Username: username,
		UserID:   userID,
	})
	require.NoError(t, err)
	h.route(&Message{RoomID: c.RoomID, Data: data, Sender: c})
}

func TestJoinAcceptedCarriesRoster(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h, "room-1", "sock-a")
	join(t, h, alice, "alice", "user-a")

	envs := drain(t, alice)
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.EventJoinAccepted, envs[0].Type)

	var accepted protocol.JoinAccepted
	require.NoError(t, json.Unmarshal(envs[0].Payload, &accepted))
	assert.Equal(t, "sock-a", accepted.User.SocketID)
	assert.Equal(t, "alice", accepted.User.Username)
	require.Len(t, accepted.Users, 1)
}

func TestJoinAnnouncesToExistingPeers(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h, "room-1", "sock-a")
	join(t, h, alice, "alice", "user-a")
	drain(t, alice)

	bob := newTestClient(h, "room-1", "sock-b")
	join(t, h, bob, "bob", "user-b")

	bobEnvs := drain(t, bob)
	require.Len(t, bobEnvs, 1)
	var accepted protocol.JoinAccepted
	require.NoError(t, json.Unmarshal(bobEnvs[0].Payload, &accepted))
	assert.Len(t, accepted.Users, 2, "roster includes both participants")

	aliceEnvs := drain(t, alice)
	require.Len(t, aliceEnvs, 1)
	assert.Equal(t, protocol.EventUserJoined, aliceEnvs[0].Type)
	var joined protocol.UserJoined
	require.NoError(t, json.Unmarshal(aliceEnvs[0].Payload, &joined))
	assert.Equal(t, "sock-b", joined.User.SocketID)
}

func TestSyncFileStructureIsTargeted(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h, "room-1", "sock-a")
	bob := newTestClient(h, "room-1", "sock-b")
	carol := newTestClient(h, "room-1", "sock-c")
	join(t, h, alice, "alice", "user-a")
	join(t, h, bob, "bob", "user-b")
	join(t, h, carol, "carol", "user-c")
	drain(t, alice)
	drain(t, bob)
	drain(t, carol)

	data, err := protocol.Marshal(protocol.EventSyncFileStructure, protocol.SyncFileStructure{
		SocketID:      "sock-c",
		FileStructure: json.RawMessage(`{"id":"root"}`),
	})
	require.NoError(t, err)
	h.route(&Message{RoomID: "room-1", Data: data, Sender: alice})

	assert.Empty(t, drain(t, alice))
	assert.Empty(t, drain(t, bob), "sync is never broadcast")
	carolEnvs := drain(t, carol)
	require.Len(t, carolEnvs, 1)
	assert.Equal(t, protocol.EventSyncFileStructure, carolEnvs[0].Type)
}

func TestFanOutExcludesSender(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h, "room-1", "sock-a")
	bob := newTestClient(h, "room-1", "sock-b")
	join(t, h, alice, "alice", "user-a")
	join(t, h, bob, "bob", "user-b")
	drain(t, alice)
	drain(t, bob)

	data, err := protocol.Marshal(protocol.EventFileUpdated, protocol.FileUpdated{FileID: "f1", NewContent: "x"})
	require.NoError(t, err)
	h.route(&Message{RoomID: "room-1", Data: data, Sender: alice})

	assert.Empty(t, drain(t, alice), "sender never receives its own event back")
	bobEnvs := drain(t, bob)
	require.Len(t, bobEnvs, 1)
	assert.Equal(t, protocol.EventFileUpdated, bobEnvs[0].Type)
}

func TestUnjoinedClientsReceiveNothing(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h, "room-1", "sock-a")
	lurker := newTestClient(h, "room-1", "sock-l")
	join(t, h, alice, "alice", "user-a")
	drain(t, alice)

	data, _ := protocol.Marshal(protocol.EventFileUpdated, protocol.FileUpdated{FileID: "f1", NewContent: "x"})
	h.route(&Message{RoomID: "room-1", Data: data, Sender: alice})
	assert.Empty(t, drain(t, lurker))
}

func TestChatBecomesReceiveMessage(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h, "room-1", "sock-a")
	bob := newTestClient(h, "room-1", "sock-b")
	join(t, h, alice, "alice", "user-a")
	join(t, h, bob, "bob", "user-b")
	drain(t, alice)
	drain(t, bob)

	data, err := protocol.Marshal(protocol.EventSendMessage, protocol.ChatMessage{
		User: alice.User(),
		Text: "hello",
	})
	require.NoError(t, err)
	h.route(&Message{RoomID: "room-1", Data: data, Sender: alice})

	bobEnvs := drain(t, bob)
	require.Len(t, bobEnvs, 1)
	assert.Equal(t, protocol.EventReceiveMessage, bobEnvs[0].Type)
	var msg protocol.ChatMessage
	require.NoError(t, json.Unmarshal(bobEnvs[0].Payload, &msg))
	assert.Equal(t, "hello", msg.Text)
}

func TestDisconnectBroadcastsUserDisconnected(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h, "room-1", "sock-a")
	bob := newTestClient(h, "room-1", "sock-b")
	join(t, h, alice, "alice", "user-a")
	join(t, h, bob, "bob", "user-b")
	drain(t, alice)
	drain(t, bob)

	h.disconnect(bob)
	aliceEnvs := drain(t, alice)
	require.Len(t, aliceEnvs, 1)
	assert.Equal(t, protocol.EventUserDisconnected, aliceEnvs[0].Type)
	var left protocol.UserDisconnected
	require.NoError(t, json.Unmarshal(aliceEnvs[0].Payload, &left))
	assert.Equal(t, "sock-b", left.User.SocketID)

	assert.NotContains(t, h.Rooms["room-1"], "sock-b")
}

func TestEmptyRoomIsDropped(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h, "room-1", "sock-a")
	join(t, h, alice, "alice", "user-a")
	h.disconnect(alice)
	assert.NotContains(t, h.Rooms, "room-1")
}

func TestMalformedFrameIsDropped(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h, "room-1", "sock-a")
	bob := newTestClient(h, "room-1", "sock-b")
	join(t, h, alice, "alice", "user-a")
	join(t, h, bob, "bob", "user-b")
	drain(t, alice)
	drain(t, bob)

	h.route(&Message{RoomID: "room-1", Data: []byte("{not json"), Sender: alice})
	assert.Empty(t, drain(t, bob))
}
