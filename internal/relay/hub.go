// Package relay fans room events out between participants. The relay holds
// no authoritative room state: it accepts joins, routes targeted sync
// messages, and rebroadcasts everything else to the rest of the room in
// per-sender FIFO order.
package relay

import (
	"encoding/json"
	"log"

	"syncspace/backend/internal/protocol"
)

// Message is one inbound frame together with its sender.
type Message struct {
	RoomID string
	Data   []byte
	Sender *Client
}

// Hub owns every connected client. All roster and routing decisions run on
// the single Run loop, which is what preserves per-sender ordering.
type Hub struct {
	Rooms      map[string]map[string]*Client // roomID -> socketID -> client
	Broadcast  chan *Message
	Register   chan *Client
	Unregister chan *Client
}

// NewHub returns an empty hub; call Run on its own goroutine.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]map[string]*Client),
		Broadcast:  make(chan *Message),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run processes register/unregister/broadcast events until the process
// exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			if _, ok := h.Rooms[client.RoomID]; !ok {
				h.Rooms[client.RoomID] = make(map[string]*Client)
			}
			h.Rooms[client.RoomID][client.SocketID] = client
			log.Printf("[Hub] Socket %s connected to room %s", client.SocketID, client.RoomID)

		case client := <-h.Unregister:
			h.disconnect(client)

		case message := <-h.Broadcast:
			h.route(message)
		}
	}
}

func (h *Hub) disconnect(client *Client) {
	room, ok := h.Rooms[client.RoomID]
	if !ok {
		return
	}
	if current, ok := room[client.SocketID]; !ok || current != client {
		return
	}
	delete(room, client.SocketID)
	close(client.Send)
	log.Printf("[Hub] %s left room %s", client.Username, client.RoomID)

	if len(room) == 0 {
		delete(h.Rooms, client.RoomID)
		return
	}
	if client.Joined {
		h.fanOut(client.RoomID, nil, mustMarshal(protocol.EventUserDisconnected, protocol.UserDisconnected{
			User: client.User(),
		}))
	}
}

func (h *Hub) route(message *Message) {
	var env protocol.Envelope
	if err := json.Unmarshal(message.Data, &env); err != nil {
		log.Printf("[Hub] Dropping malformed frame from %s: %v", message.Sender.SocketID, err)
		return
	}

	switch env.Type {
	case protocol.EventJoinRequest:
		h.handleJoin(message.Sender, env.Payload)

	case protocol.EventSyncFileStructure:
		// Targeted at one socket, never broadcast.
		var sync protocol.SyncFileStructure
		if err := json.Unmarshal(env.Payload, &sync); err != nil {
			log.Printf("[Hub] Dropping malformed sync from %s: %v", message.Sender.SocketID, err)
			return
		}
		if target, ok := h.Rooms[message.RoomID][sync.SocketID]; ok {
			h.send(target, message.Data)
		}

	case protocol.EventSendMessage:
		// Chat comes in as send_message and goes out as receive_message.
		h.fanOut(message.RoomID, message.Sender, mustMarshalRaw(protocol.EventReceiveMessage, env.Payload))

	default:
		h.fanOut(message.RoomID, message.Sender, message.Data)
	}
}

// handleJoin answers the joiner with the current roster and announces the
// newcomer to everyone else. Existing peers react to user_joined by pushing
// their replica straight to the new socket.
func (h *Hub) handleJoin(sender *Client, payload json.RawMessage) {
	var req protocol.JoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Printf("[Hub] Dropping malformed join_request from %s: %v", sender.SocketID, err)
		return
	}
	if req.UserID != "" {
		sender.UserID = req.UserID
	}
	if req.Username != "" {
		sender.Username = req.Username
	}
	sender.Joined = true

	room := h.Rooms[sender.RoomID]
	users := make([]protocol.User, 0, len(room))
	for _, c := range room {
		if c.Joined {
			users = append(users, c.User())
		}
	}

	log.Printf("[Hub] %s joined room %s (%d users)", sender.Username, sender.RoomID, len(users))
	h.send(sender, mustMarshal(protocol.EventJoinAccepted, protocol.JoinAccepted{
		User:  sender.User(),
		Users: users,
	}))
	h.fanOut(sender.RoomID, sender, mustMarshal(protocol.EventUserJoined, protocol.UserJoined{
		User: sender.User(),
	}))
}

// fanOut delivers data to every joined member of the room except the sender.
func (h *Hub) fanOut(roomID string, sender *Client, data []byte) {
	for _, client := range h.Rooms[roomID] {
		if client == sender || !client.Joined {
			continue
		}
		h.send(client, data)
	}
}

// send queues data for one client, dropping the client if its queue is full.
func (h *Hub) send(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		log.Printf("[Hub] Dropping slow consumer %s", client.SocketID)
		h.disconnect(client)
	}
}

func mustMarshal(event string, payload interface{}) []byte {
	data, _ := protocol.Marshal(event, payload)
	return data
}

func mustMarshalRaw(event string, payload json.RawMessage) []byte {
	data, _ := json.Marshal(protocol.Envelope{Type: event, Payload: payload})
	return data
}
