package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"syncspace/backend/internal/auth"
	"syncspace/backend/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs upgrades the connection and registers it with the hub. Identity
// comes from the externally issued JWT in the auth_token query parameter;
// the socket id is fresh per connection.
func ServeWs(hub *relay.Hub, w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		http.Error(w, "Room ID is required in URL", http.StatusBadRequest)
		return
	}

	tokenStr := r.URL.Query().Get("auth_token")
	if tokenStr == "" {
		http.Error(w, "Missing auth_token query parameter", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateJWTAndGetClaims(tokenStr)
	if err != nil {
		http.Error(w, "Invalid auth token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Failed to upgrade WebSocket connection:", err)
		return
	}

	client := &relay.Client{
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		SocketID: uuid.NewString(),
		RoomID:   roomID,
		UserID:   claims.UserID,
		Username: claims.Username,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
