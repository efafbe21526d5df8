package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"syncspace/backend/internal/auth"
	"syncspace/backend/internal/protocol"
	"syncspace/backend/internal/room"
	"syncspace/backend/internal/transport"
	"syncspace/backend/internal/whiteboard"
)

// The agent is a headless participant: it joins a room over the same relay
// the editors use, keeps a live replica, and answers late joiners' state
// requests like any other peer. Useful for keeping a room warm when no
// human is connected.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[Agent] No .env file found, relying on environment")
	}

	relayURL := getEnv("RELAY_URL", "ws://localhost:8080/ws")
	roomID := os.Getenv("ROOM_ID")
	if roomID == "" {
		log.Fatal("[Agent] ROOM_ID must be set")
	}
	username := getEnv("AGENT_NAME", "room-agent")
	userID := "agent-" + uuid.NewString()

	token, err := auth.CreateJWT(userID, username)
	if err != nil {
		log.Fatalf("[Agent] Failed to mint token: %v", err)
	}

	endpoint, err := buildEndpoint(relayURL, roomID, token)
	if err != nil {
		log.Fatalf("[Agent] Bad RELAY_URL: %v", err)
	}

	tx := transport.New(nil)
	session := room.New(tx, room.Hooks{
		RosterChanged: func(users []protocol.User) {
			log.Printf("[Agent] Roster changed: %d participant(s)", len(users))
		},
		ChatReceived: func(msg protocol.ChatMessage) {
			log.Printf("[Agent] <%s> %s", msg.User.Username, msg.Text)
		},
		TypingStart: func(user protocol.User, cursorLine int) {
			log.Printf("[Agent] %s is typing (line %d)", user.Username, cursorLine)
		},
	})

	// Mirror the drawing layer too, so the agent's replica is complete.
	board := whiteboard.NewStore()
	syncer := whiteboard.NewSynchronizer(roomID, board, tx)
	tx.On(protocol.EventDrawingUpdate, syncer.HandleRemote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Join(ctx, endpoint, roomID, username, userID); err != nil {
		log.Fatalf("[Agent] Failed to join room %s: %v", roomID, err)
	}
	log.Printf("[Agent] Joined room %s as %s", roomID, username)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Println("[Agent] Received shutdown signal")

	session.Leave()
	time.Sleep(200 * time.Millisecond)
}

// buildEndpoint appends the room path and auth token to the relay base URL.
func buildEndpoint(base, roomID, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = u.Path + "/" + roomID
	q := u.Query()
	q.Set("auth_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
