// Package protocol defines the wire events exchanged between participants
// and the relay. Every message is a JSON envelope of {type, payload}.
package protocol

import "encoding/json"

// Event names, grouped by concern.
const (
	// Session
	EventJoinRequest      = "join_request"
	EventJoinAccepted     = "join_accepted"
	EventUserJoined       = "user_joined"
	EventUserDisconnected = "user_disconnected"

	// Late-joiner state transfer (targeted at one socket, never broadcast)
	EventSyncFileStructure = "sync_file_structure"

	// Tree mutations
	EventFileCreated      = "file_created"
	EventFileUpdated      = "file_updated"
	EventFileRenamed      = "file_renamed"
	EventFileDeleted      = "file_deleted"
	EventDirectoryCreated = "directory_created"
	EventDirectoryRenamed = "directory_renamed"
	EventDirectoryDeleted = "directory_deleted"

	// Whiteboard
	EventDrawingUpdate = "drawing_update"

	// Presence
	EventTypingStart = "typing_start"
	EventTypingPause = "typing_pause"

	// Chat
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"

	// Transport-local, never sent over the wire
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventDisconnect   = "disconnect"
)

// Envelope is the wire frame for every event.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Marshal wraps a payload into an envelope and serializes it.
func Marshal(event string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: event, Payload: raw})
}

// User identifies a participant. SocketID is connection-scoped and changes on
// reconnect; UserID is stable.
type User struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type JoinRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

type JoinAccepted struct {
	User  User   `json:"user"`
	Users []User `json:"users"`
}

type UserJoined struct {
	User User `json:"user"`
}

type UserDisconnected struct {
	User User `json:"user"`
}

// SyncFileStructure carries one peer's entire replica to a late joiner.
// SocketID is the joiner's socket; the relay routes the message only there.
type SyncFileStructure struct {
	SocketID      string          `json:"socketId"`
	FileStructure json.RawMessage `json:"fileStructure"`
	OpenFiles     json.RawMessage `json:"openFiles"`
	ActiveFile    json.RawMessage `json:"activeFile"`
}

type FileCreated struct {
	ParentDirID string          `json:"parentDirId"`
	NewFile     json.RawMessage `json:"newFile"`
}

type FileUpdated struct {
	FileID     string `json:"fileId"`
	NewContent string `json:"newContent"`
}

type FileRenamed struct {
	FileID  string `json:"fileId"`
	NewName string `json:"newName"`
}

type FileDeleted struct {
	FileID string `json:"fileId"`
}

type DirectoryCreated struct {
	ParentDirID  string          `json:"parentDirId"`
	NewDirectory json.RawMessage `json:"newDirectory"`
}

type DirectoryRenamed struct {
	DirID   string `json:"dirId"`
	NewName string `json:"newName"`
}

type DirectoryDeleted struct {
	DirID string `json:"dirId"`
}

// DrawingUpdate ships either an incremental delta or a full snapshot.
// Exactly one of Changes/Snapshot is set.
type DrawingUpdate struct {
	RoomID   string          `json:"roomId"`
	Changes  json.RawMessage `json:"changes,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

type TypingStart struct {
	CursorPosition int  `json:"cursorPosition"`
	User           User `json:"user"`
}

type TypingPause struct {
	User User `json:"user"`
}

type ChatMessage struct {
	User      User   `json:"user"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
