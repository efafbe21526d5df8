// Package room implements the session coordinator: one participant's replica
// of the shared file tree, the open-tab set, the roster, and the late-joiner
// handshake. Local user actions become outbound replication events; inbound
// events apply the same mutation without re-broadcasting.
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"syncspace/backend/internal/execute"
	"syncspace/backend/internal/fstree"
	"syncspace/backend/internal/protocol"
)

// State is the participant's position in the join protocol.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingJoin
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingJoin:
		return "awaiting_join"
	case StateSynced:
		return "synced"
	default:
		return "disconnected"
	}
}

// Transport is the slice of the adapter the session needs.
type Transport interface {
	Connect(ctx context.Context, endpoint string) error
	Disconnect()
	Emit(event string, payload interface{})
	On(event string, fn func(payload json.RawMessage))
}

// Runner executes source against the sandbox collaborator.
type Runner interface {
	ExecuteCode(ctx context.Context, language, source, version string) execute.Result
}

// Hooks are optional view-side callbacks. All fire on the transport's read
// loop (or the caller's goroutine for local operations), already serialized
// by the session.
type Hooks struct {
	// FileContentChanged fires when a remote update touches a file that is
	// currently open, so the visible buffer can be refreshed exactly once.
	FileContentChanged func(fileID, content string)
	RosterChanged      func(users []protocol.User)
	TypingStart        func(user protocol.User, cursorLine int)
	TypingPause        func(user protocol.User)
	ChatReceived       func(msg protocol.ChatMessage)
}

// Session owns one participant's room replica. Every mutation, local or
// remote, runs under one lock so the tree never shows a torn state.
type Session struct {
	tx    Transport
	hooks Hooks

	mu         sync.Mutex
	state      State
	roomID     string
	self       protocol.User
	root       *fstree.Item
	openFiles  []*fstree.Item
	activeFile *fstree.Item
	users      map[string]protocol.User // keyed by socketId
}

// New builds a session around a transport and registers its event handlers.
func New(tx Transport, hooks Hooks) *Session {
	s := &Session{
		tx:    tx,
		hooks: hooks,
		root:  fstree.NewRoot(),
		users: make(map[string]protocol.User),
	}
	for event, handler := range map[string]func(json.RawMessage){
		protocol.EventJoinAccepted:      s.onJoinAccepted,
		protocol.EventUserJoined:        s.onUserJoined,
		protocol.EventUserDisconnected:  s.onUserDisconnected,
		protocol.EventSyncFileStructure: s.onSyncFileStructure,
		protocol.EventFileCreated:       s.onFileCreated,
		protocol.EventFileUpdated:       s.onFileUpdated,
		protocol.EventFileRenamed:       s.onFileRenamed,
		protocol.EventFileDeleted:       s.onFileDeleted,
		protocol.EventDirectoryCreated:  s.onDirectoryCreated,
		protocol.EventDirectoryRenamed:  s.onDirectoryRenamed,
		protocol.EventDirectoryDeleted:  s.onDirectoryDeleted,
		protocol.EventTypingStart:       s.onTypingStart,
		protocol.EventTypingPause:       s.onTypingPause,
		protocol.EventReceiveMessage:    s.onReceiveMessage,
	} {
		tx.On(event, handler)
	}
	return s
}

// Join connects and asks to enter the room. Catch-up then happens one of two
// ways: join_accepted (first or rejoining participant, nothing to pull) or a
// peer's targeted sync_file_structure. If no peer ever answers, the session
// simply keeps its local empty tree.
func (s *Session) Join(ctx context.Context, endpoint, roomID, username, userID string) error {
	s.mu.Lock()
	s.state = StateConnecting
	s.roomID = roomID
	s.self = protocol.User{UserID: userID, Username: username}
	s.mu.Unlock()

	if err := s.tx.Connect(ctx, endpoint); err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return fmt.Errorf("join %s: %w", roomID, err)
	}

	s.mu.Lock()
	s.state = StateAwaitingJoin
	s.mu.Unlock()

	s.tx.Emit(protocol.EventJoinRequest, protocol.JoinRequest{
		RoomID:   roomID,
		Username: username,
		UserID:   userID,
	})
	return nil
}

// Leave tears the transport down. Local-only state is not persisted.
func (s *Session) Leave() {
	s.tx.Disconnect()
	s.mu.Lock()
	s.state = StateDisconnected
	s.users = make(map[string]protocol.User)
	s.mu.Unlock()
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Self returns this participant's identity (socket id known after
// join_accepted).
func (s *Session) Self() protocol.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// Users returns the current roster.
func (s *Session) Users() []protocol.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterLocked()
}

func (s *Session) rosterLocked() []protocol.User {
	users := make([]protocol.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users
}

// Root exposes the replica root, primarily for tests and the save path.
func (s *Session) Root() *fstree.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// OpenFiles returns the ordered open-tab set.
func (s *Session) OpenFiles() []*fstree.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fstree.Item(nil), s.openFiles...)
}

// ActiveFile returns the active tab, or nil.
func (s *Session) ActiveFile() *fstree.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeFile
}

// ---- local operations (mutate, then broadcast) ----

// CreateFile makes a file under the parent directory and replicates it.
// Duplicate sibling names are allowed on creation.
func (s *Session) CreateFile(parentID, name string) *fstree.Item {
	s.mu.Lock()
	item := fstree.CreateFile(s.root, parentID, name)
	s.mu.Unlock()
	if item == nil {
		return nil
	}
	raw, _ := json.Marshal(item)
	s.tx.Emit(protocol.EventFileCreated, protocol.FileCreated{ParentDirID: parentID, NewFile: raw})
	return item
}

// CreateDirectory makes a directory under the parent and replicates it.
func (s *Session) CreateDirectory(parentID, name string) *fstree.Item {
	s.mu.Lock()
	item := fstree.CreateDirectory(s.root, parentID, name)
	s.mu.Unlock()
	if item == nil {
		return nil
	}
	raw, _ := json.Marshal(item)
	s.tx.Emit(protocol.EventDirectoryCreated, protocol.DirectoryCreated{ParentDirID: parentID, NewDirectory: raw})
	return item
}

// UpdateFileContent replaces a file's content and broadcasts the full new
// content (no diffing, last write wins).
func (s *Session) UpdateFileContent(fileID, content string) {
	s.mu.Lock()
	ok := fstree.UpdateContent(s.root, fileID, content)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.tx.Emit(protocol.EventFileUpdated, protocol.FileUpdated{FileID: fileID, NewContent: content})
}

// RenameFile renames a file; false when a sibling already bears the name.
func (s *Session) RenameFile(fileID, newName string) bool {
	s.mu.Lock()
	ok := fstree.Rename(s.root, fileID, newName)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.tx.Emit(protocol.EventFileRenamed, protocol.FileRenamed{FileID: fileID, NewName: newName})
	return true
}

// RenameDirectory renames a directory; same collision rule as files.
func (s *Session) RenameDirectory(dirID, newName string) bool {
	s.mu.Lock()
	ok := fstree.Rename(s.root, dirID, newName)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.tx.Emit(protocol.EventDirectoryRenamed, protocol.DirectoryRenamed{DirID: dirID, NewName: newName})
	return true
}

// DeleteFile removes a file, closes its tab if open, and replicates.
func (s *Session) DeleteFile(fileID string) {
	s.mu.Lock()
	removed := fstree.Delete(s.root, fileID)
	s.closeTabsLocked(removed)
	s.mu.Unlock()
	if len(removed) == 0 {
		return
	}
	s.tx.Emit(protocol.EventFileDeleted, protocol.FileDeleted{FileID: fileID})
}

// DeleteDirectory removes a directory and its subtree, closing any open tabs
// underneath it.
func (s *Session) DeleteDirectory(dirID string) {
	s.mu.Lock()
	existed := fstree.FindItem(s.root, dirID) != nil
	removed := fstree.Delete(s.root, dirID)
	s.closeTabsLocked(removed)
	s.mu.Unlock()
	if !existed {
		return
	}
	s.tx.Emit(protocol.EventDirectoryDeleted, protocol.DirectoryDeleted{DirID: dirID})
}

// ToggleDirectory flips a directory's expanded flag. Local-only, never
// broadcast.
func (s *Session) ToggleDirectory(dirID string) {
	s.mu.Lock()
	fstree.ToggleOpen(s.root, dirID)
	s.mu.Unlock()
}

// CollapseAll closes every directory except the root. Local-only.
func (s *Session) CollapseAll() {
	s.mu.Lock()
	fstree.CollapseAll(s.root)
	s.mu.Unlock()
}

// OpenFile adds a file to the tab set (if absent) and makes it active.
func (s *Session) OpenFile(fileID string) *fstree.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := fstree.FindItem(s.root, fileID)
	if item == nil || item.Type != fstree.TypeFile {
		return nil
	}
	for _, open := range s.openFiles {
		if open.ID == fileID {
			s.activeFile = open
			return open
		}
	}
	s.openFiles = append(s.openFiles, item)
	s.activeFile = item
	return item
}

// CloseFile removes a tab; the active file falls back to the last remaining
// tab or none.
func (s *Session) CloseFile(fileID string) {
	s.mu.Lock()
	s.closeTabsLocked([]string{fileID})
	s.mu.Unlock()
}

// SetActiveFile switches the active tab. The file must already be open.
func (s *Session) SetActiveFile(fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, open := range s.openFiles {
		if open.ID == fileID {
			s.activeFile = open
			return true
		}
	}
	return false
}

func (s *Session) closeTabsLocked(fileIDs []string) {
	if len(fileIDs) == 0 {
		return
	}
	closing := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		closing[id] = true
	}
	kept := s.openFiles[:0]
	activeClosed := false
	for _, open := range s.openFiles {
		if closing[open.ID] {
			if s.activeFile != nil && s.activeFile.ID == open.ID {
				activeClosed = true
			}
			continue
		}
		kept = append(kept, open)
	}
	s.openFiles = kept
	if activeClosed {
		if len(s.openFiles) > 0 {
			s.activeFile = s.openFiles[len(s.openFiles)-1]
		} else {
			s.activeFile = nil
		}
	}
}

// SendChat broadcasts a chat message to the room.
func (s *Session) SendChat(text string) {
	s.mu.Lock()
	user := s.self
	s.mu.Unlock()
	s.tx.Emit(protocol.EventSendMessage, protocol.ChatMessage{
		User:      user,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	})
}

// RunActiveFile executes the active file's content against the sandbox. The
// result is request/response only; other participants never see it.
func (s *Session) RunActiveFile(ctx context.Context, runner Runner) execute.Result {
	s.mu.Lock()
	active := s.activeFile
	s.mu.Unlock()
	if active == nil {
		return execute.Failure("no active file")
	}
	language := fstree.LanguageFor(active.Name)
	return runner.ExecuteCode(ctx, language, active.Content, "")
}

// ---- remote handlers (apply, never re-broadcast) ----

func (s *Session) onJoinAccepted(payload json.RawMessage) {
	var accepted protocol.JoinAccepted
	if err := json.Unmarshal(payload, &accepted); err != nil {
		log.Printf("[Room] Dropping malformed join_accepted: %v", err)
		return
	}
	s.mu.Lock()
	s.self = accepted.User
	s.users = make(map[string]protocol.User, len(accepted.Users))
	for _, u := range accepted.Users {
		s.users[u.SocketID] = u
	}
	s.state = StateSynced
	roster := s.rosterLocked()
	s.mu.Unlock()

	log.Printf("[Room] Joined room as %s (%d users online)", accepted.User.Username, len(roster))
	if s.hooks.RosterChanged != nil {
		s.hooks.RosterChanged(roster)
	}
}

// onUserJoined adds the newcomer to the roster and answers with a targeted
// copy of this replica, the late-joiner catch-up path. There is no
// server-held source of truth; whichever peer answers first defines the
// joiner's state, and later answers overwrite it.
func (s *Session) onUserJoined(payload json.RawMessage) {
	var joined protocol.UserJoined
	if err := json.Unmarshal(payload, &joined); err != nil {
		log.Printf("[Room] Dropping malformed user_joined: %v", err)
		return
	}

	s.mu.Lock()
	s.users[joined.User.SocketID] = joined.User
	structure, _ := json.Marshal(s.root)
	openFiles, _ := json.Marshal(s.openFiles)
	activeFile, _ := json.Marshal(s.activeFile)
	roster := s.rosterLocked()
	s.mu.Unlock()

	log.Printf("[Room] %s joined, sending file structure sync", joined.User.Username)
	s.tx.Emit(protocol.EventSyncFileStructure, protocol.SyncFileStructure{
		SocketID:      joined.User.SocketID,
		FileStructure: structure,
		OpenFiles:     openFiles,
		ActiveFile:    activeFile,
	})
	if s.hooks.RosterChanged != nil {
		s.hooks.RosterChanged(roster)
	}
}

func (s *Session) onUserDisconnected(payload json.RawMessage) {
	var left protocol.UserDisconnected
	if err := json.Unmarshal(payload, &left); err != nil {
		log.Printf("[Room] Dropping malformed user_disconnected: %v", err)
		return
	}
	s.mu.Lock()
	delete(s.users, left.User.SocketID)
	roster := s.rosterLocked()
	s.mu.Unlock()

	log.Printf("[Room] %s disconnected", left.User.Username)
	if s.hooks.RosterChanged != nil {
		s.hooks.RosterChanged(roster)
	}
}

// onSyncFileStructure replaces the local replica wholesale with the peer's
// answer. Applied in arrival order when several peers respond: last write
// wins.
func (s *Session) onSyncFileStructure(payload json.RawMessage) {
	var msg protocol.SyncFileStructure
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[Room] Dropping malformed sync_file_structure: %v", err)
		return
	}

	var root fstree.Item
	if err := json.Unmarshal(msg.FileStructure, &root); err != nil {
		log.Printf("[Room] Dropping sync with malformed file structure: %v", err)
		return
	}

	var openFiles []*fstree.Item
	if len(msg.OpenFiles) > 0 {
		if err := json.Unmarshal(msg.OpenFiles, &openFiles); err != nil {
			log.Printf("[Room] Ignoring malformed open file set in sync: %v", err)
			openFiles = nil
		}
	}
	var activeFile *fstree.Item
	if len(msg.ActiveFile) > 0 && string(msg.ActiveFile) != "null" {
		activeFile = &fstree.Item{}
		if err := json.Unmarshal(msg.ActiveFile, activeFile); err != nil {
			activeFile = nil
		}
	}

	s.mu.Lock()
	s.root = &root
	// Re-point tabs at the freshly adopted tree so later renames and updates
	// stay visible through the same nodes.
	s.openFiles = nil
	for _, open := range openFiles {
		if item := fstree.FindItem(s.root, open.ID); item != nil {
			s.openFiles = append(s.openFiles, item)
		}
	}
	s.activeFile = nil
	if activeFile != nil {
		s.activeFile = fstree.FindItem(s.root, activeFile.ID)
	}
	s.state = StateSynced
	s.mu.Unlock()

	log.Printf("[Room] Adopted file structure from peer (%d nodes)", fstree.CountNodes(&root))
}

func (s *Session) onFileCreated(payload json.RawMessage) {
	var created protocol.FileCreated
	if err := json.Unmarshal(payload, &created); err != nil {
		log.Printf("[Room] Dropping malformed file_created: %v", err)
		return
	}
	var item fstree.Item
	if err := json.Unmarshal(created.NewFile, &item); err != nil {
		log.Printf("[Room] Dropping file_created with malformed node: %v", err)
		return
	}
	s.mu.Lock()
	fstree.Attach(s.root, created.ParentDirID, &item)
	s.mu.Unlock()
}

func (s *Session) onDirectoryCreated(payload json.RawMessage) {
	var created protocol.DirectoryCreated
	if err := json.Unmarshal(payload, &created); err != nil {
		log.Printf("[Room] Dropping malformed directory_created: %v", err)
		return
	}
	var item fstree.Item
	if err := json.Unmarshal(created.NewDirectory, &item); err != nil {
		log.Printf("[Room] Dropping directory_created with malformed node: %v", err)
		return
	}
	s.mu.Lock()
	fstree.Attach(s.root, created.ParentDirID, &item)
	s.mu.Unlock()
}

func (s *Session) onFileUpdated(payload json.RawMessage) {
	var updated protocol.FileUpdated
	if err := json.Unmarshal(payload, &updated); err != nil {
		log.Printf("[Room] Dropping malformed file_updated: %v", err)
		return
	}
	s.mu.Lock()
	ok := fstree.UpdateContent(s.root, updated.FileID, updated.NewContent)
	open := false
	for _, tab := range s.openFiles {
		if tab.ID == updated.FileID {
			open = true
			break
		}
	}
	s.mu.Unlock()
	if ok && open && s.hooks.FileContentChanged != nil {
		s.hooks.FileContentChanged(updated.FileID, updated.NewContent)
	}
}

func (s *Session) onFileRenamed(payload json.RawMessage) {
	var renamed protocol.FileRenamed
	if err := json.Unmarshal(payload, &renamed); err != nil {
		log.Printf("[Room] Dropping malformed file_renamed: %v", err)
		return
	}
	s.mu.Lock()
	fstree.Rename(s.root, renamed.FileID, renamed.NewName)
	s.mu.Unlock()
}

func (s *Session) onDirectoryRenamed(payload json.RawMessage) {
	var renamed protocol.DirectoryRenamed
	if err := json.Unmarshal(payload, &renamed); err != nil {
		log.Printf("[Room] Dropping malformed directory_renamed: %v", err)
		return
	}
	s.mu.Lock()
	fstree.Rename(s.root, renamed.DirID, renamed.NewName)
	s.mu.Unlock()
}

func (s *Session) onFileDeleted(payload json.RawMessage) {
	var deleted protocol.FileDeleted
	if err := json.Unmarshal(payload, &deleted); err != nil {
		log.Printf("[Room] Dropping malformed file_deleted: %v", err)
		return
	}
	s.mu.Lock()
	removed := fstree.Delete(s.root, deleted.FileID)
	s.closeTabsLocked(removed)
	s.mu.Unlock()
}

func (s *Session) onDirectoryDeleted(payload json.RawMessage) {
	var deleted protocol.DirectoryDeleted
	if err := json.Unmarshal(payload, &deleted); err != nil {
		log.Printf("[Room] Dropping malformed directory_deleted: %v", err)
		return
	}
	s.mu.Lock()
	removed := fstree.Delete(s.root, deleted.DirID)
	s.closeTabsLocked(removed)
	s.mu.Unlock()
}

func (s *Session) onTypingStart(payload json.RawMessage) {
	var typing protocol.TypingStart
	if err := json.Unmarshal(payload, &typing); err != nil {
		return
	}
	if s.hooks.TypingStart != nil {
		s.hooks.TypingStart(typing.User, typing.CursorPosition)
	}
}

func (s *Session) onTypingPause(payload json.RawMessage) {
	var typing protocol.TypingPause
	if err := json.Unmarshal(payload, &typing); err != nil {
		return
	}
	if s.hooks.TypingPause != nil {
		s.hooks.TypingPause(typing.User)
	}
}

func (s *Session) onReceiveMessage(payload json.RawMessage) {
	var msg protocol.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	if s.hooks.ChatReceived != nil {
		s.hooks.ChatReceived(msg)
	}
}
