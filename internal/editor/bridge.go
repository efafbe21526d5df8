// Package editor bridges an opaque editor widget to the room session. It
// suppresses echoes when remote updates are pushed into the visible buffer,
// and turns local keystrokes into content broadcasts plus idle-based typing
// indicators.
package editor

import (
	"sync"
	"time"

	"syncspace/backend/internal/protocol"
)

// Widget is the capability surface of the visible editor. The concrete
// widget is out of scope; anything with a settable buffer works.
type Widget interface {
	GetValue() string
	SetValue(content string)
}

// Session is the slice of the room coordinator the bridge drives.
type Session interface {
	UpdateFileContent(fileID, content string)
	Self() protocol.User
}

// Emitter sends presence events.
type Emitter interface {
	Emit(event string, payload interface{})
}

const defaultIdleWindow = time.Second

// Bridge owns the per-file echo-suppression flags and the typing idle timer.
type Bridge struct {
	session Session
	tx      Emitter
	widget  Widget

	mu         sync.Mutex
	suppress   map[string]bool
	activeID   string
	runOutput  map[string]string
	idleWindow time.Duration
	idleTimer  *time.Timer
}

// New wires a widget to the session.
func New(session Session, tx Emitter, widget Widget) *Bridge {
	return &Bridge{
		session:    session,
		tx:         tx,
		widget:     widget,
		suppress:   make(map[string]bool),
		runOutput:  make(map[string]string),
		idleWindow: defaultIdleWindow,
	}
}

// SetIdleWindow overrides the typing-pause idle window.
func (b *Bridge) SetIdleWindow(d time.Duration) {
	b.mu.Lock()
	b.idleWindow = d
	b.mu.Unlock()
}

// SetActive switches the visible file. Pending execution output for the file
// being left is cleared.
func (b *Bridge) SetActive(fileID string) {
	b.mu.Lock()
	if b.activeID != "" && b.activeID != fileID {
		delete(b.runOutput, b.activeID)
	}
	b.activeID = fileID
	b.mu.Unlock()
}

// ApplyRemote pushes a remote content update into the visible buffer. The
// suppression flag is set before the buffer mutates so the widget's own
// change notification does not re-broadcast.
func (b *Bridge) ApplyRemote(fileID, content string) {
	b.mu.Lock()
	if fileID != b.activeID {
		// Not on screen; the tree already holds the new content.
		b.mu.Unlock()
		return
	}
	b.suppress[fileID] = true
	b.mu.Unlock()
	b.widget.SetValue(content)
}

// HandleLocalChange is the widget's change notification. Echoes (flag set)
// are swallowed; real edits update the replica, broadcast the full content,
// and signal typing presence.
func (b *Bridge) HandleLocalChange(fileID, content string, cursorLine int) {
	b.mu.Lock()
	if b.suppress[fileID] {
		delete(b.suppress, fileID)
		b.mu.Unlock()
		return
	}
	idle := b.idleWindow
	if b.idleTimer != nil {
		b.idleTimer.Stop()
	}
	b.idleTimer = time.AfterFunc(idle, b.emitTypingPause)
	b.mu.Unlock()

	b.session.UpdateFileContent(fileID, content)
	b.tx.Emit(protocol.EventTypingStart, protocol.TypingStart{
		CursorPosition: cursorLine,
		User:           b.session.Self(),
	})
}

func (b *Bridge) emitTypingPause() {
	b.tx.Emit(protocol.EventTypingPause, protocol.TypingPause{User: b.session.Self()})
}

// SetRunOutput records execution output for the active file's panel.
func (b *Bridge) SetRunOutput(output string) {
	b.mu.Lock()
	if b.activeID != "" {
		b.runOutput[b.activeID] = output
	}
	b.mu.Unlock()
}

// RunOutput returns the active file's execution output panel content.
func (b *Bridge) RunOutput() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runOutput[b.activeID]
}

// Stop cancels a pending typing-pause timer.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.idleTimer != nil {
		b.idleTimer.Stop()
		b.idleTimer = nil
	}
	b.mu.Unlock()
}
