package editor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncspace/backend/internal/protocol"
)

type fakeSession struct {
	mu      sync.Mutex
	updates []string
}

func (f *fakeSession) UpdateFileContent(fileID, content string) {
	f.mu.Lock()
	f.updates = append(f.updates, fileID+"="+content)
	f.mu.Unlock()
}

func (f *fakeSession) Self() protocol.User {
	return protocol.User{SocketID: "sock-a", UserID: "user-a", Username: "alice"}
}

func (f *fakeSession) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
	starts []protocol.TypingStart
}

func (f *fakeEmitter) Emit(event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	if ts, ok := payload.(protocol.TypingStart); ok {
		f.starts = append(f.starts, ts)
	}
}

func (f *fakeEmitter) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

type fakeWidget struct {
	value string
}

func (f *fakeWidget) GetValue() string        { return f.value }
func (f *fakeWidget) SetValue(content string) { f.value = content }

func newBridge() (*Bridge, *fakeSession, *fakeEmitter, *fakeWidget) {
	session := &fakeSession{}
	tx := &fakeEmitter{}
	widget := &fakeWidget{}
	return New(session, tx, widget), session, tx, widget
}

func TestLocalEditBroadcastsAndSignalsTyping(t *testing.T) {
	b, session, tx, _ := newBridge()
	b.SetActive("file-1")

	b.HandleLocalChange("file-1", "print(1)", 3)

	require.Equal(t, 1, session.updateCount())
	assert.Equal(t, "file-1=print(1)", session.updates[0])
	require.Equal(t, 1, tx.count(protocol.EventTypingStart))
	assert.Equal(t, 3, tx.starts[0].CursorPosition)
	assert.Equal(t, "alice", tx.starts[0].User.Username)
}

func TestRemoteApplySuppressesEcho(t *testing.T) {
	b, session, tx, widget := newBridge()
	b.SetActive("file-1")

	b.ApplyRemote("file-1", "print(2)")
	assert.Equal(t, "print(2)", widget.value, "visible buffer updated")

	// The widget reports its own change notification; it must be swallowed.
	b.HandleLocalChange("file-1", "print(2)", 0)
	assert.Zero(t, session.updateCount(), "echo must not update the replica")
	assert.Zero(t, tx.count(protocol.EventTypingStart))

	// The flag clears after one use: a real edit right after propagates.
	b.HandleLocalChange("file-1", "print(3)", 1)
	assert.Equal(t, 1, session.updateCount())
}

func TestRemoteApplyToBackgroundFileSkipsBuffer(t *testing.T) {
	b, session, _, widget := newBridge()
	b.SetActive("file-1")

	b.ApplyRemote("file-2", "background content")
	assert.Empty(t, widget.value)

	// No flag was set for the background file.
	b.HandleLocalChange("file-2", "typed later", 0)
	assert.Equal(t, 1, session.updateCount())
}

func TestTypingPauseAfterIdleWindow(t *testing.T) {
	b, _, tx, _ := newBridge()
	b.SetIdleWindow(30 * time.Millisecond)
	b.SetActive("file-1")

	b.HandleLocalChange("file-1", "a", 0)
	time.Sleep(10 * time.Millisecond)
	b.HandleLocalChange("file-1", "ab", 0)

	// Keystrokes inside the window re-arm the timer: no pause yet.
	assert.Zero(t, tx.count(protocol.EventTypingPause))

	assert.Eventually(t, func() bool {
		return tx.count(protocol.EventTypingPause) == 1
	}, time.Second, 5*time.Millisecond)

	// Only one pause per burst.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tx.count(protocol.EventTypingPause))
	b.Stop()
}

func TestSwitchingActiveFileClearsRunOutput(t *testing.T) {
	b, _, _, _ := newBridge()
	b.SetActive("file-1")
	b.SetRunOutput("hello from run")
	assert.Equal(t, "hello from run", b.RunOutput())

	b.SetActive("file-2")
	assert.Empty(t, b.RunOutput())

	// The old file's panel was cleared, not stashed.
	b.SetActive("file-1")
	assert.Empty(t, b.RunOutput())
}
