// Package transport wraps the persistent websocket connection to the relay.
// It exposes the connect/emit/on/off surface the room session and the
// whiteboard synchronizer replicate through, plus the request/response helper
// for code execution (which goes over plain HTTP, not the socket).
package transport

import (
	"context"
	"encoding/json"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"syncspace/backend/internal/execute"
	"syncspace/backend/internal/protocol"
)

// Handler receives an event's raw payload. Handlers run one at a time on the
// adapter's read loop; a handler must not block.
type Handler = func(payload json.RawMessage)

const (
	defaultMaxRetries = 5
	defaultBackoff    = 2 * time.Second
	writeWait         = 10 * time.Second
)

// Adapter owns one connection to the relay. Connect is idempotent; Disconnect
// tears the connection down so a later Connect dials fresh.
type Adapter struct {
	exec *execute.Client

	mu       sync.Mutex
	conn     *websocket.Conn
	endpoint string
	closed   bool

	handlerMu sync.Mutex
	handlers  map[string][]Handler

	maxRetries int
	backoff    time.Duration
}

// New returns a disconnected adapter. exec may be nil if code execution is
// never used.
func New(exec *execute.Client) *Adapter {
	return &Adapter{
		exec:       exec,
		handlers:   make(map[string][]Handler),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
}

// SetRetryPolicy overrides the bounded reconnect policy.
func (a *Adapter) SetRetryPolicy(maxRetries int, backoff time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxRetries = maxRetries
	a.backoff = backoff
}

// Connect establishes the connection. Repeated calls while connected reuse
// the existing connection. Dial failures are retried with fixed backoff up to
// the bounded retry count, then surfaced through the connect_error handlers;
// Connect itself never panics.
func (a *Adapter) Connect(ctx context.Context, endpoint string) error {
	a.mu.Lock()
	if a.conn != nil {
		a.mu.Unlock()
		return nil
	}
	a.endpoint = endpoint
	a.closed = false
	maxRetries, backoff := a.maxRetries, a.backoff
	a.mu.Unlock()

	conn, err := a.dial(ctx, endpoint, maxRetries, backoff)
	if err != nil {
		a.dispatch(protocol.EventConnectError, mustRaw(map[string]string{"error": err.Error()}))
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	go a.readLoop(conn)
	a.dispatch(protocol.EventConnect, nil)
	return nil
}

func (a *Adapter) dial(ctx context.Context, endpoint string, maxRetries int, backoff time.Duration) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("[Transport] Dial %s failed (attempt %d/%d): %v", endpoint, attempt+1, maxRetries+1, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

// Connected reports whether the adapter currently holds a live connection.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

// Disconnect tears the connection down and nulls the handle. In-flight events
// are simply not delivered.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.closed = true
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	a.dispatch(protocol.EventDisconnect, nil)
}

// Emit sends a fire-and-forget event. Silent no-op when disconnected; write
// failures are logged and the connection is left to the read loop to recycle.
func (a *Adapter) Emit(event string, payload interface{}) {
	data, err := protocol.Marshal(event, payload)
	if err != nil {
		log.Printf("[Transport] Failed to marshal %s: %v", event, err)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return
	}
	a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := a.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[Transport] Failed to send %s: %v", event, err)
	}
}

// On registers a handler for an event.
func (a *Adapter) On(event string, fn Handler) {
	a.handlerMu.Lock()
	defer a.handlerMu.Unlock()
	a.handlers[event] = append(a.handlers[event], fn)
}

// Off unregisters a handler. A nil handler removes every handler for the
// event.
func (a *Adapter) Off(event string, fn Handler) {
	a.handlerMu.Lock()
	defer a.handlerMu.Unlock()
	if fn == nil {
		delete(a.handlers, event)
		return
	}
	ptr := reflect.ValueOf(fn).Pointer()
	kept := a.handlers[event][:0]
	for _, h := range a.handlers[event] {
		if reflect.ValueOf(h).Pointer() != ptr {
			kept = append(kept, h)
		}
	}
	a.handlers[event] = kept
}

// ExecuteCode runs source against the execution collaborator. It is
// request/response over HTTP (not the socket) and never fails hard: transport
// errors come back as a synthetic result.
func (a *Adapter) ExecuteCode(ctx context.Context, language, source, version string) execute.Result {
	if a.exec == nil {
		return execute.Failure("execution is not configured")
	}
	return a.exec.Run(ctx, language, source, version)
}

func (a *Adapter) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.mu.Lock()
			intentional := a.closed || a.conn != conn
			if a.conn == conn {
				a.conn = nil
			}
			a.mu.Unlock()
			conn.Close()
			if intentional {
				return
			}
			log.Printf("[Transport] Connection lost: %v", err)
			a.reconnect()
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("[Transport] Dropping malformed frame: %v", err)
			continue
		}
		a.dispatch(env.Type, env.Payload)
	}
}

func (a *Adapter) reconnect() {
	a.mu.Lock()
	endpoint := a.endpoint
	maxRetries, backoff := a.maxRetries, a.backoff
	a.mu.Unlock()

	conn, err := a.dial(context.Background(), endpoint, maxRetries, backoff)
	if err != nil {
		log.Printf("[Transport] Reconnect gave up: %v", err)
		a.dispatch(protocol.EventConnectError, mustRaw(map[string]string{"error": err.Error()}))
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		conn.Close()
		return
	}
	a.conn = conn
	a.mu.Unlock()

	go a.readLoop(conn)
	a.dispatch(protocol.EventConnect, nil)
}

func (a *Adapter) dispatch(event string, payload json.RawMessage) {
	a.handlerMu.Lock()
	hs := append([]Handler(nil), a.handlers[event]...)
	a.handlerMu.Unlock()
	for _, h := range hs {
		h(payload)
	}
}

func mustRaw(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
