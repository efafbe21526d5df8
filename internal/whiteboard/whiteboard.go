// Package whiteboard replicates the shared drawing store. Records are opaque
// to the core; only the add/update/remove delta buckets are interpreted.
// Echo suppression works through origin tagging on every store mutation
// instead of a caller-side boolean: only local-origin changes are shipped.
package whiteboard

import (
	"encoding/json"
	"log"
	"sync"

	"syncspace/backend/internal/protocol"
)

// Origin tags who produced a store mutation.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

// UpdatedPair carries a record's before and after images.
type UpdatedPair struct {
	From json.RawMessage `json:"from"`
	To   json.RawMessage `json:"to"`
}

// Delta is one incremental change set: the three buckets of a store
// mutation.
type Delta struct {
	Added   map[string]json.RawMessage `json:"added,omitempty"`
	Updated map[string]UpdatedPair     `json:"updated,omitempty"`
	Removed map[string]json.RawMessage `json:"removed,omitempty"`
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Listener observes store mutations together with their origin.
type Listener func(origin Origin, delta Delta)

// Store holds the drawing records. All mutations, local and remote, go
// through Apply or LoadSnapshot so listeners always see a tagged change.
type Store struct {
	mu        sync.Mutex
	records   map[string]json.RawMessage
	listeners []Listener
}

// NewStore returns an empty drawing store.
func NewStore() *Store {
	return &Store{records: make(map[string]json.RawMessage)}
}

// Listen registers a change listener.
func (s *Store) Listen(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Apply merges a delta into the store: set union for added/updated, explicit
// removals for removed. Listeners are notified with the given origin.
func (s *Store) Apply(origin Origin, delta Delta) {
	if delta.Empty() {
		return
	}
	s.mu.Lock()
	for id, rec := range delta.Added {
		s.records[id] = rec
	}
	for id, pair := range delta.Updated {
		s.records[id] = pair.To
	}
	for id := range delta.Removed {
		delete(s.records, id)
	}
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(origin, delta)
	}
}

// Put adds or updates a single record as a user-originated change.
func (s *Store) Put(id string, record json.RawMessage) {
	s.mu.Lock()
	prev, existed := s.records[id]
	s.mu.Unlock()

	if existed {
		s.Apply(OriginLocal, Delta{Updated: map[string]UpdatedPair{id: {From: prev, To: record}}})
		return
	}
	s.Apply(OriginLocal, Delta{Added: map[string]json.RawMessage{id: record}})
}

// Remove deletes a single record as a user-originated change. Unknown ids
// are a silent no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	prev, existed := s.records[id]
	s.mu.Unlock()
	if !existed {
		return
	}
	s.Apply(OriginLocal, Delta{Removed: map[string]json.RawMessage{id: prev}})
}

// Get returns a record by id.
func (s *Store) Get(id string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Len returns the record count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Snapshot returns a copy of the whole store, for the late-joiner fallback
// path and for workspace saves.
func (s *Store) Snapshot() map[string]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]json.RawMessage, len(s.records))
	for id, rec := range s.records {
		snap[id] = rec
	}
	return snap
}

// LoadSnapshot replaces the entire store contents atomically. Listeners see
// it as one removal-plus-addition delta with the given origin.
func (s *Store) LoadSnapshot(origin Origin, snapshot map[string]json.RawMessage) {
	s.mu.Lock()
	removed := make(map[string]json.RawMessage, len(s.records))
	for id, rec := range s.records {
		removed[id] = rec
	}
	s.records = make(map[string]json.RawMessage, len(snapshot))
	added := make(map[string]json.RawMessage, len(snapshot))
	for id, rec := range snapshot {
		s.records[id] = rec
		added[id] = rec
	}
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	delta := Delta{Added: added, Removed: removed}
	if delta.Empty() {
		return
	}
	for _, fn := range listeners {
		fn(origin, delta)
	}
}

// Emitter is the outbound half of the transport adapter.
type Emitter interface {
	Emit(event string, payload interface{})
}

// Synchronizer ships local store changes as deltas and merges remote deltas
// back in without re-rendering from scratch.
type Synchronizer struct {
	roomID string
	store  *Store
	tx     Emitter

	loadOnce sync.Once
}

// NewSynchronizer wires a store to the transport for one room. Local-origin
// mutations are emitted immediately; remote-origin ones are not (that is the
// anti-echo contract).
func NewSynchronizer(roomID string, store *Store, tx Emitter) *Synchronizer {
	s := &Synchronizer{roomID: roomID, store: store, tx: tx}
	store.Listen(func(origin Origin, delta Delta) {
		if origin != OriginLocal {
			return
		}
		changes, err := json.Marshal(delta)
		if err != nil {
			log.Printf("[Whiteboard] Failed to marshal delta: %v", err)
			return
		}
		s.tx.Emit(protocol.EventDrawingUpdate, protocol.DrawingUpdate{
			RoomID:  s.roomID,
			Changes: changes,
		})
	})
	return s
}

// HandleRemote applies an incoming drawing_update, either a delta or a full
// snapshot, under the remote origin tag.
func (s *Synchronizer) HandleRemote(payload json.RawMessage) {
	var update protocol.DrawingUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		log.Printf("[Whiteboard] Dropping malformed drawing_update: %v", err)
		return
	}

	if len(update.Snapshot) > 0 {
		var snapshot map[string]json.RawMessage
		if err := json.Unmarshal(update.Snapshot, &snapshot); err != nil {
			log.Printf("[Whiteboard] Dropping malformed snapshot: %v", err)
			return
		}
		s.store.LoadSnapshot(OriginRemote, snapshot)
		return
	}

	var delta Delta
	if err := json.Unmarshal(update.Changes, &delta); err != nil {
		log.Printf("[Whiteboard] Dropping malformed delta: %v", err)
		return
	}
	s.store.Apply(OriginRemote, delta)
}

// ShareSnapshot pushes the full store to the room, the fallback path for
// late joiners.
func (s *Synchronizer) ShareSnapshot() {
	snap, err := json.Marshal(s.store.Snapshot())
	if err != nil {
		log.Printf("[Whiteboard] Failed to marshal snapshot: %v", err)
		return
	}
	s.tx.Emit(protocol.EventDrawingUpdate, protocol.DrawingUpdate{
		RoomID:   s.roomID,
		Snapshot: snap,
	})
}

// LoadSaved applies a previously persisted snapshot. It runs at most once
// per synchronizer so a reconnect does not clobber live state with stale
// data.
func (s *Synchronizer) LoadSaved(snapshot map[string]json.RawMessage) {
	s.loadOnce.Do(func() {
		if len(snapshot) == 0 {
			return
		}
		s.store.LoadSnapshot(OriginRemote, snapshot)
	})
}
