package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"sync"
	"time"

	"trivia-room-service/internal/domain"
)

// Presence mirrors room liveness into an external store (Redis). Calls are
// best-effort; a nil Presence disables mirroring.
type Presence interface {
	Mark(code string)
	Clear(code string)
}

// Registry owns the mapping from room code to Room and is the sole
// authority for room lifecycle: code allocation, lookup and destruction.
type Registry struct {
	sink     EventSink
	timing   Timing
	presence Presence

	mu     sync.RWMutex
	rooms  map[string]*Room
	rnd    *mrand.Rand
	codeFn func() string
	idFn   func() string
}

// NewRegistry builds a registry delivering room events through sink.
// presence may be nil.
func NewRegistry(sink EventSink, timing Timing, presence Presence) *Registry {
	r := &Registry{
		sink:     sink,
		timing:   timing,
		presence: presence,
		rooms:    make(map[string]*Room),
		rnd:      mrand.New(mrand.NewSource(time.Now().UnixNano())),
		idFn:     newParticipantID,
	}
	r.codeFn = r.randomCode
	return r
}

// randomCode draws from the 6-digit space; at the intended scale collision
// retries in Create are rare.
func (r *Registry) randomCode() string {
	return fmt.Sprintf("%06d", 100000+r.rnd.Intn(900000))
}

func newParticipantID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failing means the process is unusable
	}
	return hex.EncodeToString(buf)
}

// NewParticipantID mints a durable participant identifier for a joiner.
func (r *Registry) NewParticipantID() string {
	return r.idFn()
}

// Create allocates a collision-free code, builds a room over a snapshot of
// the question list and registers the host as its first participant.
func (r *Registry) Create(hostConnID, hostName string, questions []domain.Question) (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = r.codeFn()
		if _, taken := r.rooms[code]; !taken {
			break
		}
	}

	room := newRoom(code, hostConnID, questions, r.sink, r.timing)
	hostID := r.idFn()
	_, _ = room.Join(hostID, hostName, hostConnID)
	r.rooms[code] = room

	if r.presence != nil {
		r.presence.Mark(code)
	}
	return code, hostID
}

// Lookup resolves a room code.
func (r *Registry) Lookup(code string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

// Destroy removes the room and releases its code.
func (r *Registry) Destroy(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyLocked(code)
}

func (r *Registry) destroyLocked(code string) {
	if _, ok := r.rooms[code]; !ok {
		return
	}
	delete(r.rooms, code)
	if r.presence != nil {
		r.presence.Clear(code)
	}
}

// PlayerNames returns the roster for code in join order, empty when the
// room does not exist.
func (r *Registry) PlayerNames(code string) []string {
	room, ok := r.Lookup(code)
	if !ok {
		return []string{}
	}
	return room.PlayerNames()
}

// Len reports the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Sweep destroys rooms that finished their quiz or have been idle longer
// than ttl, returning how many were removed.
func (r *Registry) Sweep(ttl time.Duration) int {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for code, room := range r.rooms {
		if room.evictable(now, ttl) {
			r.destroyLocked(code)
			removed++
		}
	}
	return removed
}
