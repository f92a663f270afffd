package runtime

import (
	"sync"

	"workroom/contract"
	"workroom/observability"

	"github.com/google/uuid"
)

type Set map[string]struct{}

// Registry tracks the currently connected session handle of each
// participant and which rooms they listen to. It is mutated only by
// connect/disconnect events and read by broadcast, so a read-write
// mutex is enough; no per-room serialization applies here.
type Registry struct {
	mu          sync.RWMutex
	Sessions    map[string]contract.EventSink // participant -> live sink
	RoomMembers map[uuid.UUID]Set             // room -> connected participants
	monitoring  *observability.Monitoring
}

func NewRegistry(monitoring *observability.Monitoring) *Registry {
	return &Registry{
		Sessions:    make(map[string]contract.EventSink),
		RoomMembers: make(map[uuid.UUID]Set),
		monitoring:  monitoring,
	}
}

// GetSinksForRoom resolves the room's connected participants to their
// session sinks. A participant connected from one place and listening
// to several rooms still has a single sink entry.
// Returns nil if the room has no connected members.
func (r *Registry) GetSinksForRoom(roomID uuid.UUID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for participantID := range members {
		if sink, exists := r.Sessions[participantID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a participant's live connection for a room,
// initializing the room's member set on first use.
func (r *Registry) Subscribe(participantID string, roomID uuid.UUID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, connected := r.Sessions[participantID]; !connected {
		r.monitoring.SessionConnected()
	}
	r.Sessions[participantID] = sink

	if _, ok := r.RoomMembers[roomID]; !ok {
		r.RoomMembers[roomID] = make(Set)
	}
	r.RoomMembers[roomID][participantID] = struct{}{}
}

// Unsubscribe drops the participant's membership in the room. The
// session handle is released only once no subscribed room remains,
// so listening to other rooms over the same connection keeps working.
// Empty member sets are removed so the map does not grow unbounded.
func (r *Registry) Unsubscribe(participantID string, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.RoomMembers[roomID]; ok {
		delete(members, participantID)
		if len(members) == 0 {
			delete(r.RoomMembers, roomID)
		}
	}

	for _, members := range r.RoomMembers {
		if _, still := members[participantID]; still {
			return
		}
	}
	if _, connected := r.Sessions[participantID]; connected {
		r.monitoring.SessionDisconnected()
		delete(r.Sessions, participantID)
	}
}
