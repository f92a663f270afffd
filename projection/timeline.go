// Package projection builds local timelines from observed events and
// paged history. Handles ordering, deduplication, and reconnect
// reconciliation. Does not emit events.
package projection

import (
	"context"
	"sort"
	"sync"

	"workroom/domain"
	"workroom/domain/event"

	"github.com/google/uuid"
)

// Timeline is a client-side view of one room, keyed by sequence
// number. It consumes live events as an EventSink and merges pages
// fetched after a reconnect; both paths are idempotent per sequence,
// so replays and overlaps deduplicate naturally.
type Timeline struct {
	mu       sync.Mutex
	Owner    string
	Room     uuid.UUID
	bySeq    map[uint64]domain.Message
	lastSeen uint64
}

func NewTimeline(owner string, room uuid.UUID) *Timeline {
	return &Timeline{
		Owner: owner,
		Room:  room,
		bySeq: make(map[uint64]domain.Message),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	if e.RoomID() != t.Room {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch evt := e.(type) {
	case event.MessageCommitted:
		t.apply(evt.Message)
	case event.MessageEdited:
		t.apply(evt.Message)
	case event.MessageDeleted:
		if msg, ok := t.bySeq[evt.Sequence]; ok {
			t.apply(msg.Tombstone())
		}
	}
	return nil
}

// Merge reconciles a page fetched via the message log, typically
// after a reconnect starting from LastSeen.
func (t *Timeline) Merge(page []domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, msg := range page {
		t.apply(msg)
	}
}

func (t *Timeline) apply(msg domain.Message) {
	t.bySeq[msg.Sequence] = msg
	if msg.Sequence > t.lastSeen {
		t.lastSeen = msg.Sequence
	}
}

// LastSeen is the highest sequence number observed; a reconnecting
// client resumes paging from here.
func (t *Timeline) LastSeen() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}

// Messages returns the timeline in sequence order, tombstones
// included.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	messages := make([]domain.Message, 0, len(t.bySeq))
	for _, msg := range t.bySeq {
		messages = append(messages, msg)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Sequence < messages[j].Sequence
	})
	return messages
}
