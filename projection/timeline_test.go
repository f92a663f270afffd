package projection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"workroom/domain"
	"workroom/domain/event"
)

func liveMessage(roomID uuid.UUID, seq uint64, sender string) domain.Message {
	return domain.Message{
		ID:         uuid.New(),
		RoomID:     roomID,
		SenderID:   sender,
		Ciphertext: []byte("sealed payload"),
		Nonce:      []byte("nonce"),
		Sequence:   seq,
		CreatedAt:  time.Now().UTC(),
		Status:     domain.MessageSent,
	}
}

func TestTimeline_Consume_Orders_By_Sequence(t *testing.T) {
	req := require.New(t)
	roomID := uuid.New()
	timeline := NewTimeline("bob", roomID)
	ctx := context.Background()

	// Events may arrive while pages are merged out of order
	req.NoError(timeline.Consume(ctx, event.MessageCommitted{Message: liveMessage(roomID, 2, "clara")}))
	req.NoError(timeline.Consume(ctx, event.MessageCommitted{Message: liveMessage(roomID, 1, "alice")}))

	messages := timeline.Messages()
	req.Len(messages, 2)
	req.Equal("alice", messages[0].SenderID)
	req.Equal("clara", messages[1].SenderID)
	req.Equal(uint64(2), timeline.LastSeen())
}

func TestTimeline_Ignores_Other_Rooms(t *testing.T) {
	req := require.New(t)
	roomID := uuid.New()
	timeline := NewTimeline("bob", roomID)

	req.NoError(timeline.Consume(context.Background(),
		event.MessageCommitted{Message: liveMessage(uuid.New(), 1, "alice")}))

	req.Empty(timeline.Messages())
	req.Zero(timeline.LastSeen())
}

func TestTimeline_Merge_Deduplicates_Replayed_Pages(t *testing.T) {
	req := require.New(t)
	roomID := uuid.New()
	timeline := NewTimeline("bob", roomID)

	first := liveMessage(roomID, 1, "alice")
	second := liveMessage(roomID, 2, "clara")

	// A live event and an overlapping page after reconnect
	req.NoError(timeline.Consume(context.Background(), event.MessageCommitted{Message: first}))
	timeline.Merge([]domain.Message{first, second})
	timeline.Merge([]domain.Message{second})

	req.Len(timeline.Messages(), 2)
	req.Equal(uint64(2), timeline.LastSeen())
}

func TestTimeline_Applies_Edits_And_Tombstones(t *testing.T) {
	req := require.New(t)
	roomID := uuid.New()
	timeline := NewTimeline("bob", roomID)
	ctx := context.Background()

	msg := liveMessage(roomID, 1, "alice")
	req.NoError(timeline.Consume(ctx, event.MessageCommitted{Message: msg}))

	edited := msg
	edited.Ciphertext = []byte("corrected payload")
	edited.Status = domain.MessageEdited
	req.NoError(timeline.Consume(ctx, event.MessageEdited{Message: edited}))
	req.Equal(domain.MessageEdited, timeline.Messages()[0].Status)

	req.NoError(timeline.Consume(ctx, event.MessageDeleted{
		Room:      roomID,
		MessageID: msg.ID,
		Sequence:  msg.Sequence,
		DeletedBy: "alice",
	}))
	messages := timeline.Messages()
	req.Len(messages, 1)
	req.True(messages[0].IsTombstone())
	req.Nil(messages[0].Ciphertext)
}
