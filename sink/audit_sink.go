// Package sink holds permanent event sinks: consumers attached to
// the fan-out regardless of which sessions are connected.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"workroom/domain"
	"workroom/domain/event"
	"workroom/repositories"
)

// AuditSink records destructive and membership-changing operations.
// It rides the committed-event stream, so a write that never commits
// is never audited.
type AuditSink struct {
	audit repositories.IAuditRepository
	log   *slog.Logger
}

func NewAuditSink(audit repositories.IAuditRepository, log *slog.Logger) AuditSink {
	return AuditSink{audit: audit, log: log}
}

func (s AuditSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.RoomArchived:
		return s.audit.Store(domain.AuditEntry{
			RoomID: evt.Room, Action: "room.archive", ActorID: evt.ArchivedBy, At: evt.At,
		})
	case event.ConversationDeleted:
		return s.audit.Store(domain.AuditEntry{
			RoomID: evt.Room, Action: "conversation.delete", ActorID: evt.DeletedBy,
			Detail: fmt.Sprintf("tombstoned=%d", evt.Tombstoned), At: evt.At,
		})
	case event.ParticipantJoined:
		return s.audit.Store(domain.AuditEntry{
			RoomID: evt.Room, Action: "participant.join", ActorID: evt.Participant.UserID,
			Detail: fmt.Sprintf("role=%s invited_by=%s", evt.Participant.Role, evt.Participant.InvitedBy),
			At:     evt.Participant.JoinedAt,
		})
	case event.ParticipantRemoved:
		return s.audit.Store(domain.AuditEntry{
			RoomID: evt.Room, Action: "participant.remove", ActorID: evt.RemovedBy,
			Detail: fmt.Sprintf("target=%s", evt.UserID), At: time.Now().UTC(),
		})
	default:
		return nil
	}
}
