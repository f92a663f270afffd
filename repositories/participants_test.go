package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"workroom/domain"
	apperrors "workroom/errors"
)

func Test_Upsert_And_Get_Participant(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewParticipantRepository(db, slog.Default())
	roomID := uuid.New()

	p := domain.Participant{
		RoomID:   roomID,
		UserID:   "alice",
		Role:     domain.RoleAdmin,
		Status:   domain.ParticipantActive,
		JoinedAt: time.Now().UTC(),
	}
	req.NoError(repository.Upsert(p))

	fetched, err := repository.Get(roomID, "alice")
	req.NoError(err)
	req.Equal(domain.RoleAdmin, fetched.Role)
	req.True(fetched.IsActive())

	_, err = repository.Get(roomID, "nobody")
	req.ErrorIs(err, apperrors.ErrNotParticipant)

	// Upsert is idempotent on the (room, user) pair
	p.Status = domain.ParticipantRemoved
	req.NoError(repository.Upsert(p))
	all, err := repository.ListByRoom(roomID)
	req.NoError(err)
	req.Len(all, 1)
	req.Equal(domain.ParticipantRemoved, all[0].Status)
}

func Test_ActiveAdmins_Ignores_Removed_And_Other_Roles(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewParticipantRepository(db, slog.Default())
	roomID := uuid.New()

	participants := []domain.Participant{
		{RoomID: roomID, UserID: "alice", Role: domain.RoleAdmin, Status: domain.ParticipantActive},
		{RoomID: roomID, UserID: "bob", Role: domain.RoleAdmin, Status: domain.ParticipantRemoved},
		{RoomID: roomID, UserID: "clara", Role: domain.RoleMember, Status: domain.ParticipantActive},
		{RoomID: roomID, UserID: "dave", Role: domain.RoleModerator, Status: domain.ParticipantActive},
	}
	for _, p := range participants {
		req.NoError(repository.Upsert(p))
	}

	admins, err := repository.ActiveAdmins(roomID)
	req.NoError(err)
	req.Equal(1, admins)
}

func Test_PendingInvitation_Tracks_Lifecycle(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewParticipantRepository(db, slog.Default())
	roomID := uuid.New()

	inv := domain.Invitation{
		ID:        uuid.New(),
		RoomID:    roomID,
		InviteeID: "bob",
		InviterID: "alice",
		Status:    domain.InvitationPending,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	req.NoError(repository.SaveInvitation(inv))

	// While pending, the (room, user) index resolves it
	pending, err := repository.PendingInvitation(roomID, "bob")
	req.NoError(err)
	req.NotNil(pending)
	req.Equal(inv.ID, pending.ID)

	// Accepting removes it from the pending index but keeps the record
	inv.Status = domain.InvitationAccepted
	req.NoError(repository.UpdateInvitation(inv))

	pending, err = repository.PendingInvitation(roomID, "bob")
	req.NoError(err)
	req.Nil(pending)

	stored, err := repository.GetInvitation(inv.ID)
	req.NoError(err)
	req.Equal(domain.InvitationAccepted, stored.Status)

	_, err = repository.GetInvitation(uuid.New())
	req.ErrorIs(err, apperrors.ErrInvitationNotFound)
}

func Test_PendingExpiredBefore_Only_Returns_Overdue_Pending(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewParticipantRepository(db, slog.Default())
	now := time.Now().UTC()

	overdue := domain.Invitation{
		ID: uuid.New(), RoomID: uuid.New(), InviteeID: "bob", InviterID: "alice",
		Status: domain.InvitationPending, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	fresh := domain.Invitation{
		ID: uuid.New(), RoomID: uuid.New(), InviteeID: "clara", InviterID: "alice",
		Status: domain.InvitationPending, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	alreadyDone := domain.Invitation{
		ID: uuid.New(), RoomID: uuid.New(), InviteeID: "dave", InviterID: "alice",
		Status: domain.InvitationAccepted, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	for _, inv := range []domain.Invitation{overdue, fresh, alreadyDone} {
		req.NoError(repository.SaveInvitation(inv))
	}

	expired, err := repository.PendingExpiredBefore(now)
	req.NoError(err)
	req.Len(expired, 1)
	req.Equal(overdue.ID, expired[0].ID)
}
