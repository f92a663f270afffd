package services

import (
	"fmt"
	"log/slog"
	"time"

	"workroom/contract"
	"workroom/domain"
	"workroom/domain/event"
	"workroom/errors"
	"workroom/repositories"
	"workroom/runtime"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// AddParticipantsResult reports what each requested user received:
// general rooms add members directly, other rooms issue invitations.
type AddParticipantsResult struct {
	Added   []domain.Participant
	Invited []domain.Invitation
}

type IParticipantService interface {
	AddParticipants(cmd domain.AddParticipantsCommand) (AddParticipantsResult, error)
	RemoveParticipant(cmd domain.RemoveParticipantCommand) error
	AcceptRoomInvitation(cmd domain.AcceptInvitationCommand) (domain.Participant, error)
	RevokeRoomInvitation(cmd domain.RevokeInvitationCommand) error
	RewrapHistory(roomID uuid.UUID, actorID, targetID string) ([]domain.RoomKeyGrant, error)
}

// ParticipantService drives the membership and invitation state
// machine. Every mutation runs under the room's writer lock.
type ParticipantService struct {
	rooms         repositories.IRoomRepository
	participants  repositories.IParticipantRepository
	encryption    IEncryptionService
	bus           contract.EventBus
	locks         *runtime.LockArena
	invitationTTL time.Duration
	log           *slog.Logger
}

func NewParticipantService(
	rooms repositories.IRoomRepository,
	participants repositories.IParticipantRepository,
	encryption IEncryptionService,
	bus contract.EventBus,
	locks *runtime.LockArena,
	invitationTTL time.Duration,
	log *slog.Logger) *ParticipantService {
	return &ParticipantService{
		rooms:         rooms,
		participants:  participants,
		encryption:    encryption,
		bus:           bus,
		locks:         locks,
		invitationTTL: invitationTTL,
		log:           log,
	}
}

// AddParticipants deduplicates against existing members and pending
// invitations. General rooms add directly; group rooms invite with
// the configured TTL; direct rooms enforce their two-member capacity.
func (s *ParticipantService) AddParticipants(cmd domain.AddParticipantsCommand) (AddParticipantsResult, error) {
	var result AddParticipantsResult
	if err := validateCommand(cmd); err != nil {
		return result, err
	}
	unlock := s.locks.Lock(cmd.RoomID.String())
	defer unlock()

	room, err := loadWritableRoom(s.rooms, cmd.RoomID)
	if err != nil {
		return result, err
	}
	actor, err := activeParticipant(s.participants, cmd.RoomID, cmd.ActorID)
	if err != nil {
		return result, err
	}
	if !actor.Role.CanInvite() {
		return result, errors.ErrForbidden
	}

	newcomers, occupied, err := s.dedupe(room, cmd.UserIDs)
	if err != nil {
		return result, err
	}
	if room.Kind == domain.RoomKindDirect && occupied+len(newcomers) > domain.DirectRoomCapacity {
		return result, errors.ErrInvalidKind
	}

	now := time.Now().UTC()
	for _, userID := range newcomers {
		if room.Kind == domain.RoomKindGeneral {
			participant, err := s.join(room, userID, domain.RoleMember, cmd.ActorID, now)
			if err != nil {
				return result, err
			}
			result.Added = append(result.Added, participant)
			continue
		}
		inv := domain.Invitation{
			ID:        uuid.New(),
			RoomID:    room.ID,
			InviteeID: userID,
			InviterID: cmd.ActorID,
			Status:    domain.InvitationPending,
			CreatedAt: now,
			ExpiresAt: now.Add(s.invitationTTL),
		}
		if err = s.participants.SaveInvitation(inv); err != nil {
			return result, err
		}
		result.Invited = append(result.Invited, inv)
		s.bus.Publish(event.ParticipantInvited{Room: room.ID, Invitation: inv})
	}
	return result, nil
}

// dedupe splits the requested users into genuine newcomers and
// reports how many seats are already taken (active or invited).
func (s *ParticipantService) dedupe(room domain.Room, userIDs []string) ([]string, int, error) {
	existing, err := s.participants.ListByRoom(room.ID)
	if err != nil {
		return nil, 0, err
	}
	occupied := lo.CountBy(existing, func(p domain.Participant) bool {
		return p.Status != domain.ParticipantRemoved
	})
	// Open invitations hold a seat too, or a direct room could be
	// overfilled by inviting while an earlier invite is still pending.
	pendingCount, err := s.participants.CountPendingInvitations(room.ID)
	if err != nil {
		return nil, 0, err
	}
	occupied += pendingCount

	var newcomers []string
	for _, userID := range lo.Uniq(userIDs) {
		taken := lo.ContainsBy(existing, func(p domain.Participant) bool {
			return p.UserID == userID && p.Status != domain.ParticipantRemoved
		})
		if taken {
			continue
		}
		pending, err := s.participants.PendingInvitation(room.ID, userID)
		if err != nil {
			return nil, 0, err
		}
		if pending != nil {
			continue
		}
		newcomers = append(newcomers, userID)
	}
	return newcomers, occupied, nil
}

// join activates a participant and issues the current room key when
// the user has initialized encryption. Callers hold the room lock.
func (s *ParticipantService) join(room domain.Room, userID string, role domain.Role, invitedBy string, now time.Time) (domain.Participant, error) {
	participant := domain.Participant{
		RoomID:    room.ID,
		UserID:    userID,
		Role:      role,
		Status:    domain.ParticipantActive,
		JoinedAt:  now,
		InvitedBy: invitedBy,
	}
	if err := s.participants.Upsert(participant); err != nil {
		return domain.Participant{}, err
	}
	if s.encryption.HasBundle(userID) {
		if _, err := s.encryption.GrantRoomKey(room.ID, userID); err != nil {
			return domain.Participant{}, err
		}
	} else {
		s.log.Debug(fmt.Sprintf("User %s joined room %s without encryption bundle, key grant deferred", userID, room.ID))
	}
	s.bus.Publish(event.ParticipantJoined{Room: room.ID, Participant: participant})
	return participant, nil
}

// RemoveParticipant allows self-leave or removal by an admin. The
// removed user's message history is preserved. The room key rotates
// so departed members cannot read traffic from later epochs, and the
// remaining active participants are re-granted.
func (s *ParticipantService) RemoveParticipant(cmd domain.RemoveParticipantCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	unlock := s.locks.Lock(cmd.RoomID.String())
	defer unlock()

	room, err := loadWritableRoom(s.rooms, cmd.RoomID)
	if err != nil {
		return err
	}
	target, err := activeParticipant(s.participants, cmd.RoomID, cmd.TargetID)
	if err != nil {
		return err
	}
	if cmd.ActorID != cmd.TargetID {
		if _, err = requireAdmin(s.participants, cmd.RoomID, cmd.ActorID); err != nil {
			return err
		}
	}
	if target.Role == domain.RoleAdmin {
		admins, err := s.participants.ActiveAdmins(cmd.RoomID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return errors.ErrLastAdmin
		}
	}

	target.Status = domain.ParticipantRemoved
	if err = s.participants.Upsert(target); err != nil {
		return err
	}

	rotated, err := s.encryption.RotateRoomKey(room.ID)
	if err != nil {
		return err
	}
	remaining, err := s.participants.ListByRoom(room.ID)
	if err != nil {
		return err
	}
	for _, p := range remaining {
		if p.IsActive() && s.encryption.HasBundle(p.UserID) {
			if _, err = s.encryption.GrantRoomKey(room.ID, p.UserID); err != nil {
				return err
			}
		}
	}

	s.bus.Publish(event.ParticipantRemoved{Room: room.ID, UserID: cmd.TargetID, RemovedBy: cmd.ActorID})
	s.bus.Publish(event.RoomKeyRotated{Room: room.ID, Epoch: rotated.Epoch})
	return nil
}

// AcceptRoomInvitation is exactly-once: concurrent accepts serialize
// on the room lock, and only the first sees a pending status. Expiry
// is enforced lazily here; an overdue accept transitions the
// invitation to expired and fails.
func (s *ParticipantService) AcceptRoomInvitation(cmd domain.AcceptInvitationCommand) (domain.Participant, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.Participant{}, err
	}
	inv, err := s.participants.GetInvitation(cmd.InvitationID)
	if err != nil {
		return domain.Participant{}, err
	}

	unlock := s.locks.Lock(inv.RoomID.String())
	defer unlock()

	// Reload under the lock: a concurrent accept may have resolved it.
	inv, err = s.participants.GetInvitation(cmd.InvitationID)
	if err != nil {
		return domain.Participant{}, err
	}
	if inv.InviteeID != cmd.UserID {
		return domain.Participant{}, errors.ErrForbidden
	}
	if inv.Status != domain.InvitationPending {
		return domain.Participant{}, errors.ErrInvitationAlreadyDone
	}
	now := time.Now().UTC()
	if inv.ExpiredAt(now) {
		inv.Status = domain.InvitationExpired
		if err = s.participants.UpdateInvitation(inv); err != nil {
			return domain.Participant{}, err
		}
		return domain.Participant{}, errors.ErrInvitationExpired
	}

	room, err := loadWritableRoom(s.rooms, inv.RoomID)
	if err != nil {
		return domain.Participant{}, err
	}

	inv.Status = domain.InvitationAccepted
	if err = s.participants.UpdateInvitation(inv); err != nil {
		return domain.Participant{}, err
	}
	return s.join(room, cmd.UserID, domain.RoleMember, inv.InviterID, now)
}

// RevokeRoomInvitation withdraws a pending invitation. The inviter
// may revoke their own invite; anyone else needs invite rights.
func (s *ParticipantService) RevokeRoomInvitation(cmd domain.RevokeInvitationCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	inv, err := s.participants.GetInvitation(cmd.InvitationID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(inv.RoomID.String())
	defer unlock()

	// Reload under the lock: an accept may have resolved it meanwhile.
	inv, err = s.participants.GetInvitation(cmd.InvitationID)
	if err != nil {
		return err
	}
	if cmd.ActorID != inv.InviterID {
		actor, err := activeParticipant(s.participants, inv.RoomID, cmd.ActorID)
		if err != nil {
			return err
		}
		if !actor.Role.CanInvite() {
			return errors.ErrForbidden
		}
	}
	if inv.Status != domain.InvitationPending {
		return errors.ErrInvitationAlreadyDone
	}

	inv.Status = domain.InvitationRevoked
	if err = s.participants.UpdateInvitation(inv); err != nil {
		return err
	}
	s.bus.Publish(event.InvitationRevoked{
		Room:         inv.RoomID,
		InvitationID: inv.ID,
		InviteeID:    inv.InviteeID,
		RevokedBy:    cmd.ActorID,
	})
	return nil
}

// RewrapHistory grants the target every past key epoch of the room.
// Admin-only: this is the sole path to decrypting messages older than
// the target's join epoch.
func (s *ParticipantService) RewrapHistory(roomID uuid.UUID, actorID, targetID string) ([]domain.RoomKeyGrant, error) {
	unlock := s.locks.Lock(roomID.String())
	defer unlock()

	if _, err := requireAdmin(s.participants, roomID, actorID); err != nil {
		return nil, err
	}
	if _, err := activeParticipant(s.participants, roomID, targetID); err != nil {
		return nil, err
	}
	return s.encryption.RewrapHistory(roomID, targetID)
}
