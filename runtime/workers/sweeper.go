package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"workroom/contract"
	"workroom/domain"
	"workroom/repositories"
	"workroom/runtime"
)

var _ contract.Worker = (*InvitationSweeper)(nil)

// InvitationSweeper actively marks overdue pending invitations as
// expired. Expiry is already enforced lazily at accept time; the
// sweep only tidies invitations nobody ever tries to accept. Both
// paths converge on the same terminal status.
type InvitationSweeper struct {
	log          *slog.Logger
	participants repositories.IParticipantRepository
	locks        *runtime.LockArena
	interval     time.Duration
}

func NewInvitationSweeper(
	log *slog.Logger,
	participants repositories.IParticipantRepository,
	locks *runtime.LockArena,
	interval time.Duration) *InvitationSweeper {
	return &InvitationSweeper{log: log, participants: participants, locks: locks, interval: interval}
}

func (w *InvitationSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.sweep(time.Now().UTC()); err != nil {
				w.log.Warn("Invitation sweep failed", "error", err)
			}
		case <-ctx.Done():
			w.log.Debug("Context done, stopping invitation sweeper")
			return nil
		}
	}
}

func (w *InvitationSweeper) sweep(now time.Time) error {
	expired, err := w.participants.PendingExpiredBefore(now)
	if err != nil {
		return err
	}
	for _, inv := range expired {
		// Re-check under the room lock: a concurrent accept on a
		// not-yet-expired read must not be overwritten.
		unlock := w.locks.Lock(inv.RoomID.String())
		current, err := w.participants.GetInvitation(inv.ID)
		if err == nil && current.Status == domain.InvitationPending {
			current.Status = domain.InvitationExpired
			err = w.participants.UpdateInvitation(current)
		}
		unlock()
		if err != nil {
			return err
		}
		w.log.Debug(fmt.Sprintf("Invitation %s expired by sweep", inv.ID))
	}
	return nil
}
