package errors

import "fmt"

// Authorization and state-validity failures return synchronously to
// the caller and are never retried. ErrTransientStore is retried
// internally with bounded backoff before surfacing.
var (
	ErrNotParticipant        = fmt.Errorf("caller is not an active participant of the room")
	ErrRoomArchived          = fmt.Errorf("room is archived")
	ErrRoomDeleted           = fmt.Errorf("room is deleted")
	ErrRoomNotFound          = fmt.Errorf("room not found")
	ErrInvalidKind           = fmt.Errorf("room kind not supported for this operation")
	ErrInvitationExpired     = fmt.Errorf("invitation has expired")
	ErrInvitationAlreadyDone = fmt.Errorf("invitation already resolved")
	ErrInvitationNotFound    = fmt.Errorf("invitation not found")
	ErrForbidden             = fmt.Errorf("caller role does not permit this operation")
	ErrMessageNotFound       = fmt.Errorf("message not found")
	ErrEncryptionNotReady    = fmt.Errorf("user encryption is not initialized")
	ErrKeyEpochNotFound      = fmt.Errorf("no room key for requested epoch")
	ErrTransientStore        = fmt.Errorf("transient store failure")
	ErrInvalidCommand        = fmt.Errorf("invalid command")
	ErrLastAdmin             = fmt.Errorf("room would be left without an active admin")
	ErrWorkerPanic           = fmt.Errorf("worker panic")
)
