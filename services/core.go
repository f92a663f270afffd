package services

// Core aggregates the messaging components the platform's route
// layer mounts. Construction wires all dependencies explicitly; there
// are no process-wide mutable singletons.
type Core struct {
	Rooms        IRoomService
	Participants IParticipantService
	Messages     IMessageService
	Encryption   IEncryptionService
}
