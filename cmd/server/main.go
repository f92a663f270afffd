package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"workroom/auth"
	"workroom/contract"
	"workroom/internal"
	"workroom/observability"
	"workroom/repositories"
	"workroom/runtime"
	"workroom/runtime/workers"
	"workroom/services"
	"workroom/sink"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper: its only
	// responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the lifecycle, and
// centralizes error reporting so all defers execute before exit.
func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := internal.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLogger(nil))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Ensures the database lock is released and buffers are
		// flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	roomRepo := repositories.NewRoomRepository(db, logger)
	participantRepo := repositories.NewParticipantRepository(db, logger)
	messageRepo := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	keyRepo := repositories.NewKeyRepository(db, logger)
	auditRepo := repositories.NewAuditRepository(db, logger)

	// 4. Runtime
	monitoring := observability.NewMonitoring()
	locks := runtime.NewLockArena()
	registry := runtime.NewRegistry(monitoring)
	bus := runtime.NewBus(logger, config.BufferSize, monitoring)
	jobs := runtime.NewJobs(logger, monitoring)

	// 5. Services
	encryptionService := services.NewEncryptionService(keyRepo, logger)
	participantService := services.NewParticipantService(
		roomRepo, participantRepo, encryptionService, bus, locks, config.InvitationTTL, logger)
	roomService := services.NewRoomService(
		roomRepo, participantRepo, messageRepo, encryptionService, bus, jobs, locks,
		config.DeleteBatchSize, logger)
	messageService := services.NewMessageService(
		roomRepo, participantRepo, messageRepo, bus, locks, monitoring, logger)
	core := services.Core{
		Rooms:        roomService,
		Participants: participantService,
		Messages:     messageService,
		Encryption:   encryptionService,
	}
	tokens := auth.NewTokenManager([]byte(config.AuthTokenSecret), config.AuthTokenDuration)
	if strings.EqualFold(config.LogLevel, "DEBUG") {
		internal.StartDebugServer(core, tokens, monitoring, config.DebugPort, logger)
	}

	// 6. Workers
	permanentSinks := []contract.EventSink{
		sink.NewAuditSink(auditRepo, logger),
	}
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(
		workers.NewEventFanout(logger, registry, bus.Events(), permanentSinks, config.SinkTimeout, monitoring),
		workers.NewTelemetry(logger, monitoring, config.MetricInterval),
		workers.NewInvitationSweeper(logger, participantRepo, locks, config.SweepInterval),
	)

	logger.Info("Messaging core started, waiting for shutdown signal")
	supervisor.Run(ctx)

	// Drain in-flight export/delete jobs before closing the store.
	jobs.Wait()
	return exitOK, nil
}
