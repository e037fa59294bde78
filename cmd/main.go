package main

import (
	"chat-live/auth"
	"chat-live/contract"
	"chat-live/fabric"
	"chat-live/infrastructure/api"
	"chat-live/infrastructure/grpc/server"
	"chat-live/internal"
	"chat-live/moderation"
	"chat-live/observability"
	"chat-live/repositories"
	"chat-live/runtime"
	"chat-live/runtime/workers"
	"chat-live/search"
	"chat-live/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	grpc3 "github.com/mama165/sdk-go/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat-live terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning instead of exiting lets every defer (database, index, redis) run before the process ends.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	logger = logger.With("instance", instanceID)

	ctx := context.Background()

	// 2. Storage (BadgerDB) & Search index (Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s?prefix=msg:", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, MessageMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Moderation
	var moderator *moderation.Moderator
	if config.EnableModeration {
		censored, err := moderation.NewEmbeddedLoader().LoadAll("censored")
		if err != nil {
			return exitConfig, fmt.Errorf("censored words loading failed: %w", err)
		}
		moderator, err = moderation.NewModerator(censored.Words, charReplacement, logger)
		if err != nil {
			return exitConfig, fmt.Errorf("moderator init failed: %w", err)
		}
		logger.Info("Moderation enabled", "words", len(censored.Words), "languages", censored.Languages)
	}

	// 4. Repositories & Authorization
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	chatRepository := repositories.NewChatRepository(db)

	var authorizer contract.Authorizer = auth.AllowAll{}
	if config.EnforceRoomMembership {
		authorizer = auth.NewParticipantAuthorizer(chatRepository)
	} else {
		logger.Warn("Room membership is not enforced, every authenticated user may join any room")
	}

	// 5. Delivery core
	monitoring := observability.NewMonitoringManager(logger)
	registry := runtime.NewRegistry()
	groups := runtime.NewDeliveryGroups()
	lifecycle := runtime.NewLifecycle(logger, registry, groups, authorizer)
	ingestion := runtime.NewIngestionPipeline(logger, messageRepository, moderator,
		config.IngestionTimeout, config.MaxContentLength)

	index := search.NewIndexSink(logger, blugeWriter, config.IndexBufferSize)
	router := runtime.NewRouter(logger, groups, instanceID, config.SinkTimeout, monitoring).Add(index)

	if config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			return exitRuntime, fmt.Errorf("redis unreachable at %s: %w", config.RedisAddr, err)
		}
		router.WithFabric(fabric.NewRedisFabric(client, config.RedisChannel, logger))
		logger.Info("Cross-instance delivery enabled", "redis", config.RedisAddr, "channel", config.RedisChannel)
	}

	// 6. Supervision & Orchestration
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(
		logger, sup, registry, groups, lifecycle, ingestion, router, messageRepository, monitoring,
		config.RoomBufferSize, config.RoomIdleTimeout, config.MetricInterval,
	)
	orchestrator.AddWorkers(index)

	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("orchestrator error: %w", err)
	}

	// 7. Transports
	errChan := make(chan error, 2)

	tokens := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(orchestrator, chatRepository, index, authorizer, monitoring, config.SearchLimit)
	apiServer := api.NewServer(ctx, logger, chatService, tokens, monitoring, config.Origins(),
		config.ConnectionBufferSize, config.DeliveryTimeout, config.MaxFrameSize)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		orchestrator.Stop()
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(logger)))
	healthServer := server.NewHealthServer(logger)
	healthServer.Register(s)

	go func() {
		logger.Info("Starting gRPC server", "address", grpcAddress, "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("📡 gRPC exposed services", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	healthServer.Serving(true)

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 9. Final Cleanup (Graceful Shutdown)
	// Health goes first so load balancers stop routing before connections are closed.
	logger.Info("Shutting down gracefully...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	s.GracefulStop()
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}

// MessageMapper renders the msg: and chat: records on the debug inspector.
func MessageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "msg:"):
		m, err := repositories.DecodeMessage(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("%s: %s", m.Author, m.Text)
		if m.ImageName != "" {
			row.Detail += fmt.Sprintf(" [%s %s]", m.ImageName, m.ImageMime)
		}
		row.Scores = m.Lang
	case strings.HasPrefix(key, "chat:"):
		c, err := repositories.DecodeChat(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "CHAT"
		row.Detail = fmt.Sprintf("%s (%d participants)", c.Name, len(c.Participants))
	}
	return row
}
