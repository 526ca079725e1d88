package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"quiz-lab/auth"
	"quiz-lab/infrastructure/api"
	"quiz-lab/infrastructure/storage"
	"quiz-lab/infrastructure/ws"
	"quiz-lab/internal"
	"quiz-lab/moderation"
	"quiz-lab/observability"
	"quiz-lab/runtime"
	"quiz-lab/runtime/workers"
	"quiz-lab/services"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Returning instead of exiting lets the deferred cleanups run.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	if !strings.EqualFold(config.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation
	dictionary, err := moderation.DefaultDictionary()
	if err != nil {
		return exitConfig, fmt.Errorf("censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(dictionary.Words, charReplacement, log)
	if err != nil {
		return exitConfig, fmt.Errorf("moderator: %w", err)
	}
	log.Info("Moderator ready", "words", len(dictionary.Words), "languages", dictionary.Languages)

	// 4. Session core
	clock := runtime.SystemClock{}
	registry := runtime.NewRegistry(clock)
	timers := runtime.NewTimers(clock)
	hub := ws.NewHub(log)
	monitor := observability.NewMonitoringManager(log, config.MetricInterval, registry.Len)
	notifier := observability.NewCountingNotifier(hub, monitor)
	bank := storage.NewQuestionBank(db)

	game := services.NewGame(log, services.GameConfig{
		HostGracePeriod:    config.HostGracePeriod,
		AbandonedRetention: config.AbandonedRetention,
		TickInterval:       time.Second,
		MaxPlayers:         config.MaxPlayers,
	}, clock, registry, timers, notifier, bank)
	hosts := services.NewHostService(game, log)
	hosts.OnAction(func(services.ActionResult) { monitor.IncrHostActions() })
	players := services.NewPlayerService(game, log, moderator)

	// 5. Background workers
	sweeper := workers.NewCleanupSweeper(log, workers.SweeperConfig{
		Interval:             config.SweepInterval,
		FinishedTimeout:      internal.Minutes(config.CleanupFinishedMin),
		WaitingTimeout:       internal.Minutes(config.CleanupWaitingMin),
		CancelledTimeout:     internal.Minutes(config.CleanupCancelledMin),
		ActiveTimeout:        internal.Minutes(config.CleanupActiveMin),
		FirstWarning:         config.WarningFirstFraction,
		FinalWarning:         config.WarningFinalFraction,
		MinRoomAge:           config.MinRoomAge,
		MaxDeletionsPerCycle: config.MaxDeletionsPerCycle,
		MaxWarningsPerCycle:  config.MaxWarningsPerCycle,
	}, clock, game, notifier)
	sweeper.OnSweep(func(r workers.SweepReport) { monitor.RecordSweep(r.Warned, r.Deleted, r.Failed) })
	snapshots := storage.NewSnapshotRepository(db, log, config.SnapshotRetention)
	mirror := workers.NewSnapshotMirror(log, game, snapshots, config.SnapshotInterval)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log, config.RestartInterval)
	supDone := make(chan struct{})
	go func() {
		sup.Add(sweeper, mirror, monitor).Run(ctx)
		close(supDone)
	}()

	if config.DebugPort > 0 {
		internal.StartDebugServer(ctx, log, db, config.DebugPort, "/inspect", internal.SnapshotMapper, monitor.AsMap)
	}

	// 7. HTTP & websocket server
	tokens := auth.NewTokens(config.JwtSecret, config.AuthTokenDuration)
	handler := api.NewHandler(log, tokens, game, hosts, ws.NewRouter(log, hub, players, hosts), bank, config.DevAuth)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           handler.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 8. gRPC health server
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting gRPC health server", "address", grpcAddress)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	exitCode := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		exitCode = exitRuntime
	}

	// 10. Final Cleanup
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	grpcServer.GracefulStop()
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly", "rooms", registry.Len(), "timers", timers.Len())

	return exitCode, runErr
}
