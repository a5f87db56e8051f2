package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/parleyhq/session-service/config"
	"github.com/parleyhq/session-service/internal/domain"
	"github.com/parleyhq/session-service/internal/genai"
	"github.com/parleyhq/session-service/internal/observer"
	"github.com/parleyhq/session-service/internal/postgres"
	"github.com/parleyhq/session-service/internal/service"
	"github.com/parleyhq/session-service/internal/session"
	grpcx "github.com/parleyhq/session-service/internal/transport/grpc"
	httpx "github.com/parleyhq/session-service/internal/transport/http"
	"github.com/parleyhq/session-service/internal/transport/ws"
	"github.com/parleyhq/session-service/pkg/logger"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting session-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- repos ---
	roomRepo := postgres.NewRoomRepository(db.Pool)
	msgRepo := postgres.NewMessageRepository(db.Pool)
	tmplRepo := postgres.NewTemplateRepository(db.Pool)

	if err := tmplRepo.Seed(ctx, domain.DefaultTemplates()); err != nil {
		slog.Warn("template seed failed", "err", err)
	}

	// --- services & coordinator ---
	roomSvc := service.NewRoomService(roomRepo, tmplRepo, cfg.Rooms.PublicURL)
	archiver := service.NewArchiver(roomRepo, cfg.Rooms.SweepEveryDur, cfg.Rooms.RetentionDur)

	hub := session.NewHub()
	coord := session.NewCoordinator(roomRepo, msgRepo, hub)

	// --- observer ---
	gen := genai.New(genai.Config{
		APIKey:  cfg.GenAI.APIKey,
		Model:   cfg.GenAI.Model,
		BaseURL: cfg.GenAI.BaseURL,
	})
	slog.Info("generation collaborator", "enabled", gen.Enabled())

	if gen.Enabled() {
		sched := observer.NewScheduler(observer.Config{
			Interval:            cfg.Observer.IntervalDur,
			MinMessages:         cfg.Observer.MinMessages,
			PromptWindow:        cfg.Observer.PromptWindow,
			MaxReplyLen:         cfg.Observer.MaxReplyLen,
			GenTimeout:          cfg.Observer.GenTimeoutDur,
			RequireMinOnTrigger: cfg.Observer.RequireMinOnTrigger,
		}, gen, coord, tmplRepo)
		coord.SetObserverTrigger(sched.Trigger)
		go sched.Run(ctx)
	}

	go archiver.Run(ctx)

	// --- WS & HTTP ---
	wsServer := ws.NewServer(coord)
	handler := httpx.NewHandler(roomSvc, coord)
	router := httpx.NewRouter(handler, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- gRPC health ---
	grpcServer, healthSrv := grpcx.NewHealthServer()

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}
	stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer.GracefulStop()
	_ = httpSrv.Shutdown(ctxShutdown)

	// Best-effort durability for whatever only lived in memory.
	coord.FlushAll(ctxShutdown)

	slog.Info("stopped")
}
