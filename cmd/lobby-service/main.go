package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/needle-drop/lobby-service/config"
	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/lobby"
	"github.com/needle-drop/lobby-service/internal/playback"
	"github.com/needle-drop/lobby-service/internal/queue"
	grpcx "github.com/needle-drop/lobby-service/internal/transport/grpc"
	httpx "github.com/needle-drop/lobby-service/internal/transport/http"
	"github.com/needle-drop/lobby-service/internal/transport/ws"
	"github.com/needle-drop/lobby-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	// экземпляры делят хранилище, по store видно какое
	lg := logger.Init(logger.Config{
		Env:        logger.ParseEnv(cfg.Logging.Env),
		Service:    cfg.Logging.Service,
		Version:    cfg.Logging.Version,
		InstanceID: cfg.Logging.InstanceID,
		Attrs:      []slog.Attr{slog.String("store", cfg.Store.Backend)},
		Backend:    logger.Backend(cfg.Logging.Backend),
		Level:      level,
		AddSource:  cfg.Logging.AddSource,
		Debug:      cfg.Logging.Debug,
	})
	slog.Info("starting lobby-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "instance", logger.Self().ID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("stopped")
}

func run(ctx context.Context, cfg *config.Config, lg *slog.Logger) error {
	// --- store ---
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// --- queue & clock ---
	engine := queue.NewEngine(st, playback.NewClock(st), queue.Options{
		Thresholds: queue.Thresholds{PromoteAt: *cfg.Queue.PromoteAt, DemoteAt: *cfg.Queue.DemoteAt},
		Retries:    cfg.Queue.Retries,
	})

	// --- hub ---
	b := cfg.Lobby.Bounds
	hub := lobby.NewHub(lobby.Config{
		Spawn:            domain.Position{X: cfg.Lobby.Spawn.X, Y: cfg.Lobby.Spawn.Y},
		Bounds:           domain.Bounds{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY},
		MaxNameLength:    cfg.Lobby.MaxNameLength,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		HistorySize:      cfg.Chat.HistorySize,
		RetainEmptyChat:  cfg.Chat.RetainEmpty,
		InboxSize:        cfg.Lobby.InboxSize,
		OpTimeout:        cfg.Lobby.OpTimeoutOr(),
	}, engine, lg)

	// --- WS & HTTP ---
	wsServer := ws.NewServer(hub, ws.Config{
		PingInterval:   cfg.WS.PingIntervalOr(),
		WriteTimeout:   cfg.WS.WriteTimeoutOr(),
		ReadLimit:      cfg.WS.ReadLimit,
		OutboundBuffer: cfg.WS.OutboundBuffer,
		RateLimit:      cfg.WS.RateLimit,
		RateBurst:      cfg.WS.RateBurst,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, lg)

	read, write, idle, request := cfg.HTTP.Timeouts()
	router := httpx.NewRouter(httpx.NewHandler(hub, lg), wsServer.HandleWS, httpx.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: request,
	}, lg)
	httpSrv := httpx.New(httpx.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, router)

	// --- gRPC ---
	grpcServer, health := grpcx.NewGRPCServer(grpcx.Config{
		Addr:        cfg.GRPC.Addr,
		CallTimeout: cfg.GRPC.CallTimeoutOr(),
	}, hub, lg)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}

	// --- run ---
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	done := make(chan struct{}, 3)
	launch := func(name string, fn func() error) {
		go func() {
			defer func() { done <- struct{}{} }()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	launch("hub", func() error { return hub.Run(runCtx) })
	launch("http", func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		return httpSrv.Run(runCtx)
	})
	launch("grpc", func() error {
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		return grpcx.Serve(runCtx, grpcServer, health, lis)
	})

	// --- graceful shutdown ---
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case runErr = <-errCh:
	}
	cancel()
	for range 3 {
		<-done
	}
	return runErr
}
