package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "chesschat/internal/config"
	"chesschat/internal/game"
	"chesschat/internal/msgcat"
	"chesschat/internal/obslog"
	"chesschat/internal/realtime"
	"chesschat/internal/rules"
	"chesschat/internal/server"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	cat, err := msgcat.New(cfg.MsgTemplateDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rdb, err := game.NewClient(ctx, cfg.RedisURL)
	cancel()
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}

	store := game.NewStore(rdb, cfg.GameTTL)
	hub := realtime.NewHub()
	svc := game.NewService(store, rules.New(), hub)

	var archive *game.Archive
	if cfg.DatabaseURL != "" {
		archive, err = game.NewArchive(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		svc.AttachArchive(archive)
	}

	gateway := realtime.NewGateway(hub, cfg.AllowedOrigins)
	srv := server.New(cfg.ListenAddr, svc, gateway, cat)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		obslog.L().Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			obslog.L().Error("server_error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = rdb.Close()
	if archive != nil {
		_ = archive.Close()
	}
	_ = obslog.L().Sync()
}
