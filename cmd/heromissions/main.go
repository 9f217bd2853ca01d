package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meltforce/heromissions/internal/catalog"
	"github.com/meltforce/heromissions/internal/config"
	"github.com/meltforce/heromissions/internal/mcp"
	"github.com/meltforce/heromissions/internal/server"
	"github.com/meltforce/heromissions/internal/session"
	"github.com/meltforce/heromissions/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("HeroMissions starting", "version", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	opts := []catalog.Option{catalog.WithDefaultMinConfidence(cfg.Missions.MinConfidence)}
	var cat *catalog.Catalog
	if cfg.Missions.CatalogPath != "" {
		cat, err = catalog.Load(cfg.Missions.CatalogPath, opts...)
	} else {
		cat, err = catalog.Default(opts...)
	}
	if err != nil {
		log.Error("failed to load exercise catalog", "error", err)
		os.Exit(1)
	}
	log.Info("exercise catalog loaded", "exercises", cat.Len(), "min_confidence", cfg.Missions.MinConfidence)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mission history is optional; without a database missions are still
	// counted live but nothing is kept after they end.
	var (
		store    server.Store
		recorder session.Recorder
		history  mcp.DataSource
	)
	if cfg.Database.IsEnabled() {
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, cfg.Database.Migrations); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		db, err := storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		log.Info("database connected")
		store, recorder, history = db, db, db
	} else {
		if *migrateOnly {
			log.Error("migrate-only requires database.enabled")
			os.Exit(1)
		}
		log.Warn("database disabled: mission history will not be kept")
	}

	missions := session.NewManager(cat, recorder, log, session.WithIdleTimeout(cfg.Missions.IdleTimeout))
	go missions.Run(ctx)

	srv := server.New(missions, store, cfg.Auth.APIKey, log)
	srv.SetMCP(mcp.New(history, mcp.CatalogSource{Catalog: cat}, Version, log))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", "active_missions", missions.Active())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	// Record missions still in progress while the database is open.
	missions.Shutdown(shutdownCtx)
	log.Info("server stopped")
}
