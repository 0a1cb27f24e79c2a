package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	passhandler "github.com/Ziel-Global/community-healers-sub001/internal/exampass/handler"
	httpapi "github.com/Ziel-Global/community-healers-sub001/internal/http"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/config"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/httpserver"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/logger"
	platformmetrics "github.com/Ziel-Global/community-healers-sub001/internal/platform/metrics"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/handler"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/view"
)

// main wires configuration, infrastructure and the waiting-room service, then
// serves until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "examroom: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("examroom stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("examroom stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	deps, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	resumed, err := deps.service.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume waiting rooms: %w", err)
	}

	router := httpapi.NewRouter(deps.checks,
		handler.New(deps.service, log, platformmetrics.New(),
			handler.WithLabels(view.Labels{Center: cfg.WaitingRoom.CenterLabel, Time: cfg.WaitingRoom.TimeLabel}),
			handler.WithAdminToken(cfg.Server.AdminToken),
		),
		passhandler.New(deps.issuer, log),
	)
	srv := httpserver.New(cfg.Server.Addr, router)
	metricsSrv := httpserver.NewMetrics(cfg.Server.MetricsAddr, prometheus.DefaultGatherer)

	log.Info("starting examroom",
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"session_store", cfg.WaitingRoom.SessionStore,
		"resumed_rooms", resumed,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout) })
	g.Go(func() error { return httpserver.Run(gctx, metricsSrv, cfg.Server.ShutdownTimeout) })
	serveErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := deps.service.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to unmount waiting rooms", "error", err)
	}
	return serveErr
}
