// entry point of the application
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidbatch/internal/config"
	"vidbatch/internal/depmanager"
	"vidbatch/internal/downloader"
	httprouter "vidbatch/internal/infrastructure/delivery/http"
	"vidbatch/internal/observability"
	"vidbatch/internal/service"
	"vidbatch/internal/session"
	httpserver "vidbatch/pkg/http/server"
	"vidbatch/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Options{
		AddSource: true,
		Level:     cfg.App.LogLevel,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New(prometheus.DefaultRegisterer)
	depMgr := depmanager.New(log, cfg)

	depMgr.Start(ctx)

	if missing := depmanager.Missing(depMgr.Probe(depMgr.RequiredTools()...)); len(missing) > 0 {
		// batches are refused until the tools appear, the server still starts
		log.WarnContext(ctx, "required tools missing", slog.Any("missing", missing))
	}

	dl := downloader.NewYTdlp(log, cfg, depMgr, metrics)
	svc := service.New(cfg, log, depMgr, dl, metrics)
	sessions := session.NewRegistry(log, cfg, metrics)

	router := httprouter.New(log, cfg, svc, sessions, metrics, prometheus.DefaultGatherer)

	httpSrv := httpserver.New(router, httpserver.Options{
		Addr:            cfg.HTTP.Port,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	})

	log.InfoContext(ctx, "vidbatch started",
		slog.String("port", cfg.HTTP.Port),
		slog.String("downloads", cfg.Dir.Downloads),
		slog.Int("workers", cfg.Job.Workers))

	select {
	case <-ctx.Done():
	case err := <-httpSrv.Notify():
		if err != nil {
			log.ErrorContext(ctx, "http server", slog.Any("error", err))
		}
	}

	// stop accepting, then let running batches finish before killing them
	err = httpSrv.Shutdown()
	if err != nil {
		log.Error(err.Error())
	}

	drain(log, cfg, svc, sessions)

	log.InfoContext(ctx, "vidbatch shut down gracefully")
}

// abortGrace covers killing the downloader processes and collecting their outcomes.
const abortGrace = 5 * time.Second

func drain(log *slog.Logger, cfg *config.Config, svc *service.Batch, sessions *session.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Job.DrainTimeout)
	defer cancel()

	log.InfoContext(ctx, "waiting for running batches", slog.Duration("timeout", cfg.Job.DrainTimeout))

	if err := sessions.Wait(ctx); err == nil {
		return
	}

	log.WarnContext(ctx, "running batches did not finish in time, aborting")
	svc.Abort()

	abortCtx, abortCancel := context.WithTimeout(context.Background(), abortGrace)
	defer abortCancel()

	if err := sessions.Wait(abortCtx); err != nil {
		log.ErrorContext(abortCtx, "batches still running after abort", slog.Any("error", err))
	}
}
