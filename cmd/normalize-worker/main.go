package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/app"
	"github.com/hackgods/clinic-desk-scheduling/internal/appointment"
	"github.com/hackgods/clinic-desk-scheduling/internal/config"
	"github.com/hackgods/clinic-desk-scheduling/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg, "normalize-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("normalize-worker starting up",
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Int("batch_size", cfg.NormalizeBatchSize),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(rootCtx, cfg, log, false)
	if err != nil {
		log.Fatal("backend init error", zap.Error(err))
	}
	defer deps.Close()

	svc := appointment.NewService(deps.Repo, deps.Locker, cfg, log)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.NormalizeBatchSize, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping normalize worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.NormalizeBatchSize, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, batchSize int, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	report, err := svc.NormalizeStatuses(runCtx, batchSize)
	if err != nil {
		log.Error("normalize run error", zap.Error(err))
		return
	}
	log.Info("normalize run complete",
		zap.Duration("took", time.Since(start)),
		zap.Int("scanned", report.Scanned),
		zap.Int("normalized", report.Normalized),
		zap.Int("unresolved", report.Unresolved),
		zap.Int("failed", report.Failed),
	)
}
