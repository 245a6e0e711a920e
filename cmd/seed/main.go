package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/config"
	"github.com/hackgods/clinic-desk-scheduling/internal/db"
	"github.com/hackgods/clinic-desk-scheduling/internal/logger"
	"github.com/hackgods/clinic-desk-scheduling/internal/seed"
)

func main() {
	patients := flag.Int("patients", 2000, "number of patients to create")
	physicians := flag.Int("physicians", 20, "number of physicians to create")
	rooms := flag.Int("rooms", 8, "number of rooms to create")
	seedValue := flag.Uint64("seed", 0, "faker seed, 0 for random")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		fmt.Fprintln(os.Stderr, "seed writes to postgres; set STORE_DRIVER=postgres")
		os.Exit(1)
	}

	log, err := logger.New(cfg, "seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	catalog := seed.Generate(*seedValue, seed.Sizes{
		Patients:   *patients,
		Physicians: *physicians,
		Rooms:      *rooms,
	})
	if err := seed.WritePostgres(ctx, pool, catalog, log); err != nil {
		log.Fatal("seed", zap.Error(err))
	}

	log.Info("seed complete")
}
