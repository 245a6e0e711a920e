package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/appointment"
	"github.com/hackgods/clinic-desk-scheduling/internal/config"
	"github.com/hackgods/clinic-desk-scheduling/internal/db"
	redisclient "github.com/hackgods/clinic-desk-scheduling/internal/redis"
	"github.com/hackgods/clinic-desk-scheduling/internal/seed"
)

// demoSizes is the catalog loaded into the in-memory store on startup.
var demoSizes = seed.Sizes{Patients: 50, Physicians: 5, Rooms: 3}

// Deps holds the storage and locking backends chosen by config. Pool and
// Redis are nil when the corresponding backend is not in use.
type Deps struct {
	Repo    appointment.Repository
	Locker  redisclient.Locker
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Catalog *seed.Catalog

	log *zap.Logger
}

// Open connects the backends named by cfg.StoreDriver and cfg.RedisAddr.
// migrate applies the embedded schema before returning.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger, migrate bool) (*Deps, error) {
	d := &Deps{log: log}

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.DefaultPoolOptions)
		cancel()
		if err != nil {
			return nil, err
		}
		d.Pool = pool
		log.Info("connected to postgres")

		if migrate {
			if err := db.Migrate(ctx, pool, log); err != nil {
				d.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		d.Repo = appointment.NewPgRepository(pool)

	case config.StoreDriverMemory:
		repo := appointment.NewMemoryRepository()
		catalog := seed.Generate(0, demoSizes)
		seed.LoadMemory(repo, catalog)
		d.Repo = repo
		d.Catalog = &catalog
		log.Info("using in-memory store",
			zap.Int("patients", len(catalog.Patients)),
			zap.Int("physicians", len(catalog.Physicians)),
			zap.Int("rooms", len(catalog.Rooms)),
		)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if cfg.RedisAddr == "" {
		d.Locker = redisclient.NewLocalLocker()
		log.Info("redis not configured, using in-process slot locks")
		return d, nil
	}

	rdb, err := redisclient.Connect(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Redis = rdb
	d.Locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, log)
	log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	return d, nil
}

func (d *Deps) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.log.Warn("error closing redis", zap.Error(err))
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
