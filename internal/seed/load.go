package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/appointment"
)

const batchSize = 500

// LoadMemory registers every catalog entry with an in-memory repository.
func LoadMemory(repo *appointment.MemoryRepository, c Catalog) {
	for _, p := range c.Patients {
		repo.AddPatient(p)
	}
	for _, p := range c.Physicians {
		repo.AddPhysician(p)
	}
	for _, r := range c.Rooms {
		repo.AddRoom(r)
	}
	for _, p := range c.Procedures {
		repo.AddProcedure(p)
	}
}

// WritePostgres inserts the catalog. Rooms and procedures are unique by
// name, so re-running keeps the existing rows.
func WritePostgres(ctx context.Context, pool *pgxpool.Pool, c Catalog, log *zap.Logger) error {
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, p := range c.Physicians {
			if _, err := tx.Exec(ctx, `
				INSERT INTO physicians (id, name, specialty, created_at)
				VALUES ($1, $2, $3, now())
			`, p.ID, p.Name, p.Specialty); err != nil {
				return fmt.Errorf("insert physician: %w", err)
			}
		}
		for _, r := range c.Rooms {
			if _, err := tx.Exec(ctx, `
				INSERT INTO rooms (id, name, capacity)
				VALUES ($1, $2, $3)
				ON CONFLICT (name) DO NOTHING
			`, r.ID, r.Name, r.Capacity); err != nil {
				return fmt.Errorf("insert room: %w", err)
			}
		}
		for _, p := range c.Procedures {
			if _, err := tx.Exec(ctx, `
				INSERT INTO procedures (id, name, description)
				VALUES ($1, $2, $3)
				ON CONFLICT (name) DO NOTHING
			`, p.ID, p.Name, p.Description); err != nil {
				return fmt.Errorf("insert procedure: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("reference data seeded",
		zap.Int("physicians", len(c.Physicians)),
		zap.Int("rooms", len(c.Rooms)),
		zap.Int("procedures", len(c.Procedures)),
	)

	for offset := 0; offset < len(c.Patients); offset += batchSize {
		end := min(offset+batchSize, len(c.Patients))

		batch := &pgx.Batch{}
		for _, p := range c.Patients[offset:end] {
			batch.Queue(`
				INSERT INTO patients (id, name, email, created_at)
				VALUES ($1, $2, $3, now())
			`, p.ID, p.Name, p.Email)
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert patients %d-%d: %w", offset, end, err)
		}
		log.Info("patients seeded", zap.Int("done", end), zap.Int("total", len(c.Patients)))
	}

	return nil
}
