// Package archive mirrors unit telemetry into a Postgres cold-storage
// table for retention beyond what the ground station's primary sqlite
// store keeps. It is optional: a ground station with no archive DSN
// configured simply never constructs one.
package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Emil-Frisk/Final-Project/src/inter"
)

// Archiver batch-inserts telemetry points into a Postgres table.
type Archiver struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the archive table exists.
func Open(ctx context.Context, dsn string) (*Archiver, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: connect failed: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS metric_archive (
			uuid         TEXT NOT NULL,
			ts           BIGINT NOT NULL,
			value        REAL NOT NULL,
			channel_type SMALLINT NOT NULL
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: schema init failed: %w", err)
	}

	return &Archiver{pool: pool}, nil
}

// ArchiveMetrics batch-inserts points for uuid into cold storage.
func (a *Archiver) ArchiveMetrics(ctx context.Context, uuid string, points []inter.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(
			"INSERT INTO metric_archive (uuid, ts, value, channel_type) VALUES ($1, $2, $3, $4)",
			uuid, p.Timestamp, p.Value, p.Type,
		)
	}

	br := a.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("archive: batch insert failed: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (a *Archiver) Close() {
	a.pool.Close()
}
