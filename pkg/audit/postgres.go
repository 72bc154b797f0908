package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS assessments (
	analysis_id TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	subject     TEXT NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	level       TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
)`

const insertSQL = `
INSERT INTO assessments (analysis_id, kind, subject, score, level, recorded_at, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (analysis_id) DO NOTHING`

// PostgresRecorder writes assessment history to a Postgres table,
// creating the schema on startup if missing.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder connects via the DSN and ensures the schema exists
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure assessments table: %w", err)
	}
	return &PostgresRecorder{pool: pool}, nil
}

func (r *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	if _, err := r.pool.Exec(ctx, insertSQL,
		e.AnalysisID, e.Kind, e.Subject, e.Score, e.Level, e.At, payload); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Close() error {
	r.pool.Close()
	return nil
}
