package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: sq.Dollar,
	isUniqueViolation: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
	},
	qualify: func(schema, table string) string {
		if schema == "" {
			return table
		}
		return schema + "." + table
	},
	createStatements: func(schema, table string) []string {
		qualified := table
		var stmts []string
		if schema != "" {
			qualified = schema + "." + table
			stmts = append(stmts, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema))
		}
		return append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    file_id TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    raw_filename TEXT,
    solution_filename TEXT,
    has_solution BOOLEAN NOT NULL DEFAULT FALSE,
    stage TEXT NOT NULL,
    date_obs TIMESTAMPTZ NOT NULL,
    date_obs_mjd DOUBLE PRECISION NOT NULL,
    ra_deg DOUBLE PRECISION,
    dec_deg DOUBLE PRECISION,
    alt_deg DOUBLE PRECISION,
    az_deg DOUBLE PRECISION,
    airmass DOUBLE PRECISION,
    image_type TEXT,
    filter_name TEXT,
    target_object TEXT,
    exposure_time DOUBLE PRECISION NOT NULL,
    binning INTEGER,
    telescope TEXT NOT NULL,
    instrument TEXT,
    plate_scale DOUBLE PRECISION,
    odds DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, qualified),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_date_obs_idx ON %s (date_obs)`, table, qualified),
		)
	},
	dropStatements: func(schema, table string) []string {
		if schema == "" {
			return []string{fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)}
		}
		return []string{fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, schema)}
	},
}

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository stores observations in schema.table.
func NewPostgresRepository(db *sql.DB, schema, table string) (*SQLRepository, error) {
	return newSQLRepository(db, postgresDialect, schema, table)
}
