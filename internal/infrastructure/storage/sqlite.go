package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: sq.Question,
	isUniqueViolation: func(err error) bool {
		var sqliteErr sqlite3.Error
		return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	},
	qualify: func(_, table string) string { return table },
	createStatements: func(_, table string) []string {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    raw_filename TEXT,
    solution_filename TEXT,
    has_solution BOOLEAN NOT NULL DEFAULT 0,
    stage TEXT NOT NULL,
    date_obs TIMESTAMP NOT NULL,
    date_obs_mjd REAL NOT NULL,
    ra_deg REAL,
    dec_deg REAL,
    alt_deg REAL,
    az_deg REAL,
    airmass REAL,
    image_type TEXT,
    filter_name TEXT,
    target_object TEXT,
    exposure_time REAL NOT NULL,
    binning INTEGER,
    telescope TEXT NOT NULL,
    instrument TEXT,
    plate_scale REAL,
    odds REAL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_date_obs_idx ON %s (date_obs)`, table, table),
		}
	},
	dropStatements: func(_, table string) []string {
		return []string{fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)}
	},
}

// OpenSQLite opens a go-sqlite3 database file. A single connection keeps
// ":memory:" databases shared between statements.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// NewSQLiteRepository stores observations in table.
func NewSQLiteRepository(db *sql.DB, table string) (*SQLRepository, error) {
	return newSQLRepository(db, sqliteDialect, "", table)
}
