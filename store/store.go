// Package store persists search metrics, analytics rows and issues in a
// relational database. Postgres is the production backend; SQLite serves
// local development and tests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidWindow is returned for malformed date windows and rows outside them
	ErrInvalidWindow = errors.New("invalid date window")
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is the SQL-backed read model and issue sink
type Store struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
	now     func() time.Time
}

// Open connects to the database and verifies the connection
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var dialect string
	switch driver {
	case DriverPostgres, "":
		driver, dialect = DriverPostgres, "postgres"
	case DriverSQLite:
		dialect = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer; serialize access through one connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, dialect: goqu.Dialect(dialect), now: time.Now}, nil
}

// Ping verifies the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gsc_metrics (
		site_id      BIGINT NOT NULL,
		url          TEXT NOT NULL,
		query        TEXT NOT NULL,
		country      TEXT NOT NULL DEFAULT '',
		device       TEXT NOT NULL DEFAULT '',
		metric_date  TEXT NOT NULL,
		impressions  BIGINT NOT NULL,
		clicks       BIGINT NOT NULL,
		ctr          DOUBLE PRECISION NOT NULL,
		avg_position DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gsc_metrics_site_date ON gsc_metrics (site_id, metric_date)`,
	`CREATE TABLE IF NOT EXISTS ga4_metrics (
		site_id              BIGINT NOT NULL,
		page_path            TEXT NOT NULL,
		metric_date          TEXT NOT NULL,
		sessions             BIGINT NOT NULL,
		pageviews            BIGINT NOT NULL,
		avg_session_duration DOUBLE PRECISION NOT NULL,
		bounce_rate          DOUBLE PRECISION NOT NULL,
		conversions          BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ga4_metrics_site_path ON ga4_metrics (site_id, page_path)`,
	`CREATE TABLE IF NOT EXISTS issues (
		id               TEXT PRIMARY KEY,
		site_id          BIGINT NOT NULL,
		issue_type       TEXT NOT NULL,
		severity         TEXT NOT NULL,
		url              TEXT NOT NULL DEFAULT '',
		query            TEXT NOT NULL DEFAULT '',
		description      TEXT NOT NULL,
		suggested_action TEXT NOT NULL,
		status           TEXT NOT NULL,
		created_at       TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_site ON issues (site_id)`,
}

// Migrate creates the tables the store needs if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// checkWindow validates a YYYY-MM-DD date window
func checkWindow(from, to string) error {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return fmt.Errorf("%w: start date %q", ErrInvalidWindow, from)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return fmt.Errorf("%w: end date %q", ErrInvalidWindow, to)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidWindow, to, from)
	}
	return nil
}

// checkRowDate validates row i's date and keeps it inside [from, to]
func checkRowDate(i int, date, from, to string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: row %d has invalid date %q", ErrInvalidWindow, i, date)
	}
	if date < from || date > to {
		return fmt.Errorf("%w: row %d dated %s is outside %s..%s", ErrInvalidWindow, i, date, from, to)
	}
	return nil
}

// replaceWindow deletes every row of the site inside [from, to] and inserts
// records, all in one transaction.
func (s *Store) replaceWindow(ctx context.Context, table string, siteID int64, from, to string, records []interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := s.dialect.Delete(table).Prepared(true).
		Where(
			goqu.Ex{"site_id": siteID},
			goqu.C("metric_date").Between(goqu.Range(from, to)),
		).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete rows from %s: %w", table, err)
	}

	const batchSize = 500
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		query, args, err := s.dialect.Insert(table).Prepared(true).Rows(records[start:end]...).ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build insert query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert rows into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
