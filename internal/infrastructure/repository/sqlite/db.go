// Package sqlite is the single-file store for local and small deployments.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kirillkom/fax-review-queue/internal/infrastructure/repository/sqlstore"
)

var Dialect = func() sqlstore.Dialect {
	d := sqlstore.SQLite
	d.IsUniqueViolation = isUniqueViolation
	return d
}()

// DSN builds a connection string for path with WAL, a busy timeout, foreign
// keys and a sortable timestamp encoding applied on every connection.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_time_format", "sqlite")
	return "file:" + path + "?" + q.Encode()
}

// OpenDB opens the database with a single connection; SQLite serializes
// writers anyway and this keeps conditional updates free of SQLITE_BUSY.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return db, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func NewFaxRepository(db *sql.DB) *sqlstore.FaxRepository {
	return sqlstore.NewFaxRepository(db, Dialect)
}

func NewStatsRepository(db *sql.DB) *sqlstore.StatsRepository {
	return sqlstore.NewStatsRepository(db, Dialect)
}

func NewSettingsRepository(db *sql.DB) *sqlstore.SettingsRepository {
	return sqlstore.NewSettingsRepository(db, Dialect)
}
