package postgres

import (
	"database/sql"

	"github.com/kirillkom/fax-review-queue/internal/infrastructure/repository/sqlstore"
)

func NewFaxRepository(db *sql.DB) *sqlstore.FaxRepository {
	return sqlstore.NewFaxRepository(db, Dialect)
}

func NewStatsRepository(db *sql.DB) *sqlstore.StatsRepository {
	return sqlstore.NewStatsRepository(db, Dialect)
}

func NewSettingsRepository(db *sql.DB) *sqlstore.SettingsRepository {
	return sqlstore.NewSettingsRepository(db, Dialect)
}
