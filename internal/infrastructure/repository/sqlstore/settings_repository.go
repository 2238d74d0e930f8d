package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

// SettingsRepository keeps the single settings row (id = 1).
type SettingsRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSettingsRepository(db *sql.DB, dialect Dialect) *SettingsRepository {
	return &SettingsRepository{db: db, dialect: dialect}
}

func (r *SettingsRepository) LoadSettings(ctx context.Context) (domain.Settings, error) {
	var (
		s         domain.Settings
		updatedAt nullTime
	)
	err := r.db.QueryRowContext(ctx, `
SELECT watch_folder, auto_process, require_review, confidence_threshold, updated_at
FROM fax_settings
WHERE id = 1
`).Scan(&s.WatchFolder, &s.AutoProcess, &s.RequireReview, &s.ConfidenceThreshold, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, domain.ErrSettingsNotFound
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	s.UpdatedAt = updatedAt.Time
	return s, nil
}

func (r *SettingsRepository) SaveSettings(ctx context.Context, s domain.Settings) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
INSERT INTO fax_settings (id, watch_folder, auto_process, require_review, confidence_threshold, updated_at)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	watch_folder = excluded.watch_folder,
	auto_process = excluded.auto_process,
	require_review = excluded.require_review,
	confidence_threshold = excluded.confidence_threshold,
	updated_at = excluded.updated_at
`), s.WatchFolder, s.AutoProcess, s.RequireReview, s.ConfidenceThreshold, s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
