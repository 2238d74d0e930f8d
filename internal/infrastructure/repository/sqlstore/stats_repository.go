package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

type StatsRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewStatsRepository(db *sql.DB, dialect Dialect) *StatsRepository {
	return &StatsRepository{db: db, dialect: dialect}
}

func (r *StatsRepository) CountByStatus(ctx context.Context) (map[domain.FaxStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM faxes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.FaxStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[domain.FaxStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return out, nil
}

// CountByCategory groups classified records by their final category, falling
// back to the AI category while a record awaits review.
func (r *StatsRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`
SELECT CASE WHEN final_category <> '' THEN final_category ELSE ai_category END AS category, COUNT(*)
FROM faxes
WHERE status <> ?
GROUP BY 1
`), string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return out, nil
}

func (r *StatsRepository) CountAutoApproved(ctx context.Context) (int, error) {
	return r.count(ctx, "count auto approved", `SELECT COUNT(*) FROM faxes WHERE auto_approved = ?`, true)
}

func (r *StatsRepository) CountUrgentAwaitingReview(ctx context.Context) (int, error) {
	return r.count(ctx, "count urgent", `SELECT COUNT(*) FROM faxes WHERE status = ? AND is_urgent = ?`,
		string(domain.StatusCategorized), true)
}

func (r *StatsRepository) CountReceivedSince(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, "count received", `SELECT COUNT(*) FROM faxes WHERE received_at >= ?`, since.UTC())
}

func (r *StatsRepository) CountProcessedSince(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, "count processed", `SELECT COUNT(*) FROM faxes WHERE processed_at IS NOT NULL AND processed_at >= ?`, since.UTC())
}

// AverageReviewLatency is the mean time from receipt to human review. ok is
// false when nothing has been reviewed yet.
func (r *StatsRepository) AverageReviewLatency(ctx context.Context) (time.Duration, bool, error) {
	var seconds sql.NullFloat64
	query := `SELECT ` + r.dialect.ReviewLatencySeconds + ` FROM faxes WHERE reviewed_at IS NOT NULL`
	if err := r.db.QueryRowContext(ctx, query).Scan(&seconds); err != nil {
		return 0, false, fmt.Errorf("average review latency: %w", err)
	}
	if !seconds.Valid {
		return 0, false, nil
	}
	return time.Duration(seconds.Float64 * float64(time.Second)), true, nil
}

func (r *StatsRepository) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
