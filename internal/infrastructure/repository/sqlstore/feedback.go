package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

// dbExecutor is satisfied by both *sql.DB and *sql.Tx.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var newFeedbackID = uuid.NewString

func insertFeedback(ctx context.Context, db dbExecutor, dialect Dialect, fb *domain.Feedback) error {
	_, err := db.ExecContext(ctx, dialect.Rebind(`
INSERT INTO fax_feedback (id, fax_id, ai_category, correct_category, feedback_text, submitted_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`),
		fb.ID, fb.FaxID, string(fb.AICategory), string(fb.CorrectCategory), fb.FeedbackText, fb.SubmittedBy, fb.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (r *FaxRepository) AddFeedback(ctx context.Context, fb *domain.Feedback) error {
	if fb.ID == "" {
		fb.ID = newFeedbackID()
	}
	return insertFeedback(ctx, r.db, r.dialect, fb)
}

func (r *FaxRepository) ListFeedback(ctx context.Context, faxID string) ([]domain.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`
SELECT id, fax_id, ai_category, correct_category, feedback_text, submitted_by, created_at
FROM fax_feedback
WHERE fax_id = ?
ORDER BY created_at, id
`), faxID)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Feedback, 0)
	for rows.Next() {
		var (
			fb             domain.Feedback
			aiCat, correct string
			createdAt      nullTime
		)
		if err := rows.Scan(&fb.ID, &fb.FaxID, &aiCat, &correct, &fb.FeedbackText, &fb.SubmittedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		fb.AICategory = domain.Category(aiCat)
		fb.CorrectCategory = domain.Category(correct)
		fb.CreatedAt = createdAt.Time
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return out, nil
}
