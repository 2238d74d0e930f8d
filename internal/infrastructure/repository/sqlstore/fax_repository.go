package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

const faxColumns = `id, filename, original_path, file_hash, status, ai_category, ai_confidence, ai_reason,
	final_category, was_overridden, auto_approved, is_urgent, priority_score, text_length, page_count,
	extracted_text, summary, received_at, processed_at, reviewed_at, reviewed_by, override_reason,
	created_at, updated_at`

// list responses never carry the extracted text
var faxListColumns = strings.Replace(faxColumns, "extracted_text", "'' AS extracted_text", 1)

// FaxRepository stores fax records and reviewer feedback. Every status change
// is a single conditional UPDATE on the expected source status.
type FaxRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewFaxRepository(db *sql.DB, dialect Dialect) *FaxRepository {
	return &FaxRepository{db: db, dialect: dialect}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFax(row rowScanner) (*domain.FaxRecord, error) {
	var (
		rec                              domain.FaxRecord
		status, aiCategory, finalCat     string
		confidence                       sql.NullFloat64
		receivedAt, createdAt, updatedAt nullTime
		processedAt, reviewedAt          nullTime
	)
	err := row.Scan(
		&rec.ID, &rec.Filename, &rec.OriginalPath, &rec.FileHash, &status, &aiCategory, &confidence, &rec.AIReason,
		&finalCat, &rec.WasOverridden, &rec.AutoApproved, &rec.IsUrgent, &rec.PriorityScore, &rec.TextLength, &rec.PageCount,
		&rec.ExtractedText, &rec.Summary, &receivedAt, &processedAt, &reviewedAt, &rec.ReviewedBy, &rec.OverrideReason,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.FaxStatus(status)
	rec.AICategory = domain.Category(aiCategory)
	rec.FinalCategory = domain.Category(finalCat)
	if confidence.Valid {
		c := confidence.Float64
		rec.AIConfidence = &c
	}
	rec.ReceivedAt = receivedAt.Time
	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time
	rec.ProcessedAt = processedAt.ptr()
	rec.ReviewedAt = reviewedAt.ptr()
	return &rec, nil
}

func (r *FaxRepository) Claim(ctx context.Context, rec *domain.FaxRecord) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
INSERT INTO faxes (id, filename, original_path, file_hash, status, received_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`),
		rec.ID, rec.Filename, rec.OriginalPath, rec.FileHash, string(domain.StatusPending),
		rec.ReceivedAt.UTC(), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	if r.dialect.uniqueViolation(err) {
		return domain.WrapError(domain.ErrDuplicateFax, "claim fax", err)
	}
	if err != nil {
		return fmt.Errorf("insert fax: %w", err)
	}
	return nil
}

// CompleteIngestion writes the extraction and classification results onto a
// pending record.
func (r *FaxRepository) CompleteIngestion(ctx context.Context, rec *domain.FaxRecord) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
UPDATE faxes
SET status = ?, ai_category = ?, ai_confidence = ?, ai_reason = ?, final_category = ?, was_overridden = ?,
	auto_approved = ?, is_urgent = ?, priority_score = ?, text_length = ?, page_count = ?, extracted_text = ?,
	summary = ?, updated_at = ?
WHERE id = ? AND status = ?
`),
		string(rec.Status), string(rec.AICategory), nullableFloat(rec.AIConfidence), rec.AIReason,
		string(rec.FinalCategory), rec.WasOverridden, rec.AutoApproved, rec.IsUrgent, rec.PriorityScore,
		rec.TextLength, rec.PageCount, rec.ExtractedText, rec.Summary, rec.UpdatedAt.UTC(),
		rec.ID, string(domain.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("complete ingestion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete ingestion rows affected: %w", err)
	}
	if affected == 0 {
		return r.transitionMiss(ctx, rec.ID, "complete ingestion of")
	}
	return nil
}

func (r *FaxRepository) GetByID(ctx context.Context, id string) (*domain.FaxRecord, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+faxColumns+` FROM faxes WHERE id = ?`), id)
	rec, err := scanFax(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrFaxNotFound, "get fax", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("scan fax: %w", err)
	}
	return rec, nil
}

func (r *FaxRepository) FindByHash(ctx context.Context, hash string) (*domain.FaxRecord, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+faxColumns+` FROM faxes WHERE file_hash = ?`), hash)
	rec, err := scanFax(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrFaxNotFound, "find fax by hash", fmt.Errorf("hash=%s", hash))
	}
	if err != nil {
		return nil, fmt.Errorf("scan fax: %w", err)
	}
	return rec, nil
}

func (r *FaxRepository) List(ctx context.Context, filter domain.FaxFilter) ([]domain.FaxRecord, error) {
	filter = filter.Normalize()

	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		where = append(where, "(final_category = ? OR (final_category = '' AND ai_category = ?))")
		args = append(args, string(filter.Category), string(filter.Category))
	}
	if filter.UrgentOnly {
		where = append(where, "is_urgent = ?")
		args = append(args, true)
	}

	query := `SELECT ` + faxListColumns + ` FROM faxes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	switch filter.Order {
	case domain.OrderPriority:
		query += ` ORDER BY priority_score DESC, received_at DESC, id`
	default:
		query += ` ORDER BY received_at DESC, id`
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	return r.queryFaxes(ctx, query, args...)
}

func (r *FaxRepository) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.FaxRecord, error) {
	return r.queryFaxes(ctx, `
SELECT `+faxColumns+` FROM faxes
WHERE status = ? AND created_at < ?
ORDER BY created_at
LIMIT ?`, string(domain.StatusPending), before.UTC(), limit)
}

func (r *FaxRepository) queryFaxes(ctx context.Context, query string, args ...any) ([]domain.FaxRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query faxes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FaxRecord, 0)
	for rows.Next() {
		rec, err := scanFax(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fax row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faxes: %w", err)
	}
	return out, nil
}

func (r *FaxRepository) Approve(ctx context.Context, id, reviewer string, at time.Time) (*domain.FaxRecord, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
UPDATE faxes
SET status = ?, final_category = ai_category, was_overridden = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
WHERE id = ? AND status = ?
RETURNING `+faxColumns),
		string(domain.StatusApproved), false, reviewer, at.UTC(), at.UTC(),
		id, string(domain.StatusCategorized),
	)
	return r.transitioned(ctx, row, id, "approve")
}

// Override applies the reviewer's category and records the correction as
// feedback in the same transaction.
func (r *FaxRepository) Override(ctx context.Context, id, reviewer string, category domain.Category, reason string, at time.Time) (*domain.FaxRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin override tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, r.dialect.Rebind(`
UPDATE faxes
SET status = ?, final_category = ?, was_overridden = (ai_category <> ?), override_reason = ?,
	reviewed_by = ?, reviewed_at = ?, updated_at = ?
WHERE id = ? AND status = ?
RETURNING `+faxColumns),
		string(domain.StatusOverridden), string(category), string(category), reason,
		reviewer, at.UTC(), at.UTC(),
		id, string(domain.StatusCategorized),
	)
	rec, err := scanFax(row)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, r.transitionMiss(ctx, id, "override")
	}
	if err != nil {
		return nil, fmt.Errorf("override fax: %w", err)
	}

	fb := &domain.Feedback{
		ID:              newFeedbackID(),
		FaxID:           id,
		AICategory:      rec.AICategory,
		CorrectCategory: category,
		FeedbackText:    reason,
		SubmittedBy:     reviewer,
		CreatedAt:       at.UTC(),
	}
	if err := insertFeedback(ctx, tx, r.dialect, fb); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit override tx: %w", err)
	}
	return rec, nil
}

func (r *FaxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) (*domain.FaxRecord, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
UPDATE faxes
SET status = ?, processed_at = ?, updated_at = ?
WHERE id = ? AND status IN (?, ?)
RETURNING `+faxColumns),
		string(domain.StatusProcessed), at.UTC(), at.UTC(),
		id, string(domain.StatusApproved), string(domain.StatusOverridden),
	)
	return r.transitioned(ctx, row, id, "process")
}

func (r *FaxRepository) transitioned(ctx context.Context, row *sql.Row, id, action string) (*domain.FaxRecord, error) {
	rec, err := scanFax(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.transitionMiss(ctx, id, action)
	}
	if err != nil {
		return nil, fmt.Errorf("%s fax: %w", action, err)
	}
	return rec, nil
}

// transitionMiss explains a conditional update that matched no row: either
// the record does not exist or it is in another status.
func (r *FaxRepository) transitionMiss(ctx context.Context, id, action string) error {
	var status string
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT status FROM faxes WHERE id = ?`), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrFaxNotFound, action, fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return fmt.Errorf("load status after %s miss: %w", action, err)
	}
	return &domain.ConflictError{FaxID: id, Current: domain.FaxStatus(status), Action: action}
}
