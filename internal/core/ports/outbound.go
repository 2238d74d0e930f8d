package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

// FaxRepository persists fax records. Every state transition is a conditional
// update on the expected source status.
type FaxRepository interface {
	Claim(ctx context.Context, rec *domain.FaxRecord) error
	CompleteIngestion(ctx context.Context, rec *domain.FaxRecord) error
	GetByID(ctx context.Context, id string) (*domain.FaxRecord, error)
	FindByHash(ctx context.Context, hash string) (*domain.FaxRecord, error)
	List(ctx context.Context, filter domain.FaxFilter) ([]domain.FaxRecord, error)
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.FaxRecord, error)
	Approve(ctx context.Context, id, reviewer string, at time.Time) (*domain.FaxRecord, error)
	Override(ctx context.Context, id, reviewer string, category domain.Category, reason string, at time.Time) (*domain.FaxRecord, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) (*domain.FaxRecord, error)
	AddFeedback(ctx context.Context, fb *domain.Feedback) error
	ListFeedback(ctx context.Context, faxID string) ([]domain.Feedback, error)
}

// FaxStatsReader runs the aggregate queries behind the dashboard.
type FaxStatsReader interface {
	CountByStatus(ctx context.Context) (map[domain.FaxStatus]int, error)
	CountByCategory(ctx context.Context) (map[string]int, error)
	CountAutoApproved(ctx context.Context) (int, error)
	CountUrgentAwaitingReview(ctx context.Context) (int, error)
	CountReceivedSince(ctx context.Context, since time.Time) (int, error)
	CountProcessedSince(ctx context.Context, since time.Time) (int, error)
	AverageReviewLatency(ctx context.Context) (time.Duration, bool, error)
}

// SettingsRepository stores the singleton settings row.
type SettingsRepository interface {
	LoadSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, s domain.Settings) error
}

// TextExtractor turns a stored fax file into text and a page count.
type TextExtractor interface {
	Supports(filename string) bool
	Extract(ctx context.Context, path string) (domain.Extraction, error)
}

// FaxClassifier infers a category, confidence and reason from fax text.
type FaxClassifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// FileStore keeps uploaded files and fingerprints stored ones.
type FileStore interface {
	Save(ctx context.Context, filename string, data io.Reader) (string, error)
	Checksum(ctx context.Context, path string) (string, error)
	Remove(ctx context.Context, path string) error
}

// Inbox enumerates and archives files in a watch folder.
type Inbox interface {
	Ensure(ctx context.Context, folder string) error
	List(ctx context.Context, folder string) ([]domain.InboxFile, error)
	Archive(ctx context.Context, file domain.InboxFile) (string, error)
}

// DecisionPublisher announces final categorizations to downstream consumers.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, decision domain.FaxDecision) error
}

// UrgentNotifier alerts staff about urgent faxes.
type UrgentNotifier interface {
	NotifyUrgent(ctx context.Context, rec *domain.FaxRecord) error
}
