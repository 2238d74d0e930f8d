package ports

import (
	"context"
	"io"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

// FaxIngestor turns one file into a categorized fax record.
type FaxIngestor interface {
	Accepts(filename string) bool
	Ingest(ctx context.Context, src domain.FaxSource) (*domain.FaxRecord, error)
}

// FaxIntake is the inbound contract for uploads and watcher discoveries.
type FaxIntake interface {
	FaxIngestor
	Upload(ctx context.Context, filename string, body io.Reader) (*domain.FaxRecord, error)
}

// ReviewService is the human decision surface.
type ReviewService interface {
	List(ctx context.Context, filter domain.FaxFilter) ([]domain.FaxRecord, error)
	Get(ctx context.Context, id string) (*domain.FaxRecord, error)
	Approve(ctx context.Context, id, reviewer string) (*domain.FaxRecord, error)
	Override(ctx context.Context, id, reviewer string, category domain.Category, reason string) (*domain.FaxRecord, error)
	BatchApprove(ctx context.Context, ids []string, reviewer string) domain.BatchResult
	BatchReview(ctx context.Context, ids []string, reviewer string, action domain.ReviewAction, category domain.Category, reason string) (domain.BatchResult, error)
	MarkProcessed(ctx context.Context, id string) (*domain.FaxRecord, error)
	SubmitFeedback(ctx context.Context, fb domain.Feedback) (*domain.Feedback, error)
	ListFeedback(ctx context.Context, faxID string) ([]domain.Feedback, error)
}

// StatsService derives queue metrics on demand.
type StatsService interface {
	Summary(ctx context.Context) (domain.QueueSummary, error)
	Stats(ctx context.Context) (domain.FaxStats, error)
}

// SettingsService reads and updates operational settings.
type SettingsService interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error)
}

// WatcherControl drives the folder watcher.
type WatcherControl interface {
	Start() domain.WatcherStatus
	Stop() domain.WatcherStatus
	ScanNow() domain.WatcherStatus
	Status() domain.WatcherStatus
}
