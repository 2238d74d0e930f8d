package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
)

// IngestObserver receives per-file ingestion outcomes for metrics.
type IngestObserver interface {
	ObserveIngest(source, outcome string, duration time.Duration)
}

type IntakeOptions struct {
	Publisher ports.DecisionPublisher
	Notifier  ports.UrgentNotifier
	Observer  IngestObserver
	Logger    *slog.Logger
}

// IntakeService is the entry point for new faxes, from uploads or the watch
// folder. It runs the pipeline and fans out follow-up notifications.
type IntakeService struct {
	pipeline  ports.FaxIngestor
	files     ports.FileStore
	publisher ports.DecisionPublisher
	notifier  ports.UrgentNotifier
	observer  IngestObserver
	logger    *slog.Logger
	source    string
}

func NewIntakeService(pipeline ports.FaxIngestor, files ports.FileStore, opts IntakeOptions) *IntakeService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &IntakeService{
		pipeline:  pipeline,
		files:     files,
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
		observer:  opts.Observer,
		logger:    opts.Logger,
		source:    "watcher",
	}
}

func (s *IntakeService) Accepts(filename string) bool {
	return s.pipeline.Accepts(filename)
}

func (s *IntakeService) Ingest(ctx context.Context, src domain.FaxSource) (*domain.FaxRecord, error) {
	return s.ingest(ctx, s.source, src)
}

// Upload stores the body and ingests it synchronously.
func (s *IntakeService) Upload(ctx context.Context, filename string, body io.Reader) (*domain.FaxRecord, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || !s.Accepts(name) {
		return nil, domain.WrapError(domain.ErrUnsupportedFile, "upload fax", fmt.Errorf("%q", filename))
	}

	path, err := s.files.Save(ctx, name, body)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	rec, err := s.ingest(ctx, "upload", domain.FaxSource{
		Path:     path,
		Filename: name,
	})
	if errors.Is(err, domain.ErrDuplicateFax) {
		if rmErr := s.files.Remove(ctx, path); rmErr != nil {
			s.logger.Warn("duplicate_upload_cleanup_failed", "path", path, "error", rmErr)
		}
	}
	return rec, err
}

func (s *IntakeService) ingest(ctx context.Context, source string, src domain.FaxSource) (*domain.FaxRecord, error) {
	start := time.Now()
	rec, err := s.pipeline.Ingest(ctx, src)
	s.observe(source, err, time.Since(start))
	if err != nil {
		return rec, err
	}

	if rec.IsUrgent && s.notifier != nil {
		if err := s.notifier.NotifyUrgent(ctx, rec); err != nil {
			s.logger.Warn("urgent_notification_failed", "fax_id", rec.ID, "error", err)
		}
	}
	if rec.AutoApproved && s.publisher != nil {
		if err := s.publisher.PublishDecision(ctx, domain.DecisionFor(rec, rec.UpdatedAt)); err != nil {
			s.logger.Warn("decision_publish_failed", "fax_id", rec.ID, "error", err)
		}
	}
	return rec, nil
}

func (s *IntakeService) observe(source string, err error, d time.Duration) {
	if s.observer == nil {
		return
	}
	outcome := "ingested"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateFax):
		outcome = "duplicate"
	case errors.Is(err, domain.ErrUnsupportedFile):
		outcome = "unsupported"
	default:
		outcome = "error"
	}
	s.observer.ObserveIngest(source, outcome, d)
}
