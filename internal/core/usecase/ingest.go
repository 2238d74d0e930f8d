package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
)

const (
	defaultGatewayTimeout = 60 * time.Second
	minClassifiableChars  = 50
	reasonInsufficient    = "insufficient text to categorize"
)

type PipelineOptions struct {
	GatewayTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// IngestionPipeline turns one file into a categorized (or auto-approved) fax record.
type IngestionPipeline struct {
	repo       ports.FaxRepository
	files      ports.FileStore
	extractor  ports.TextExtractor
	classifier ports.FaxClassifier
	settings   ports.SettingsService
	taxonomy   *domain.Taxonomy

	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewIngestionPipeline(
	repo ports.FaxRepository,
	files ports.FileStore,
	extractor ports.TextExtractor,
	classifier ports.FaxClassifier,
	settings ports.SettingsService,
	taxonomy *domain.Taxonomy,
	opts PipelineOptions,
) *IngestionPipeline {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = defaultGatewayTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &IngestionPipeline{
		repo:       repo,
		files:      files,
		extractor:  extractor,
		classifier: classifier,
		settings:   settings,
		taxonomy:   taxonomy,
		timeout:    opts.GatewayTimeout,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

func (p *IngestionPipeline) Accepts(filename string) bool {
	return p.extractor.Supports(filename)
}

// Ingest claims the file with a pending record before any slow work, then
// extracts, classifies and decides. Gateway failures degrade into an
// unknown-category record; only storage failures are returned. Once the
// claim is stored the record is finished even if ctx is cancelled.
func (p *IngestionPipeline) Ingest(ctx context.Context, src domain.FaxSource) (*domain.FaxRecord, error) {
	if !p.Accepts(src.Path) {
		return nil, domain.WrapError(domain.ErrUnsupportedFile, "ingest fax", fmt.Errorf("%s", filepath.Ext(src.Path)))
	}

	rec, err := p.claim(ctx, src)
	if err != nil {
		return rec, err
	}
	if err := p.process(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Resume finishes a record left in pending by an interrupted run.
func (p *IngestionPipeline) Resume(ctx context.Context, rec *domain.FaxRecord) (*domain.FaxRecord, error) {
	if rec.Status != domain.StatusPending {
		return nil, &domain.ConflictError{FaxID: rec.ID, Current: rec.Status, Action: "resume"}
	}
	resumed := *rec
	if err := p.process(ctx, &resumed); err != nil {
		return nil, err
	}
	return &resumed, nil
}

func (p *IngestionPipeline) claim(ctx context.Context, src domain.FaxSource) (*domain.FaxRecord, error) {
	hash, err := p.files.Checksum(ctx, src.Path)
	if err != nil {
		return nil, fmt.Errorf("checksum %s: %w", src.Path, err)
	}

	existing, err := p.repo.FindByHash(ctx, hash)
	switch {
	case err == nil:
		return existing, domain.WrapError(domain.ErrDuplicateFax, "claim fax", fmt.Errorf("same content as %s", existing.ID))
	case !errors.Is(err, domain.ErrFaxNotFound):
		return nil, fmt.Errorf("lookup fax by hash: %w", err)
	}

	now := p.now().UTC()
	receivedAt := src.ReceivedAt.UTC()
	if src.ReceivedAt.IsZero() {
		receivedAt = now
	}
	filename := strings.TrimSpace(src.Filename)
	if filename == "" {
		filename = filepath.Base(src.Path)
	}

	rec := &domain.FaxRecord{
		ID:           uuid.NewString(),
		Filename:     filename,
		OriginalPath: src.Path,
		FileHash:     hash,
		Status:       domain.StatusPending,
		ReceivedAt:   receivedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.repo.Claim(ctx, rec); err != nil {
		return nil, fmt.Errorf("claim fax record: %w", err)
	}
	return rec, nil
}

func (p *IngestionPipeline) process(ctx context.Context, rec *domain.FaxRecord) error {
	// Gateway calls keep their own timeouts.
	ctx = context.WithoutCancel(ctx)

	extraction, extractErr := p.extractText(ctx, rec.OriginalPath)
	if extractErr != nil {
		p.degrade(rec, fmt.Sprintf("extraction failed: %v", extractErr))
		return p.complete(ctx, rec)
	}

	rec.ExtractedText = extraction.Text
	rec.TextLength = len([]rune(extraction.Text))
	rec.PageCount = extraction.PageCount

	if len(strings.TrimSpace(extraction.Text)) < minClassifiableChars {
		p.degrade(rec, reasonInsufficient)
		return p.complete(ctx, rec)
	}

	cls, classifyErr := p.classify(ctx, extraction.Text)
	if classifyErr != nil {
		p.degrade(rec, fmt.Sprintf("classification failed: %v", classifyErr))
		return p.complete(ctx, rec)
	}

	p.applyClassification(rec, cls)
	p.decide(ctx, rec)
	return p.complete(ctx, rec)
}

func (p *IngestionPipeline) extractText(ctx context.Context, path string) (domain.Extraction, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	extraction, err := p.extractor.Extract(callCtx, path)
	if err != nil {
		return domain.Extraction{}, err
	}
	return extraction, nil
}

func (p *IngestionPipeline) classify(ctx context.Context, text string) (domain.Classification, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cls, err := p.classifier.Classify(callCtx, text)
	if err != nil {
		return domain.Classification{}, err
	}
	return cls, nil
}

func (p *IngestionPipeline) applyClassification(rec *domain.FaxRecord, cls domain.Classification) {
	confidence := domain.ClampConfidence(cls.Confidence)
	category := p.taxonomy.Normalize(cls.Category)

	rec.AICategory = category
	rec.AIConfidence = &confidence
	rec.AIReason = strings.TrimSpace(cls.Reason)
	rec.Summary = strings.TrimSpace(cls.Summary)

	triage := AssessTriage(p.taxonomy, category, confidence, cls.Urgent, rec.ExtractedText)
	rec.IsUrgent = triage.IsUrgent
	rec.PriorityScore = triage.PriorityScore
	rec.Status = domain.StatusCategorized
}

// decide applies the auto-approval gate with the settings in force right now.
func (p *IngestionPipeline) decide(ctx context.Context, rec *domain.FaxRecord) {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		p.logger.Warn("settings_unavailable_holding_for_review", "fax_id", rec.ID, "error", err)
		return
	}
	if rec.AIConfidence == nil || !settings.AutoApproves(*rec.AIConfidence) {
		return
	}
	rec.Status = domain.StatusApproved
	rec.FinalCategory = rec.AICategory
	rec.WasOverridden = false
	rec.AutoApproved = true
}

func (p *IngestionPipeline) degrade(rec *domain.FaxRecord, reason string) {
	zero := 0.0
	rec.AICategory = p.taxonomy.Unknown()
	rec.AIConfidence = &zero
	rec.AIReason = reason
	triage := AssessTriage(p.taxonomy, rec.AICategory, zero, false, rec.ExtractedText)
	rec.IsUrgent = triage.IsUrgent
	rec.PriorityScore = triage.PriorityScore
	rec.Status = domain.StatusCategorized

	p.logger.Warn("fax_ingest_degraded", "fax_id", rec.ID, "file", rec.Filename, "reason", reason)
}

func (p *IngestionPipeline) complete(ctx context.Context, rec *domain.FaxRecord) error {
	rec.UpdatedAt = p.now().UTC()
	if err := p.repo.CompleteIngestion(ctx, rec); err != nil {
		return fmt.Errorf("complete fax ingestion: %w", err)
	}
	p.logger.Info("fax_ingested",
		"fax_id", rec.ID,
		"file", rec.Filename,
		"status", rec.Status,
		"ai_category", rec.AICategory,
		"priority", rec.PriorityScore,
		"urgent", rec.IsUrgent,
	)
	return nil
}
