package usecase

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/repository/sqlite"
)

// disconnectingExtractor cancels the uploader's context mid-extraction, the
// way a client hanging up on a slow upload does.
type disconnectingExtractor struct {
	extractorFake
	hangUp context.CancelFunc
}

func (e *disconnectingExtractor) Extract(ctx context.Context, path string) (domain.Extraction, error) {
	e.hangUp()
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}
	return e.extractorFake.Extract(ctx, path)
}

func TestUploadCompletesAfterClientDisconnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faxq.db")
	if err := sqlite.Migrate(path, nil); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	db, err := sqlite.OpenDB(path)
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := sqlite.NewFaxRepository(db)

	reqCtx, hangUp := context.WithCancel(context.Background())
	defer hangUp()

	files := newFileStoreFake()
	extractor := &disconnectingExtractor{extractorFake: extractorFake{text: longFaxText, pages: 1}, hangUp: hangUp}
	classifier := &classifierFake{cls: domain.Classification{Category: "discharge_summary", Confidence: 0.55}}
	pipeline := NewIngestionPipeline(repo, files, extractor, classifier, &staticSettings{settings: autoSettings(0.9)}, testTaxonomy(t), PipelineOptions{})
	intake := NewIntakeService(pipeline, files, IntakeOptions{})

	rec, err := intake.Upload(reqCtx, "discharge.pdf", strings.NewReader("fax bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if reqCtx.Err() == nil {
		t.Fatalf("expected the request context to be cancelled during ingestion")
	}

	stored, err := repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != domain.StatusCategorized || stored.AICategory != "discharge_summary" {
		t.Fatalf("expected categorized discharge_summary, got status=%s category=%q", stored.Status, stored.AICategory)
	}
	if classifier.calls != 1 {
		t.Fatalf("expected one classifier call, got %d", classifier.calls)
	}

	dup, err := intake.Upload(context.Background(), "discharge-again.pdf", strings.NewReader("fax bytes"))
	if !domain.IsKind(err, domain.ErrDuplicateFax) {
		t.Fatalf("expected ErrDuplicateFax on re-upload, got %v", err)
	}
	if dup == nil || dup.ID != rec.ID || dup.Status != domain.StatusCategorized {
		t.Fatalf("re-upload should report the completed record, got %+v", dup)
	}
}
