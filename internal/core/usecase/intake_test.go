package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

type ingestObserverFake struct {
	mu       sync.Mutex
	outcomes []string
}

func (f *ingestObserverFake) ObserveIngest(source, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, source+":"+outcome)
}

type intakeFixture struct {
	*pipelineFixture
	publisher *publisherFake
	notifier  *notifierFake
	observer  *ingestObserverFake
	intake    *IntakeService
}

func newIntakeFixture(t *testing.T, cls domain.Classification, settings domain.Settings) *intakeFixture {
	t.Helper()
	f := &intakeFixture{
		pipelineFixture: newPipelineFixture(t, cls, settings),
		publisher:       &publisherFake{},
		notifier:        &notifierFake{},
		observer:        &ingestObserverFake{},
	}
	f.intake = NewIntakeService(f.pipeline, f.files, IntakeOptions{
		Publisher: f.publisher,
		Notifier:  f.notifier,
		Observer:  f.observer,
	})
	return f
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	f := newIntakeFixture(t, domain.Classification{Category: "census", Confidence: 0.9}, autoSettings(0.7))

	_, err := f.intake.Upload(context.Background(), "notes.docx", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
	if len(f.files.saved) != 0 {
		t.Fatalf("unsupported upload must not be stored")
	}
}

func TestUploadRemovesDuplicateFile(t *testing.T) {
	f := newIntakeFixture(t, domain.Classification{Category: "census", Confidence: 0.5}, autoSettings(0.7))

	first, err := f.intake.Upload(context.Background(), "census.pdf", strings.NewReader("same bytes"))
	if err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}
	dup, err := f.intake.Upload(context.Background(), "../census-copy.pdf", strings.NewReader("same bytes"))
	if !domain.IsKind(err, domain.ErrDuplicateFax) {
		t.Fatalf("expected ErrDuplicateFax, got %v", err)
	}
	if dup == nil || dup.ID != first.ID {
		t.Fatalf("expected duplicate to report existing record %s, got %+v", first.ID, dup)
	}
	if len(f.files.removed) != 1 || f.files.removed[0] != "/uploads/census-copy.pdf" {
		t.Fatalf("expected duplicate upload to be removed, got %v", f.files.removed)
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected a single record, got %d", f.repo.count())
	}
	if got := f.observer.outcomes; len(got) != 2 || got[0] != "upload:ingested" || got[1] != "upload:duplicate" {
		t.Fatalf("unexpected observed outcomes %v", got)
	}
}

func TestIngestNotifiesUrgentFax(t *testing.T) {
	f := newIntakeFixture(t, domain.Classification{Category: "census", Confidence: 0.4, Urgent: true}, autoSettings(0.7))

	rec, err := f.intake.Ingest(context.Background(), domain.FaxSource{Path: "/in/urgent.pdf"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !rec.IsUrgent {
		t.Fatalf("expected urgent record")
	}
	if len(f.notifier.urgent) != 1 || f.notifier.urgent[0] != rec.ID {
		t.Fatalf("expected urgent notification for %s, got %v", rec.ID, f.notifier.urgent)
	}
	if len(f.publisher.decisions) != 0 {
		t.Fatalf("held fax must not publish a decision")
	}
}

func TestIngestPublishesAutoApproval(t *testing.T) {
	f := newIntakeFixture(t, domain.Classification{Category: "census", Confidence: 0.95}, autoSettings(0.7))

	rec, err := f.intake.Ingest(context.Background(), domain.FaxSource{Path: "/in/census.pdf"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(f.publisher.decisions) != 1 {
		t.Fatalf("expected one published decision, got %d", len(f.publisher.decisions))
	}
	d := f.publisher.decisions[0]
	if d.FaxID != rec.ID || !d.AutoApproved || d.FinalCategory != "census" {
		t.Fatalf("unexpected decision %+v", d)
	}
	if got := f.observer.outcomes; len(got) != 1 || got[0] != "watcher:ingested" {
		t.Fatalf("unexpected observed outcomes %v", got)
	}
}
