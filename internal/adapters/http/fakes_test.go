package httpadapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/config"
	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

type reviewFake struct {
	mu        sync.Mutex
	records   map[string]*domain.FaxRecord
	lastList  domain.FaxFilter
	feedback  []domain.Feedback
	approvals []string
	taxonomy  *domain.Taxonomy
}

func newReviewFake(tx *domain.Taxonomy, records ...domain.FaxRecord) *reviewFake {
	f := &reviewFake{records: map[string]*domain.FaxRecord{}, taxonomy: tx}
	for i := range records {
		rec := records[i]
		f.records[rec.ID] = &rec
	}
	return f
}

func (f *reviewFake) List(_ context.Context, filter domain.FaxFilter) ([]domain.FaxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = filter
	out := []domain.FaxRecord{}
	for _, rec := range f.records {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (f *reviewFake) Get(_ context.Context, id string) (*domain.FaxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrFaxNotFound, "get fax", fmt.Errorf("id=%s", id))
	}
	cp := *rec
	return &cp, nil
}

func (f *reviewFake) transition(id, reviewer string, from domain.FaxStatus, apply func(*domain.FaxRecord)) (*domain.FaxRecord, error) {
	if reviewer == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "review", fmt.Errorf("reviewer identity is required"))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrFaxNotFound, "review", fmt.Errorf("id=%s", id))
	}
	if rec.Status != from {
		return nil, &domain.ConflictError{FaxID: id, Current: rec.Status, Action: "review"}
	}
	apply(rec)
	rec.ReviewedBy = reviewer
	cp := *rec
	return &cp, nil
}

func (f *reviewFake) Approve(_ context.Context, id, reviewer string) (*domain.FaxRecord, error) {
	rec, err := f.transition(id, reviewer, domain.StatusCategorized, func(r *domain.FaxRecord) {
		r.Status = domain.StatusApproved
		r.FinalCategory = r.AICategory
	})
	if err == nil {
		f.mu.Lock()
		f.approvals = append(f.approvals, id)
		f.mu.Unlock()
	}
	return rec, err
}

func (f *reviewFake) Override(_ context.Context, id, reviewer string, category domain.Category, reason string) (*domain.FaxRecord, error) {
	if reviewer == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "override", fmt.Errorf("reviewer identity is required"))
	}
	if !f.taxonomy.Assignable(category) {
		return nil, domain.WrapError(domain.ErrValidation, "override", fmt.Errorf("category %q", category))
	}
	return f.transition(id, reviewer, domain.StatusCategorized, func(r *domain.FaxRecord) {
		r.Status = domain.StatusOverridden
		r.FinalCategory = category
		r.WasOverridden = category != r.AICategory
		r.OverrideReason = reason
	})
}

func (f *reviewFake) BatchApprove(ctx context.Context, ids []string, reviewer string) domain.BatchResult {
	res := domain.BatchResult{Succeeded: []string{}, Failed: []string{}, Errors: []domain.BatchFailure{}}
	for _, id := range ids {
		if _, err := f.Approve(ctx, id, reviewer); err != nil {
			res.Failed = append(res.Failed, id)
			res.Errors = append(res.Errors, domain.BatchFailure{ID: id, Error: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}

func (f *reviewFake) BatchReview(ctx context.Context, ids []string, reviewer string, action domain.ReviewAction, category domain.Category, reason string) (domain.BatchResult, error) {
	if reviewer == "" {
		return domain.BatchResult{}, domain.WrapError(domain.ErrUnauthorized, "batch review", fmt.Errorf("reviewer identity is required"))
	}
	if action == domain.ReviewOverride && !f.taxonomy.Assignable(category) {
		return domain.BatchResult{}, domain.WrapError(domain.ErrValidation, "batch review", fmt.Errorf("category %q", category))
	}
	res := domain.BatchResult{Succeeded: []string{}, Failed: []string{}, Errors: []domain.BatchFailure{}}
	for _, id := range ids {
		var err error
		if action == domain.ReviewOverride {
			_, err = f.Override(ctx, id, reviewer, category, reason)
		} else {
			_, err = f.Approve(ctx, id, reviewer)
		}
		if err != nil {
			res.Failed = append(res.Failed, id)
			res.Errors = append(res.Errors, domain.BatchFailure{ID: id, Error: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res, nil
}

func (f *reviewFake) MarkProcessed(_ context.Context, id string) (*domain.FaxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrFaxNotFound, "process", fmt.Errorf("id=%s", id))
	}
	if rec.Status != domain.StatusApproved && rec.Status != domain.StatusOverridden {
		return nil, &domain.ConflictError{FaxID: id, Current: rec.Status, Action: "process"}
	}
	rec.Status = domain.StatusProcessed
	cp := *rec
	return &cp, nil
}

func (f *reviewFake) SubmitFeedback(_ context.Context, fb domain.Feedback) (*domain.Feedback, error) {
	if !f.taxonomy.Assignable(fb.CorrectCategory) {
		return nil, domain.WrapError(domain.ErrValidation, "feedback", fmt.Errorf("category %q", fb.CorrectCategory))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fb.ID = fmt.Sprintf("fb-%d", len(f.feedback)+1)
	f.feedback = append(f.feedback, fb)
	return &fb, nil
}

func (f *reviewFake) ListFeedback(_ context.Context, faxID string) ([]domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Feedback
	for _, fb := range f.feedback {
		if fb.FaxID == faxID {
			out = append(out, fb)
		}
	}
	return out, nil
}

type statsFake struct {
	err error
}

func (f statsFake) Summary(context.Context) (domain.QueueSummary, error) {
	if f.err != nil {
		return domain.QueueSummary{}, f.err
	}
	return domain.QueueSummary{PendingReview: 4, UrgentCount: 1}, nil
}

func (f statsFake) Stats(context.Context) (domain.FaxStats, error) {
	if f.err != nil {
		return domain.FaxStats{}, f.err
	}
	return domain.FaxStats{TotalFaxes: 10, AccuracyRate: 80, CategoryCounts: map[string]int{"census": 3}}, nil
}

type settingsFake struct {
	mu      sync.Mutex
	current domain.Settings
}

func (f *settingsFake) Get(context.Context) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *settingsFake) Update(_ context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := f.current.Apply(patch)
	if err != nil {
		return domain.Settings{}, err
	}
	f.current = next
	return next, nil
}

type intakeFake struct {
	uploads []string
}

func (f *intakeFake) Accepts(filename string) bool { return true }

func (f *intakeFake) Ingest(context.Context, domain.FaxSource) (*domain.FaxRecord, error) {
	return nil, fmt.Errorf("not used")
}

func (f *intakeFake) Upload(_ context.Context, filename string, body io.Reader) (*domain.FaxRecord, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	switch filename {
	case "notes.docx":
		return nil, domain.WrapError(domain.ErrUnsupportedFile, "upload", fmt.Errorf("extension .docx"))
	case "dup.pdf":
		return nil, domain.WrapError(domain.ErrDuplicateFax, "upload", fmt.Errorf("hash seen"))
	}
	f.uploads = append(f.uploads, filename)
	return &domain.FaxRecord{
		ID:         "fax-new",
		Filename:   filename,
		Status:     domain.StatusCategorized,
		TextLength: len(raw),
		ReceivedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}, nil
}

type watcherFake struct {
	running bool
	scans   int
}

func (f *watcherFake) status() domain.WatcherStatus {
	return domain.WatcherStatus{IsRunning: f.running, WatchFolder: "/srv/fax/inbox", RecentErrors: []domain.WatcherError{}}
}
func (f *watcherFake) Start() domain.WatcherStatus   { f.running = true; return f.status() }
func (f *watcherFake) Stop() domain.WatcherStatus    { f.running = false; return f.status() }
func (f *watcherFake) ScanNow() domain.WatcherStatus { f.scans++; return f.status() }
func (f *watcherFake) Status() domain.WatcherStatus  { return f.status() }

type routerFixture struct {
	handler  http.Handler
	review   *reviewFake
	settings *settingsFake
	intake   *intakeFake
	watcher  *watcherFake
}

func testTaxonomy(t *testing.T) *domain.Taxonomy {
	t.Helper()
	tx, err := domain.NewTaxonomy([]domain.CategoryInfo{
		{Value: "discharge_summary", Label: "Discharge Summary", Description: "Patient discharge summaries"},
		{Value: "census", Label: "Census"},
	}, domain.CategoryInfo{Value: "unknown", Label: "Unknown"})
	if err != nil {
		t.Fatalf("NewTaxonomy() error = %v", err)
	}
	return tx
}

func newRouterFixture(t *testing.T, cfg config.Config, records ...domain.FaxRecord) *routerFixture {
	t.Helper()
	tx := testTaxonomy(t)
	f := &routerFixture{
		review:   newReviewFake(tx, records...),
		settings: &settingsFake{current: domain.Settings{WatchFolder: "/srv/fax/inbox", AutoProcess: true, RequireReview: true, ConfidenceThreshold: 0.7}},
		intake:   &intakeFake{},
		watcher:  &watcherFake{},
	}
	rt, err := NewRouter(cfg, Services{
		Intake:   f.intake,
		Review:   f.review,
		Stats:    statsFake{},
		Settings: f.settings,
		Watcher:  f.watcher,
		Taxonomy: tx,
	}, Options{})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	f.handler = rt.Handler()
	return f
}

func categorizedFax(id string, category domain.Category) domain.FaxRecord {
	conf := 0.62
	return domain.FaxRecord{
		ID:            id,
		Filename:      id + ".pdf",
		OriginalPath:  "/srv/fax/inbox/" + id + ".pdf",
		ExtractedText: "DISCHARGE SUMMARY for patient",
		Status:        domain.StatusCategorized,
		AICategory:    category,
		AIConfidence:  &conf,
		ReceivedAt:    time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}
