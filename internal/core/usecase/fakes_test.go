package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

func testTaxonomy(t *testing.T) *domain.Taxonomy {
	t.Helper()
	tx, err := domain.NewTaxonomy([]domain.CategoryInfo{
		{Value: "discharge_summary", Label: "Discharge Summary", Priority: 60},
		{Value: "inpatient_document", Label: "Inpatient Document", Priority: 55},
		{Value: "census", Label: "Census", Priority: 40},
		{Value: "junk_fax", Label: "Junk Fax"},
	}, domain.CategoryInfo{Value: "unknown", Label: "Unknown", Priority: 30})
	if err != nil {
		t.Fatalf("NewTaxonomy() error = %v", err)
	}
	return tx
}

// memRepo mirrors the conditional-update semantics of the SQL store.
type memRepo struct {
	mu       sync.Mutex
	records  map[string]domain.FaxRecord
	feedback []domain.Feedback

	claimErr    error
	completeErr error
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]domain.FaxRecord)}
}

func (r *memRepo) put(rec domain.FaxRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
}

func (r *memRepo) get(id string) domain.FaxRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *memRepo) Claim(_ context.Context, rec *domain.FaxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return r.claimErr
	}
	for _, existing := range r.records {
		if existing.FileHash == rec.FileHash {
			return domain.WrapError(domain.ErrDuplicateFax, "claim", errors.New("hash exists"))
		}
	}
	r.records[rec.ID] = *rec
	return nil
}

func (r *memRepo) CompleteIngestion(_ context.Context, rec *domain.FaxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	current, ok := r.records[rec.ID]
	if !ok {
		return domain.ErrFaxNotFound
	}
	if current.Status != domain.StatusPending {
		return &domain.ConflictError{FaxID: rec.ID, Current: current.Status, Action: "complete"}
	}
	r.records[rec.ID] = *rec
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.FaxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrFaxNotFound, "get", fmt.Errorf("%s", id))
	}
	return &rec, nil
}

func (r *memRepo) FindByHash(_ context.Context, hash string) (*domain.FaxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.FileHash == hash {
			out := rec
			return &out, nil
		}
	}
	return nil, domain.ErrFaxNotFound
}

func (r *memRepo) List(_ context.Context, filter domain.FaxFilter) ([]domain.FaxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FaxRecord
	for _, rec := range r.records {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.UrgentOnly && !rec.IsUrgent {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, nil
}

func (r *memRepo) ListPendingBefore(_ context.Context, before time.Time, limit int) ([]domain.FaxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FaxRecord
	for _, rec := range r.records {
		if rec.Status == domain.StatusPending && rec.CreatedAt.Before(before) {
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) transition(id string, from []domain.FaxStatus, action string, mutate func(*domain.FaxRecord)) (*domain.FaxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrFaxNotFound, action, fmt.Errorf("%s", id))
	}
	allowed := false
	for _, s := range from {
		if rec.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, &domain.ConflictError{FaxID: id, Current: rec.Status, Action: action}
	}
	mutate(&rec)
	r.records[id] = rec
	return &rec, nil
}

func (r *memRepo) Approve(_ context.Context, id, reviewer string, at time.Time) (*domain.FaxRecord, error) {
	return r.transition(id, []domain.FaxStatus{domain.StatusCategorized}, "approve", func(rec *domain.FaxRecord) {
		rec.Status = domain.StatusApproved
		rec.FinalCategory = rec.AICategory
		rec.WasOverridden = false
		rec.ReviewedBy = reviewer
		rec.ReviewedAt = &at
	})
}

func (r *memRepo) Override(_ context.Context, id, reviewer string, category domain.Category, reason string, at time.Time) (*domain.FaxRecord, error) {
	return r.transition(id, []domain.FaxStatus{domain.StatusCategorized}, "override", func(rec *domain.FaxRecord) {
		rec.Status = domain.StatusOverridden
		rec.FinalCategory = category
		rec.WasOverridden = category != rec.AICategory
		rec.OverrideReason = reason
		rec.ReviewedBy = reviewer
		rec.ReviewedAt = &at
		r.feedback = append(r.feedback, domain.Feedback{FaxID: id, AICategory: rec.AICategory, CorrectCategory: category, FeedbackText: reason, SubmittedBy: reviewer})
	})
}

func (r *memRepo) MarkProcessed(_ context.Context, id string, at time.Time) (*domain.FaxRecord, error) {
	return r.transition(id, []domain.FaxStatus{domain.StatusApproved, domain.StatusOverridden}, "process", func(rec *domain.FaxRecord) {
		rec.Status = domain.StatusProcessed
		rec.ProcessedAt = &at
	})
}

func (r *memRepo) AddFeedback(_ context.Context, fb *domain.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, *fb)
	return nil
}

func (r *memRepo) ListFeedback(_ context.Context, faxID string) ([]domain.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Feedback
	for _, fb := range r.feedback {
		if fb.FaxID == faxID {
			out = append(out, fb)
		}
	}
	return out, nil
}

type settingsRepoFake struct {
	mu       sync.Mutex
	settings *domain.Settings
	loadErr  error
	saves    int
}

func (f *settingsRepoFake) LoadSettings(context.Context) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return domain.Settings{}, f.loadErr
	}
	if f.settings == nil {
		return domain.Settings{}, domain.ErrSettingsNotFound
	}
	return *f.settings, nil
}

func (f *settingsRepoFake) SaveSettings(_ context.Context, s domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.settings = &s
	return nil
}

// staticSettings is a SettingsService returning fixed values.
type staticSettings struct {
	settings domain.Settings
	err      error
}

func (s *staticSettings) Get(context.Context) (domain.Settings, error) {
	return s.settings, s.err
}

func (s *staticSettings) Update(context.Context, domain.SettingsPatch) (domain.Settings, error) {
	return s.settings, s.err
}

// fileStoreFake hashes paths instead of bytes.
type fileStoreFake struct {
	mu       sync.Mutex
	saved    map[string]string
	removed  []string
	hashes   map[string]string
	checkErr error
}

func newFileStoreFake() *fileStoreFake {
	return &fileStoreFake{saved: map[string]string{}, hashes: map[string]string{}}
}

func (f *fileStoreFake) Save(_ context.Context, filename string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := filepath.Join("/uploads", filename)
	f.saved[path] = string(raw)
	f.hashes[path] = "sha-" + string(raw)
	return path, nil
}

func (f *fileStoreFake) Checksum(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return "", f.checkErr
	}
	if h, ok := f.hashes[path]; ok {
		return h, nil
	}
	return "sha-" + path, nil
}

func (f *fileStoreFake) Remove(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	return nil
}

type extractorFake struct {
	text  string
	pages int
	err   error
	calls int
}

func (f *extractorFake) Supports(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".tif", ".tiff", ".txt":
		return true
	}
	return false
}

func (f *extractorFake) Extract(context.Context, string) (domain.Extraction, error) {
	f.calls++
	if f.err != nil {
		return domain.Extraction{}, f.err
	}
	return domain.Extraction{Text: f.text, PageCount: f.pages}, nil
}

type classifierFake struct {
	cls   domain.Classification
	err   error
	calls int
}

func (f *classifierFake) Classify(context.Context, string) (domain.Classification, error) {
	f.calls++
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return f.cls, nil
}

type publisherFake struct {
	mu        sync.Mutex
	decisions []domain.FaxDecision
	err       error
}

func (f *publisherFake) PublishDecision(_ context.Context, d domain.FaxDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, d)
	return f.err
}

type notifierFake struct {
	urgent []string
}

func (f *notifierFake) NotifyUrgent(_ context.Context, rec *domain.FaxRecord) error {
	f.urgent = append(f.urgent, rec.ID)
	return nil
}

const longFaxText = "DISCHARGE SUMMARY. Patient admitted for pneumonia, treated with antibiotics and discharged home in stable condition."

func categorizedRecord(id string, category domain.Category) domain.FaxRecord {
	conf := 0.8
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return domain.FaxRecord{
		ID:           id,
		Filename:     id + ".pdf",
		OriginalPath: "/in/" + id + ".pdf",
		FileHash:     "sha-" + id,
		Status:       domain.StatusCategorized,
		AICategory:   category,
		AIConfidence: &conf,
		ReceivedAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
