package httpadapter

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/fax-review-queue/internal/config"
	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

func doRequest(t *testing.T, h http.Handler, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

func TestListFaxesBindsFilter(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	res := doRequest(t, f.handler, http.MethodGet, apiBase+"?status=categorized&urgent_only=true&limit=10&offset=5&order=priority", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	got := f.review.lastList
	want := domain.FaxFilter{Status: domain.StatusCategorized, UrgentOnly: true, Limit: 10, Offset: 5, Order: domain.OrderPriority}
	if got != want {
		t.Fatalf("filter = %+v, want %+v", got, want)
	}
	records := decodeBody[[]domain.FaxRecord](t, res)
	if len(records) != 1 || records[0].ID != "a" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if strings.Contains(res.Body.String(), "extracted_text") || strings.Contains(res.Body.String(), "original_path") {
		t.Fatalf("list must not expose text or stored path: %s", res.Body.String())
	}
}

func TestListFaxesRejectsBadParameters(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	for _, query := range []string{"?status=lost", "?limit=0", "?limit=201", "?limit=abc", "?order=random", "?offset=-1"} {
		res := doRequest(t, f.handler, http.MethodGet, apiBase+query, nil, nil)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, res.Code)
		}
	}
}

func TestGetFaxNotFound(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	res := doRequest(t, f.handler, http.MethodGet, apiBase+"/missing", nil, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestReviewApproveUsesAuthenticatedUser(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/a/review",
		[]byte(`{"action":"approve","reviewer":"body-user"}`),
		map[string]string{authenticatedUserHeader: "dr.lee"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	rec := decodeBody[domain.FaxRecord](t, res)
	if rec.Status != domain.StatusApproved || rec.FinalCategory != "census" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.ReviewedBy != "dr.lee" {
		t.Fatalf("expected header identity to win, got %q", rec.ReviewedBy)
	}
}

func TestReviewWithoutReviewerIsUnauthorized(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/a/review", []byte(`{"action":"approve"}`), nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestReviewOverrideNormalizesLabel(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/a/review",
		[]byte(`{"action":"override","category":"Discharge Summary","reason":"has discharge date","reviewer":"nurse"}`), nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	rec := decodeBody[domain.FaxRecord](t, res)
	if rec.Status != domain.StatusOverridden || rec.FinalCategory != "discharge_summary" || !rec.WasOverridden {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestReviewOverrideRejectsUnassignableCategory(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	for _, category := range []string{"unknown", "lab_results", ""} {
		body, _ := json.Marshal(map[string]string{"action": "override", "category": category, "reviewer": "nurse"})
		res := doRequest(t, f.handler, http.MethodPost, apiBase+"/a/review", body, nil)
		if res.Code != http.StatusUnprocessableEntity {
			t.Fatalf("category %q: expected 422, got %d", category, res.Code)
		}
	}
}

func TestReviewRejectsInvalidBody(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	for _, body := range []string{`{"action":"reject","reviewer":"x"}`, `{"reviewer":"x"}`, `not json`, ``} {
		res := doRequest(t, f.handler, http.MethodPost, apiBase+"/a/review", []byte(body), nil)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, res.Code)
		}
	}
}

func TestReviewConflictOnProcessedFax(t *testing.T) {
	done := categorizedFax("a", "census")
	done.Status = domain.StatusProcessed
	f := newRouterFixture(t, config.Config{}, done)

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/a/review", []byte(`{"action":"approve","reviewer":"nurse"}`), nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestMarkProcessed(t *testing.T) {
	approved := categorizedFax("a", "census")
	approved.Status = domain.StatusApproved
	f := newRouterFixture(t, config.Config{}, approved, categorizedFax("b", "census"))

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/a/process", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	res = doRequest(t, f.handler, http.MethodPost, apiBase+"/b/process", nil, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for undecided fax, got %d", res.Code)
	}
}

func TestBatchApproveReportsPartialResults(t *testing.T) {
	done := categorizedFax("c", "census")
	done.Status = domain.StatusProcessed
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"), categorizedFax("b", "census"), done)

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/batch/approve?fax_ids=a&fax_ids=b&fax_ids=c&fax_ids=zzz&reviewer=nurse", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody[batchResponse](t, res)
	if body.Message != "approved 2 of 4 faxes" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if len(body.Succeeded) != 2 || len(body.Failed) != 2 || len(body.Errors) != 2 {
		t.Fatalf("unexpected result: %+v", body.BatchResult)
	}
}

func TestBatchApproveValidation(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/batch/approve?reviewer=nurse", nil, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("missing ids: expected 400, got %d", res.Code)
	}
	res = doRequest(t, f.handler, http.MethodPost, apiBase+"/batch/approve?fax_ids=a", nil, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("missing reviewer: expected 401, got %d", res.Code)
	}
	if len(f.review.approvals) != 0 {
		t.Fatalf("expected no approvals, got %v", f.review.approvals)
	}
}

func TestBatchReviewOverridesWithPartialSuccess(t *testing.T) {
	done := categorizedFax("c", "census")
	done.Status = domain.StatusProcessed
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"), categorizedFax("b", "unknown"), done)

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/batch/review",
		[]byte(`{"fax_ids":["a","b","c"],"action":"override","category":"Discharge Summary","reason":"cover sheet"}`),
		map[string]string{authenticatedUserHeader: "nurse"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody[batchResponse](t, res)
	if body.Message != "overrode 2 of 3 faxes" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if len(body.Succeeded) != 2 || len(body.Failed) != 1 || body.Failed[0] != "c" {
		t.Fatalf("unexpected result: %+v", body.BatchResult)
	}
	for _, id := range []string{"a", "b"} {
		rec := f.review.records[id]
		if rec.Status != domain.StatusOverridden || rec.FinalCategory != "discharge_summary" || rec.ReviewedBy != "nurse" {
			t.Fatalf("%s: unexpected record %+v", id, rec)
		}
	}
}

func TestBatchReviewRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		headers map[string]string
		want    int
	}{
		{name: "unassignable category", body: `{"fax_ids":["a"],"action":"override","category":"unknown","reviewer":"nurse"}`, want: http.StatusUnprocessableEntity},
		{name: "override without category", body: `{"fax_ids":["a"],"action":"override","reviewer":"nurse"}`, want: http.StatusUnprocessableEntity},
		{name: "unknown action", body: `{"fax_ids":["a"],"action":"reject","reviewer":"nurse"}`, want: http.StatusBadRequest},
		{name: "empty id list", body: `{"fax_ids":[],"action":"approve","reviewer":"nurse"}`, want: http.StatusBadRequest},
		{name: "no reviewer", body: `{"fax_ids":["a"],"action":"approve"}`, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

			res := doRequest(t, f.handler, http.MethodPost, apiBase+"/batch/review", []byte(tt.body), tt.headers)
			if res.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, res.Code, res.Body.String())
			}
			if rec := f.review.records["a"]; rec.Status != domain.StatusCategorized {
				t.Fatalf("record must be untouched, got %s", rec.Status)
			}
		})
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/a/feedback",
		[]byte(`{"correct_category":"discharge_summary","feedback_text":"two page summary"}`),
		map[string]string{authenticatedUserHeader: "dr.lee"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	fb := decodeBody[domain.Feedback](t, res)
	if fb.SubmittedBy != "dr.lee" || fb.CorrectCategory != "discharge_summary" {
		t.Fatalf("unexpected feedback: %+v", fb)
	}

	res = doRequest(t, f.handler, http.MethodGet, apiBase+"/a/feedback", nil, nil)
	items := decodeBody[[]domain.Feedback](t, res)
	if len(items) != 1 {
		t.Fatalf("expected 1 feedback item, got %d", len(items))
	}

	res = doRequest(t, f.handler, http.MethodGet, apiBase+"/other/feedback", nil, nil)
	if strings.TrimSpace(res.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", res.Body.String())
	}
}

func TestFeedbackRequiresCategory(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/a/feedback", []byte(`{"correct_category":""}`), nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestReviewQueueListsCategorizedByPriority(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	res := doRequest(t, f.handler, http.MethodGet, apiBase+"/queue?limit=20", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	got := f.review.lastList
	if got.Status != domain.StatusCategorized || got.Order != domain.OrderPriority || got.Limit != 20 {
		t.Fatalf("unexpected filter: %+v", got)
	}
}

func TestUploadFax(t *testing.T) {
	f := newRouterFixture(t, config.Config{MaxUploadMB: 1})

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		_, _ = part.Write(content)
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, apiBase+"/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		res := httptest.NewRecorder()
		f.handler.ServeHTTP(res, req)
		return res
	}

	res := upload("fax.txt", []byte("DISCHARGE SUMMARY"))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	rec := decodeBody[domain.FaxRecord](t, res)
	if rec.Filename != "fax.txt" || rec.TextLength != len("DISCHARGE SUMMARY") {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if res := upload("notes.docx", []byte("x")); res.Code != http.StatusBadRequest {
		t.Fatalf("unsupported: expected 400, got %d", res.Code)
	}
	if res := upload("dup.pdf", []byte("x")); res.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", res.Code)
	}
	if res := upload("big.pdf", bytes.Repeat([]byte("a"), 2<<20)); res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("too large: expected 413, got %d", res.Code)
	}
	if len(f.intake.uploads) != 1 {
		t.Fatalf("expected 1 accepted upload, got %v", f.intake.uploads)
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/upload", []byte(`{}`), nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSettingsUpdate(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	res := doRequest(t, f.handler, http.MethodPut, apiBase+"/settings",
		[]byte(`{"require_review":false,"confidence_threshold":1.7}`), nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	s := decodeBody[domain.Settings](t, res)
	if s.RequireReview || s.ConfidenceThreshold != 1 || s.WatchFolder != "/srv/fax/inbox" {
		t.Fatalf("unexpected settings: %+v", s)
	}

	res = doRequest(t, f.handler, http.MethodPut, apiBase+"/settings", []byte(`{"watch_folder":"   "}`), nil)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank folder: expected 422, got %d", res.Code)
	}
	res = doRequest(t, f.handler, http.MethodPut, apiBase+"/settings", []byte(`{"theme":"dark"}`), nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", res.Code)
	}

	res = doRequest(t, f.handler, http.MethodGet, apiBase+"/settings", nil, nil)
	if got := decodeBody[domain.Settings](t, res); got.ConfidenceThreshold != 1 {
		t.Fatalf("expected persisted threshold 1, got %v", got.ConfidenceThreshold)
	}
}

func TestSummaryStatsAndCategories(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	res := doRequest(t, f.handler, http.MethodGet, apiBase+"/summary", nil, nil)
	if got := decodeBody[domain.QueueSummary](t, res); got.PendingReview != 4 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	res = doRequest(t, f.handler, http.MethodGet, apiBase+"/stats", nil, nil)
	if got := decodeBody[domain.FaxStats](t, res); got.TotalFaxes != 10 || got.CategoryCounts["census"] != 3 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	res = doRequest(t, f.handler, http.MethodGet, apiBase+"/categories", nil, nil)
	cats := decodeBody[[]domain.CategoryInfo](t, res)
	if len(cats) != 3 || cats[len(cats)-1].Value != "unknown" {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

func TestWatcherEndpoints(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	res := doRequest(t, f.handler, http.MethodPost, apiBase+"/watcher/start", nil, nil)
	if got := decodeBody[domain.WatcherStatus](t, res); !got.IsRunning {
		t.Fatalf("expected running watcher, got %+v", got)
	}
	doRequest(t, f.handler, http.MethodPost, apiBase+"/watcher/scan", nil, nil)
	if f.watcher.scans != 1 {
		t.Fatalf("expected one scan, got %d", f.watcher.scans)
	}
	res = doRequest(t, f.handler, http.MethodPost, apiBase+"/watcher/stop", nil, nil)
	if got := decodeBody[domain.WatcherStatus](t, res); got.IsRunning {
		t.Fatalf("expected stopped watcher, got %+v", got)
	}
}

func TestWatcherEndpointsWithoutWatcher(t *testing.T) {
	rt, err := NewRouter(config.Config{}, Services{Taxonomy: testTaxonomy(t)}, Options{})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	res := doRequest(t, rt.Handler(), http.MethodGet, apiBase+"/watcher/status", nil, nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestExportXLSX(t *testing.T) {
	f := newRouterFixture(t, config.Config{}, categorizedFax("a", "census"))

	res := doRequest(t, f.handler, http.MethodGet, apiBase+"/export.xlsx?status=categorized", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if ct := res.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := res.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if f.review.lastList.Limit != domain.MaxListLimit {
		t.Fatalf("expected export limit %d, got %d", domain.MaxListLimit, f.review.lastList.Limit)
	}
	// xlsx files are zip archives.
	if !bytes.HasPrefix(res.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected zip payload")
	}
}

func TestOpenAPIAndRequestID(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	res := doRequest(t, f.handler, http.MethodGet, "/openapi.yaml", nil, map[string]string{requestIDHeader: "req-42"})
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "openapi:") {
		t.Fatalf("expected openapi document, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) != "req-42" {
		t.Fatalf("expected request id to be echoed")
	}
}

func TestInternalErrorsHideDetails(t *testing.T) {
	rt, err := NewRouter(config.Config{}, Services{Stats: statsFake{err: errBoom}}, Options{})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	res := doRequest(t, rt.Handler(), http.MethodGet, apiBase+"/summary", nil, nil)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "db password") {
		t.Fatalf("internal error leaked: %s", res.Body.String())
	}
}

var errBoom = &leakyError{}

type leakyError struct{}

func (*leakyError) Error() string { return "dial tcp: db password rejected" }
