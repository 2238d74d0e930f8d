package httpadapter

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/export"
)

type listParams struct {
	Status     *string
	Category   *string
	UrgentOnly *bool
	Limit      *int
	Offset     *int
	Order      *string
}

func bindListParams(query url.Values) (domain.FaxFilter, error) {
	const op = "bind list parameters"
	var p listParams
	bindings := []struct {
		name string
		dest any
	}{
		{"status", &p.Status},
		{"category", &p.Category},
		{"urgent_only", &p.UrgentOnly},
		{"limit", &p.Limit},
		{"offset", &p.Offset},
		{"order", &p.Order},
	}
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", true, false, b.name, query, b.dest); err != nil {
			return domain.FaxFilter{}, domain.WrapError(domain.ErrInvalidInput, op, err)
		}
	}

	var filter domain.FaxFilter
	if p.Status != nil && *p.Status != "" {
		status, ok := domain.ParseStatus(*p.Status)
		if !ok {
			return domain.FaxFilter{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("unknown status %q", *p.Status))
		}
		filter.Status = status
	}
	if p.Category != nil {
		filter.Category = domain.Category(*p.Category)
	}
	if p.UrgentOnly != nil {
		filter.UrgentOnly = *p.UrgentOnly
	}
	if p.Limit != nil {
		if *p.Limit < 1 || *p.Limit > domain.MaxListLimit {
			return domain.FaxFilter{}, domain.WrapError(domain.ErrInvalidInput, op,
				fmt.Errorf("limit must be between 1 and %d", domain.MaxListLimit))
		}
		filter.Limit = *p.Limit
	}
	if p.Offset != nil {
		if *p.Offset < 0 {
			return domain.FaxFilter{}, domain.WrapError(domain.ErrInvalidInput, op, errors.New("offset must not be negative"))
		}
		filter.Offset = *p.Offset
	}
	if p.Order != nil && *p.Order != "" {
		switch order := domain.FaxOrder(*p.Order); order {
		case domain.OrderReceived, domain.OrderPriority:
			filter.Order = order
		default:
			return domain.FaxFilter{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("unknown order %q", *p.Order))
		}
	}
	return filter, nil
}

func (rt *Router) listFaxes(w http.ResponseWriter, r *http.Request) {
	filter, err := bindListParams(r.URL.Query())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	records, err := rt.svc.Review.List(r.Context(), filter)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(records))
}

// faxSummary hides the extracted text and the stored path; the outer fields
// shadow the embedded ones during encoding.
type faxSummary struct {
	domain.FaxRecord
	OriginalPath  string `json:"original_path,omitempty"`
	ExtractedText string `json:"extracted_text,omitempty"`
}

func summarize(records []domain.FaxRecord) []faxSummary {
	out := make([]faxSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, faxSummary{FaxRecord: rec})
	}
	return out
}

func (rt *Router) getFax(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	rec, err := rt.svc.Review.Get(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type reviewRequest struct {
	Action   string `json:"action"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
	Reviewer string `json:"reviewer"`
}

func (rt *Router) reviewFax(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	var req reviewRequest
	if err := rt.readJSON(r, "ReviewRequest", &req); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	reviewer := reviewerFrom(r, req.Reviewer)

	var rec *domain.FaxRecord
	switch domain.ReviewAction(req.Action) {
	case domain.ReviewApprove:
		rec, err = rt.svc.Review.Approve(r.Context(), id, reviewer)
	case domain.ReviewOverride:
		rec, err = rt.svc.Review.Override(r.Context(), id, reviewer, rt.normalizeCategory(req.Category), req.Reason)
	default:
		err = domain.WrapError(domain.ErrInvalidInput, "review fax", fmt.Errorf("unknown action %q", req.Action))
	}
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// normalizeCategory accepts labels like "Discharge Summary". Empty input
// stays empty so validation reports it as missing.
func (rt *Router) normalizeCategory(raw string) domain.Category {
	if raw == "" || rt.svc.Taxonomy == nil {
		return domain.Category(raw)
	}
	return rt.svc.Taxonomy.Normalize(raw)
}

func (rt *Router) markProcessed(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	rec, err := rt.svc.Review.MarkProcessed(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type batchResponse struct {
	Message string `json:"message"`
	domain.BatchResult
}

func (rt *Router) batchApprove(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var ids []string
	if err := runtime.BindQueryParameter("form", true, true, "fax_ids", query, &ids); err != nil {
		rt.writeDomainError(w, r, domain.WrapError(domain.ErrInvalidInput, "batch approve", err))
		return
	}
	reviewer := reviewerFrom(r, query.Get("reviewer"))
	if reviewer == "" {
		rt.writeDomainError(w, r, domain.WrapError(domain.ErrUnauthorized, "batch approve", errors.New("reviewer identity is required")))
		return
	}

	result := rt.svc.Review.BatchApprove(r.Context(), ids, reviewer)
	writeJSON(w, http.StatusOK, batchResponse{
		Message:     fmt.Sprintf("approved %d of %d faxes", len(result.Succeeded), len(result.Succeeded)+len(result.Failed)),
		BatchResult: result,
	})
}

type batchReviewRequest struct {
	FaxIDs   []string `json:"fax_ids"`
	Action   string   `json:"action"`
	Category string   `json:"category"`
	Reason   string   `json:"reason"`
	Reviewer string   `json:"reviewer"`
}

func (rt *Router) batchReview(w http.ResponseWriter, r *http.Request) {
	var req batchReviewRequest
	if err := rt.readJSON(r, "BatchReviewRequest", &req); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	action := domain.ReviewAction(req.Action)
	result, err := rt.svc.Review.BatchReview(r.Context(), req.FaxIDs, reviewerFrom(r, req.Reviewer), action, rt.normalizeCategory(req.Category), req.Reason)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	verb := "approved"
	if action == domain.ReviewOverride {
		verb = "overrode"
	}
	writeJSON(w, http.StatusOK, batchResponse{
		Message:     fmt.Sprintf("%s %d of %d faxes", verb, len(result.Succeeded), len(result.Succeeded)+len(result.Failed)),
		BatchResult: result,
	})
}

type feedbackRequest struct {
	CorrectCategory string `json:"correct_category"`
	FeedbackText    string `json:"feedback_text"`
	SubmittedBy     string `json:"submitted_by"`
}

func (rt *Router) submitFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	var req feedbackRequest
	if err := rt.readJSON(r, "FeedbackRequest", &req); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	fb, err := rt.svc.Review.SubmitFeedback(r.Context(), domain.Feedback{
		FaxID:           id,
		CorrectCategory: rt.normalizeCategory(req.CorrectCategory),
		FeedbackText:    req.FeedbackText,
		SubmittedBy:     reviewerFrom(r, req.SubmittedBy),
	})
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

func (rt *Router) listFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	items, err := rt.svc.Review.ListFeedback(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Feedback{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (rt *Router) reviewQueue(w http.ResponseWriter, r *http.Request) {
	filter, err := bindListParams(r.URL.Query())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	records, err := rt.svc.Review.List(r.Context(), domain.FaxFilter{
		Status: domain.StatusCategorized,
		Order:  domain.OrderPriority,
		Limit:  filter.Limit,
	})
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(records))
}

func (rt *Router) exportFaxes(w http.ResponseWriter, r *http.Request) {
	filter, err := bindListParams(r.URL.Query())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if filter.Limit == 0 {
		filter.Limit = domain.MaxListLimit
	}
	records, err := rt.svc.Review.List(r.Context(), filter)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteQueueXLSX(&buf, records); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	filename := fmt.Sprintf("fax-queue-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) uploadFax(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(rt.cfg.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	rec, err := rt.svc.Intake.Upload(r.Context(), header.Filename, file)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
