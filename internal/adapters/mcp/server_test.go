package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

type fakeReview struct {
	records    map[string]*domain.FaxRecord
	lastFilter domain.FaxFilter
	failList   error
}

func (f *fakeReview) List(_ context.Context, filter domain.FaxFilter) ([]domain.FaxRecord, error) {
	f.lastFilter = filter
	if f.failList != nil {
		return nil, f.failList
	}
	var out []domain.FaxRecord
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeReview) Get(_ context.Context, id string) (*domain.FaxRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrFaxNotFound, "get fax", fmt.Errorf("id=%s", id))
	}
	return rec, nil
}

func (f *fakeReview) Approve(ctx context.Context, id, reviewer string) (*domain.FaxRecord, error) {
	rec, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.StatusApproved
	rec.FinalCategory = rec.AICategory
	rec.ReviewedBy = reviewer
	return rec, nil
}

func (f *fakeReview) Override(ctx context.Context, id, reviewer string, category domain.Category, reason string) (*domain.FaxRecord, error) {
	if category == "unknown" {
		return nil, domain.WrapError(domain.ErrValidation, "override", fmt.Errorf("category %q is not assignable", category))
	}
	rec, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.StatusOverridden
	rec.FinalCategory = category
	rec.OverrideReason = reason
	rec.ReviewedBy = reviewer
	return rec, nil
}

func (f *fakeReview) BatchApprove(context.Context, []string, string) domain.BatchResult {
	return domain.BatchResult{}
}

func (f *fakeReview) BatchReview(context.Context, []string, string, domain.ReviewAction, domain.Category, string) (domain.BatchResult, error) {
	return domain.BatchResult{}, nil
}

func (f *fakeReview) MarkProcessed(context.Context, string) (*domain.FaxRecord, error) {
	return nil, nil
}

func (f *fakeReview) SubmitFeedback(context.Context, domain.Feedback) (*domain.Feedback, error) {
	return nil, nil
}

func (f *fakeReview) ListFeedback(context.Context, string) ([]domain.Feedback, error) {
	return nil, nil
}

type fakeStats struct{}

func (fakeStats) Summary(context.Context) (domain.QueueSummary, error) {
	return domain.QueueSummary{PendingReview: 3, UrgentCount: 1}, nil
}

func (fakeStats) Stats(context.Context) (domain.FaxStats, error) {
	return domain.FaxStats{}, nil
}

type toolResponse struct {
	Result *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T, review *fakeReview) *server.MCPServer {
	t.Helper()
	tx, err := domain.NewTaxonomy([]domain.CategoryInfo{
		{Value: "discharge_summary", Label: "Discharge Summary"},
		{Value: "census", Label: "Census"},
	}, domain.CategoryInfo{Value: "unknown", Label: "Unknown"})
	require.NoError(t, err)
	return NewServer(Deps{Review: review, Stats: fakeStats{}, Taxonomy: tx})
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	reqBytes, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), reqBytes))
	require.NoError(t, err)

	var resp toolResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func newReview() *fakeReview {
	conf := 0.55
	return &fakeReview{records: map[string]*domain.FaxRecord{
		"fax-1": {ID: "fax-1", Filename: "a.pdf", Status: domain.StatusCategorized, AICategory: "census", AIConfidence: &conf, ExtractedText: "long text"},
	}}
}

func TestRegistersTools(t *testing.T) {
	s := newTestServer(t, newReview())

	raw, err := json.Marshal(s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))

	found := map[string]bool{}
	for _, tool := range response.Result.Tools {
		found[tool.Name] = true
	}
	for _, name := range []string{"list_review_queue", "get_fax", "queue_summary", "list_categories", "approve_fax", "override_fax"} {
		assert.True(t, found[name], "tool %s should be registered", name)
	}
}

func TestListReviewQueue(t *testing.T) {
	review := newReview()
	s := newTestServer(t, review)

	resp := callTool(t, s, "list_review_queue", map[string]any{"limit": 500, "urgent_only": true})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.IsError)

	assert.Equal(t, domain.StatusCategorized, review.lastFilter.Status)
	assert.Equal(t, domain.OrderPriority, review.lastFilter.Order)
	assert.Equal(t, domain.MaxListLimit, review.lastFilter.Limit)
	assert.True(t, review.lastFilter.UrgentOnly)

	var items []queueItem
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "fax-1", items[0].ID)
	assert.NotContains(t, resp.Result.Content[0].Text, "long text")
}

func TestGetFaxNotFoundIsToolError(t *testing.T) {
	s := newTestServer(t, newReview())

	resp := callTool(t, s, "get_fax", map[string]any{"id": "missing"})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.IsError)
	assert.Contains(t, resp.Result.Content[0].Text, "fax not found")
}

func TestQueueSummary(t *testing.T) {
	s := newTestServer(t, newReview())

	resp := callTool(t, s, "queue_summary", map[string]any{})
	require.NotNil(t, resp.Result)

	var summary domain.QueueSummary
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &summary))
	assert.Equal(t, 3, summary.PendingReview)
}

func TestApproveAndOverride(t *testing.T) {
	review := newReview()
	s := newTestServer(t, review)

	resp := callTool(t, s, "approve_fax", map[string]any{"id": "fax-1", "reviewer": "nurse"})
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.IsError)
	assert.Equal(t, domain.StatusApproved, review.records["fax-1"].Status)

	resp = callTool(t, s, "override_fax", map[string]any{"id": "fax-1", "category": "Discharge Summary", "reviewer": "nurse"})
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.IsError)
	assert.Equal(t, domain.Category("discharge_summary"), review.records["fax-1"].FinalCategory)

	resp = callTool(t, s, "override_fax", map[string]any{"id": "fax-1", "category": "something else", "reviewer": "nurse"})
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.IsError)
}

func TestUnexpectedErrorIsProtocolError(t *testing.T) {
	review := newReview()
	review.failList = fmt.Errorf("connection reset")
	s := newTestServer(t, review)

	resp := callTool(t, s, "list_review_queue", map[string]any{})
	require.NotNil(t, resp.Error)
	assert.NotContains(t, resp.Error.Message, "connection reset")
}
