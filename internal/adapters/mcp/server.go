// Package mcpadapter exposes the review queue to MCP clients as tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
)

const (
	serverName    = "fax-review-queue"
	serverVersion = "1.0.0"
)

type Deps struct {
	Review   ports.ReviewService
	Stats    ports.StatsService
	Taxonomy *domain.Taxonomy
	Logger   *slog.Logger
}

// NewServer builds an MCP server with the review tools registered.
func NewServer(deps Deps) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(true))
	registerReadTools(s, deps)
	registerReviewTools(s, deps)
	return s
}

// NewHTTPHandler serves the MCP server over stateless streamable HTTP.
// The caller mounts it, usually at /mcp.
func NewHTTPHandler(deps Deps) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(NewServer(deps), server.WithStateLess(true))
}

func registerReadTools(s *server.MCPServer, deps Deps) {
	s.AddTool(mcp.NewTool(
		"list_review_queue",
		mcp.WithDescription("Lists faxes waiting for human review, highest priority first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of faxes (default 50, max 200)")),
		mcp.WithBoolean("urgent_only", mcp.Description("Only return urgent faxes")),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := domain.FaxFilter{
			Status:     domain.StatusCategorized,
			Order:      domain.OrderPriority,
			Limit:      req.GetInt("limit", domain.DefaultListLimit),
			UrgentOnly: req.GetBool("urgent_only", false),
		}
		records, err := deps.Review.List(ctx, filter.Normalize())
		if err != nil {
			return toolError(deps.Logger, "list_review_queue", err)
		}
		items := make([]queueItem, 0, len(records))
		for i := range records {
			items = append(items, newQueueItem(&records[i]))
		}
		return jsonResult(items)
	})

	s.AddTool(mcp.NewTool(
		"get_fax",
		mcp.WithDescription("Returns one fax record including the AI suggestion and extracted summary."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Fax id")),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rec, err := deps.Review.Get(ctx, id)
		if err != nil {
			return toolError(deps.Logger, "get_fax", err)
		}
		return jsonResult(rec)
	})

	s.AddTool(mcp.NewTool(
		"queue_summary",
		mcp.WithDescription("Returns pending and urgent counts plus today's throughput."),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summary, err := deps.Stats.Summary(ctx)
		if err != nil {
			return toolError(deps.Logger, "queue_summary", err)
		}
		return jsonResult(summary)
	})

	s.AddTool(mcp.NewTool(
		"list_categories",
		mcp.WithDescription("Lists the categories a fax can be filed under."),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(deps.Taxonomy.Categories())
	})
}

func registerReviewTools(s *server.MCPServer, deps Deps) {
	s.AddTool(mcp.NewTool(
		"approve_fax",
		mcp.WithDescription("Accepts the AI category for a categorized fax."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Fax id")),
		mcp.WithString("reviewer", mcp.Required(), mcp.Description("Name of the person approving")),
		mcp.WithDestructiveHintAnnotation(false),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rec, err := deps.Review.Approve(ctx, id, req.GetString("reviewer", ""))
		if err != nil {
			return toolError(deps.Logger, "approve_fax", err)
		}
		return jsonResult(newQueueItem(rec))
	})

	s.AddTool(mcp.NewTool(
		"override_fax",
		mcp.WithDescription("Files a categorized fax under a different category. Call list_categories first."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Fax id")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category value or label")),
		mcp.WithString("reason", mcp.Description("Why the AI category was wrong")),
		mcp.WithString("reviewer", mcp.Required(), mcp.Description("Name of the person overriding")),
		mcp.WithDestructiveHintAnnotation(false),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		raw, err := req.RequireString("category")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		category := domain.Category(raw)
		if deps.Taxonomy != nil {
			category = deps.Taxonomy.Normalize(raw)
		}
		rec, err := deps.Review.Override(ctx, id, req.GetString("reviewer", ""), category, req.GetString("reason", ""))
		if err != nil {
			return toolError(deps.Logger, "override_fax", err)
		}
		return jsonResult(newQueueItem(rec))
	})
}

// queueItem is the compact view returned to agents; extracted text is omitted.
type queueItem struct {
	ID            string           `json:"id"`
	Filename      string           `json:"filename"`
	Status        domain.FaxStatus `json:"status"`
	AICategory    domain.Category  `json:"ai_category,omitempty"`
	AIConfidence  *float64         `json:"ai_confidence,omitempty"`
	FinalCategory domain.Category  `json:"final_category,omitempty"`
	IsUrgent      bool             `json:"is_urgent"`
	PriorityScore int              `json:"priority_score"`
	Summary       string           `json:"summary,omitempty"`
}

func newQueueItem(rec *domain.FaxRecord) queueItem {
	return queueItem{
		ID:            rec.ID,
		Filename:      rec.Filename,
		Status:        rec.Status,
		AICategory:    rec.AICategory,
		AIConfidence:  rec.AIConfidence,
		FinalCategory: rec.FinalCategory,
		IsUrgent:      rec.IsUrgent,
		PriorityScore: rec.PriorityScore,
		Summary:       rec.Summary,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// toolError reports caller mistakes as tool errors and everything else as a
// protocol error.
func toolError(logger *slog.Logger, tool string, err error) (*mcp.CallToolResult, error) {
	for _, kind := range []error{
		domain.ErrFaxNotFound,
		domain.ErrInvalidInput,
		domain.ErrValidation,
		domain.ErrUnauthorized,
		domain.ErrStateConflict,
	} {
		if errors.Is(err, kind) {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	logger.Error("mcp_tool_failed", "tool", tool, "error", err)
	return nil, fmt.Errorf("%s failed", tool)
}
