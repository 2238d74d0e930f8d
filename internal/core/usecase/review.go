package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
)

// ReviewObserver receives review outcomes for metrics.
type ReviewObserver interface {
	ObserveReview(action, outcome string)
}

type ReviewOptions struct {
	Publisher ports.DecisionPublisher
	Observer  ReviewObserver
	Logger    *slog.Logger
	Now       func() time.Time
}

// ReviewController exposes approve/override/process transitions. Each
// transition is a single conditional update in the repository, so racing
// reviewers get one winner and a conflict for everyone else.
type ReviewController struct {
	repo      ports.FaxRepository
	taxonomy  *domain.Taxonomy
	publisher ports.DecisionPublisher
	observer  ReviewObserver
	logger    *slog.Logger
	now       func() time.Time
}

func NewReviewController(repo ports.FaxRepository, taxonomy *domain.Taxonomy, opts ReviewOptions) *ReviewController {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ReviewController{
		repo:      repo,
		taxonomy:  taxonomy,
		publisher: opts.Publisher,
		observer:  opts.Observer,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

func (c *ReviewController) List(ctx context.Context, filter domain.FaxFilter) ([]domain.FaxRecord, error) {
	filter = filter.Normalize()
	if filter.Category != "" && !c.taxonomy.Contains(filter.Category) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list faxes", fmt.Errorf("unknown category %q", filter.Category))
	}
	return c.repo.List(ctx, filter)
}

func (c *ReviewController) Get(ctx context.Context, id string) (*domain.FaxRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get fax", errors.New("fax id is required"))
	}
	return c.repo.GetByID(ctx, id)
}

func (c *ReviewController) Approve(ctx context.Context, id, reviewer string) (*domain.FaxRecord, error) {
	reviewer, err := requireReviewer("approve fax", reviewer)
	if err != nil {
		return nil, err
	}
	rec, err := c.repo.Approve(ctx, id, reviewer, c.now().UTC())
	c.finish(ctx, "approve", id, rec, err)
	return rec, err
}

func (c *ReviewController) Override(
	ctx context.Context,
	id, reviewer string,
	category domain.Category,
	reason string,
) (*domain.FaxRecord, error) {
	reviewer, err := requireReviewer("override fax", reviewer)
	if err != nil {
		return nil, err
	}
	if !c.taxonomy.Assignable(category) {
		return nil, domain.WrapError(domain.ErrValidation, "override fax", fmt.Errorf("category %q is not a valid override target", category))
	}
	rec, err := c.repo.Override(ctx, id, reviewer, category, strings.TrimSpace(reason), c.now().UTC())
	c.finish(ctx, "override", id, rec, err)
	return rec, err
}

// BatchApprove approves each id independently; one stale id never blocks the rest.
func (c *ReviewController) BatchApprove(ctx context.Context, ids []string, reviewer string) domain.BatchResult {
	return eachFax(ids, func(id string) error {
		_, err := c.Approve(ctx, id, reviewer)
		return err
	})
}

// BatchReview applies one action to every id. Request-level problems (no
// reviewer, unknown action, unassignable category) are rejected before any
// record is touched; per-record failures are reported in the result.
func (c *ReviewController) BatchReview(
	ctx context.Context,
	ids []string,
	reviewer string,
	action domain.ReviewAction,
	category domain.Category,
	reason string,
) (domain.BatchResult, error) {
	const op = "batch review"
	reviewer, err := requireReviewer(op, reviewer)
	if err != nil {
		return domain.BatchResult{}, err
	}

	var apply func(id string) error
	switch action {
	case domain.ReviewApprove:
		apply = func(id string) error {
			_, err := c.Approve(ctx, id, reviewer)
			return err
		}
	case domain.ReviewOverride:
		if !c.taxonomy.Assignable(category) {
			return domain.BatchResult{}, domain.WrapError(domain.ErrValidation, op, fmt.Errorf("category %q is not a valid override target", category))
		}
		apply = func(id string) error {
			_, err := c.Override(ctx, id, reviewer, category, reason)
			return err
		}
	default:
		return domain.BatchResult{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("unknown action %q", action))
	}

	result := eachFax(ids, apply)
	c.logger.Info("batch_reviewed",
		"action", action,
		"reviewer", reviewer,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	return result, nil
}

// eachFax runs apply once per distinct non-blank id.
func eachFax(ids []string, apply func(id string) error) domain.BatchResult {
	result := domain.BatchResult{
		Succeeded: []string{},
		Failed:    []string{},
		Errors:    []domain.BatchFailure{},
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := apply(id); err != nil {
			result.Failed = append(result.Failed, id)
			result.Errors = append(result.Errors, domain.BatchFailure{ID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// MarkProcessed files an approved or overridden fax as terminally processed.
func (c *ReviewController) MarkProcessed(ctx context.Context, id string) (*domain.FaxRecord, error) {
	rec, err := c.repo.MarkProcessed(ctx, id, c.now().UTC())
	c.finish(ctx, "process", id, rec, err)
	return rec, err
}

func (c *ReviewController) SubmitFeedback(ctx context.Context, fb domain.Feedback) (*domain.Feedback, error) {
	if !c.taxonomy.Assignable(fb.CorrectCategory) {
		return nil, domain.WrapError(domain.ErrValidation, "submit feedback", fmt.Errorf("category %q is not valid", fb.CorrectCategory))
	}
	rec, err := c.repo.GetByID(ctx, fb.FaxID)
	if err != nil {
		return nil, err
	}

	fb.ID = uuid.NewString()
	fb.AICategory = rec.AICategory
	if fb.AICategory == "" {
		fb.AICategory = c.taxonomy.Unknown()
	}
	fb.FeedbackText = strings.TrimSpace(fb.FeedbackText)
	fb.SubmittedBy = strings.TrimSpace(fb.SubmittedBy)
	fb.CreatedAt = c.now().UTC()

	if err := c.repo.AddFeedback(ctx, &fb); err != nil {
		return nil, fmt.Errorf("add feedback: %w", err)
	}
	return &fb, nil
}

func (c *ReviewController) ListFeedback(ctx context.Context, faxID string) ([]domain.Feedback, error) {
	if _, err := c.repo.GetByID(ctx, faxID); err != nil {
		return nil, err
	}
	return c.repo.ListFeedback(ctx, faxID)
}

func (c *ReviewController) finish(ctx context.Context, action, id string, rec *domain.FaxRecord, err error) {
	switch {
	case err == nil:
		c.observe(action, "success")
		c.logger.Info("fax_reviewed", "action", action, "fax_id", id, "status", rec.Status, "final_category", rec.FinalCategory)
		c.publish(ctx, rec)
	case errors.Is(err, domain.ErrStateConflict):
		c.observe(action, "conflict")
		c.logger.Warn("review_conflict", "action", action, "fax_id", id, "error", err)
	case errors.Is(err, domain.ErrFaxNotFound):
		c.observe(action, "not_found")
	default:
		c.observe(action, "error")
		c.logger.Error("review_failed", "action", action, "fax_id", id, "error", err)
	}
}

func (c *ReviewController) publish(ctx context.Context, rec *domain.FaxRecord) {
	if c.publisher == nil || rec == nil {
		return
	}
	if err := c.publisher.PublishDecision(ctx, domain.DecisionFor(rec, c.now().UTC())); err != nil {
		c.logger.Warn("decision_publish_failed", "fax_id", rec.ID, "error", err)
	}
}

func (c *ReviewController) observe(action, outcome string) {
	if c.observer != nil {
		c.observer.ObserveReview(action, outcome)
	}
}

func requireReviewer(op, reviewer string) (string, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, op, errors.New("reviewer identity is required"))
	}
	return reviewer, nil
}
