package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
)

const statsWeekDays = 7

// StatisticsAggregator recomputes queue metrics from the store on every call.
type StatisticsAggregator struct {
	reader ports.FaxStatsReader
	now    func() time.Time
}

func NewStatisticsAggregator(reader ports.FaxStatsReader) *StatisticsAggregator {
	return &StatisticsAggregator{reader: reader, now: time.Now}
}

func (a *StatisticsAggregator) Summary(ctx context.Context) (domain.QueueSummary, error) {
	today := domain.DayStart(a.now())

	byStatus, err := a.reader.CountByStatus(ctx)
	if err != nil {
		return domain.QueueSummary{}, fmt.Errorf("count by status: %w", err)
	}
	urgent, err := a.reader.CountUrgentAwaitingReview(ctx)
	if err != nil {
		return domain.QueueSummary{}, fmt.Errorf("count urgent: %w", err)
	}
	received, err := a.reader.CountReceivedSince(ctx, today)
	if err != nil {
		return domain.QueueSummary{}, fmt.Errorf("count received today: %w", err)
	}
	processed, err := a.reader.CountProcessedSince(ctx, today)
	if err != nil {
		return domain.QueueSummary{}, fmt.Errorf("count processed today: %w", err)
	}
	latency, ok, err := a.reader.AverageReviewLatency(ctx)
	if err != nil {
		return domain.QueueSummary{}, fmt.Errorf("average review latency: %w", err)
	}

	summary := domain.QueueSummary{
		PendingReview:  byStatus[domain.StatusCategorized],
		UrgentCount:    urgent,
		TodayReceived:  received,
		TodayProcessed: processed,
	}
	if ok {
		minutes := latency.Minutes()
		summary.AvgProcessingTimeMinutes = &minutes
	}
	return summary, nil
}

func (a *StatisticsAggregator) Stats(ctx context.Context) (domain.FaxStats, error) {
	today := domain.DayStart(a.now())
	weekStart := today.AddDate(0, 0, -statsWeekDays)

	byStatus, err := a.reader.CountByStatus(ctx)
	if err != nil {
		return domain.FaxStats{}, fmt.Errorf("count by status: %w", err)
	}
	byCategory, err := a.reader.CountByCategory(ctx)
	if err != nil {
		return domain.FaxStats{}, fmt.Errorf("count by category: %w", err)
	}
	autoApproved, err := a.reader.CountAutoApproved(ctx)
	if err != nil {
		return domain.FaxStats{}, fmt.Errorf("count auto approved: %w", err)
	}
	processedToday, err := a.reader.CountProcessedSince(ctx, today)
	if err != nil {
		return domain.FaxStats{}, fmt.Errorf("count processed today: %w", err)
	}
	processedWeek, err := a.reader.CountProcessedSince(ctx, weekStart)
	if err != nil {
		return domain.FaxStats{}, fmt.Errorf("count processed this week: %w", err)
	}

	stats := domain.FaxStats{
		Pending:           byStatus[domain.StatusPending],
		Categorized:       byStatus[domain.StatusCategorized],
		Approved:          byStatus[domain.StatusApproved],
		Overridden:        byStatus[domain.StatusOverridden],
		Processed:         byStatus[domain.StatusProcessed],
		AutoApproved:      autoApproved,
		CategoryCounts:    byCategory,
		ProcessedToday:    processedToday,
		ProcessedThisWeek: processedWeek,
	}
	for _, n := range byStatus {
		stats.TotalFaxes += n
	}
	if stats.CategoryCounts == nil {
		stats.CategoryCounts = map[string]int{}
	}
	stats.TotalReviewed = stats.Approved + stats.Overridden
	stats.AccuracyRate = domain.AccuracyRate(stats.Approved, stats.Overridden)
	return stats, nil
}
