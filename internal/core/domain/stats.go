package domain

import "time"

type QueueSummary struct {
	PendingReview            int      `json:"pending_review"`
	UrgentCount              int      `json:"urgent_count"`
	TodayReceived            int      `json:"today_received"`
	TodayProcessed           int      `json:"today_processed"`
	AvgProcessingTimeMinutes *float64 `json:"avg_processing_time_minutes"`
}

type FaxStats struct {
	TotalFaxes        int            `json:"total_faxes"`
	Pending           int            `json:"pending"`
	Categorized       int            `json:"categorized"`
	Approved          int            `json:"approved"`
	Overridden        int            `json:"overridden"`
	Processed         int            `json:"processed"`
	AutoApproved      int            `json:"auto_approved"`
	CategoryCounts    map[string]int `json:"category_counts"`
	TotalReviewed     int            `json:"total_reviewed"`
	AccuracyRate      float64        `json:"accuracy_rate"`
	ProcessedToday    int            `json:"processed_today"`
	ProcessedThisWeek int            `json:"processed_this_week"`
}

// AccuracyRate is the share of reviewed faxes where the reviewer kept the AI category.
func AccuracyRate(approved, overridden int) float64 {
	total := approved + overridden
	if total <= 0 {
		return 0
	}
	return float64(approved) / float64(total) * 100
}

// DayStart truncates t to midnight in UTC.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
