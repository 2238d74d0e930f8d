package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Settings struct {
	WatchFolder         string    `json:"watch_folder"`
	AutoProcess         bool      `json:"auto_process"`
	RequireReview       bool      `json:"require_review"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	UpdatedAt           time.Time `json:"updated_at,omitzero"`
}

// SettingsPatch carries a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	WatchFolder         *string  `json:"watch_folder,omitempty"`
	AutoProcess         *bool    `json:"auto_process,omitempty"`
	RequireReview       *bool    `json:"require_review,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

func (p SettingsPatch) Empty() bool {
	return p.WatchFolder == nil && p.AutoProcess == nil && p.RequireReview == nil && p.ConfidenceThreshold == nil
}

func (s Settings) Apply(p SettingsPatch) (Settings, error) {
	out := s
	if p.WatchFolder != nil {
		folder := strings.TrimSpace(*p.WatchFolder)
		if folder == "" {
			return s, WrapError(ErrValidation, "apply settings", fmt.Errorf("watch_folder must not be empty"))
		}
		out.WatchFolder = folder
	}
	if p.AutoProcess != nil {
		out.AutoProcess = *p.AutoProcess
	}
	if p.RequireReview != nil {
		out.RequireReview = *p.RequireReview
	}
	if p.ConfidenceThreshold != nil {
		threshold := *p.ConfidenceThreshold
		if math.IsNaN(threshold) {
			return s, WrapError(ErrValidation, "apply settings", fmt.Errorf("confidence_threshold must be a number"))
		}
		out.ConfidenceThreshold = ClampConfidence(threshold)
	}
	return out, nil
}

// AutoApproves is the auto-approval gate. The comparison is inclusive.
func (s Settings) AutoApproves(confidence float64) bool {
	return s.AutoProcess && !s.RequireReview && confidence >= s.ConfidenceThreshold
}

func ClampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
