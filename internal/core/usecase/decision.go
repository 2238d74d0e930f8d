package usecase

import (
	"math"
	"strings"
	"unicode"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

const (
	urgentCategoryFloor = 50
	urgencySignalFloor  = 75
	uncertaintyWeight   = 10
)

var urgencyKeywords = map[string]struct{}{
	"urgent":         {},
	"asap":           {},
	"immediately":    {},
	"emergency":      {},
	"stat":           {},
	"critical":       {},
	"time-sensitive": {},
	"rush":           {},
	"priority":       {},
}

// Triage is the urgency and queue priority derived at classification time.
type Triage struct {
	IsUrgent      bool
	PriorityScore int
}

// AssessTriage scores a fax from its category, confidence and urgency signals.
// It has no side effects and is only called during ingestion.
func AssessTriage(tx *domain.Taxonomy, category domain.Category, confidence float64, classifierUrgent bool, text string) Triage {
	info, _ := tx.Lookup(category)

	score := info.Priority
	urgent := false
	if info.Urgent {
		urgent = true
		score = max(score, urgentCategoryFloor)
	}
	if classifierUrgent || containsUrgencyKeyword(text) {
		urgent = true
		score = max(score, urgencySignalFloor)
	}

	conf := domain.ClampConfidence(confidence)
	score += int(math.Round((1 - conf) * uncertaintyWeight))

	return Triage{
		IsUrgent:      urgent,
		PriorityScore: min(max(score, 0), 100),
	}
}

func containsUrgencyKeyword(text string) bool {
	if text == "" {
		return false
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, w := range words {
		if _, ok := urgencyKeywords[strings.Trim(w, "-")]; ok {
			return true
		}
	}
	return false
}
