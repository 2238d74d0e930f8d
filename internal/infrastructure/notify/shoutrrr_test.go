package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

func TestUrgentMessageUsesCategoryLabel(t *testing.T) {
	tx, err := domain.NewTaxonomy([]domain.CategoryInfo{
		{Value: "lab_results", Label: "Lab Results", Urgent: true},
	}, domain.CategoryInfo{Value: "unknown", Label: "Unknown"})
	require.NoError(t, err)

	conf := 0.72
	title, body := UrgentMessage(&domain.FaxRecord{
		ID:            "fax-9",
		Filename:      "lab_0301.pdf",
		PageCount:     2,
		PriorityScore: 88,
		AICategory:    "lab_results",
		AIConfidence:  &conf,
		Summary:       "Critical potassium for J. Doe.",
	}, tx)

	assert.Equal(t, "Urgent fax: Lab Results", title)
	assert.Contains(t, body, "lab_0301.pdf (2 pages) needs review, priority 88.")
	assert.Contains(t, body, "Confidence 72%.")
	assert.Contains(t, body, "Critical potassium")
	assert.True(t, strings.HasSuffix(body, "Fax ID: fax-9"))
}

func TestUrgentMessageTruncatesSummary(t *testing.T) {
	_, body := UrgentMessage(&domain.FaxRecord{
		ID:         "fax-1",
		AICategory: "mystery",
		Summary:    strings.Repeat("a", summaryLimit+50),
	}, nil)
	assert.Contains(t, body, strings.Repeat("a", summaryLimit)+"...")
	assert.NotContains(t, body, strings.Repeat("a", summaryLimit+1))
}

func TestNewShoutrrrValidatesURLs(t *testing.T) {
	_, err := NewShoutrrr(nil, time.Second, nil)
	require.Error(t, err)

	_, err = NewShoutrrr([]string{"notaservice://token@host"}, time.Second, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token")
}
