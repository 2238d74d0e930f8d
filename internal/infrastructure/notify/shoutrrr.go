// Package notify delivers urgent-fax alerts through shoutrrr service URLs
// (Slack, Teams, SMTP, generic webhooks).
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

const summaryLimit = 280

type Shoutrrr struct {
	sender   *router.ServiceRouter
	taxonomy *domain.Taxonomy
}

func NewShoutrrr(urls []string, timeout time.Duration, taxonomy *domain.Taxonomy) (*Shoutrrr, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one notification url is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// shoutrrr errors echo the url, which may carry tokens
		return nil, fmt.Errorf("create notification sender: invalid service url")
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &Shoutrrr{sender: sender, taxonomy: taxonomy}, nil
}

func (s *Shoutrrr) NotifyUrgent(_ context.Context, rec *domain.FaxRecord) error {
	title, body := UrgentMessage(rec, s.taxonomy)
	params := stypes.Params{}
	params.SetTitle(title)
	for _, err := range s.sender.Send(body, &params) {
		if err != nil {
			return fmt.Errorf("send urgent fax notification: %w", err)
		}
	}
	return nil
}

// UrgentMessage renders the alert title and body for an urgent fax.
func UrgentMessage(rec *domain.FaxRecord, taxonomy *domain.Taxonomy) (string, string) {
	category := rec.FinalCategory
	if category == "" {
		category = rec.AICategory
	}
	label := string(category)
	if taxonomy != nil {
		if info, ok := taxonomy.Lookup(category); ok && info.Label != "" {
			label = info.Label
		}
	}

	title := fmt.Sprintf("Urgent fax: %s", label)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d pages) needs review, priority %d.", rec.Filename, rec.PageCount, rec.PriorityScore)
	if rec.AIConfidence != nil {
		fmt.Fprintf(&sb, " Confidence %.0f%%.", *rec.AIConfidence*100)
	}
	if summary := strings.TrimSpace(rec.Summary); summary != "" {
		runes := []rune(summary)
		if len(runes) > summaryLimit {
			summary = string(runes[:summaryLimit]) + "..."
		}
		sb.WriteString("\n")
		sb.WriteString(summary)
	}
	fmt.Fprintf(&sb, "\nFax ID: %s", rec.ID)
	return title, sb.String()
}
