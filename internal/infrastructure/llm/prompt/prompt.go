// Package prompt builds the fax classification prompt shared by all LLM
// providers and parses their answers.
package prompt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

// MaxSnippetRunes bounds how much fax text is sent to the model.
const MaxSnippetRunes = 4000

const System = `You are a medical office fax categorization assistant.
You always answer with a single strict JSON object and nothing else.`

// Builder renders prompts for a fixed taxonomy.
type Builder struct {
	categories []domain.CategoryInfo
	unknown    domain.Category
}

func NewBuilder(taxonomy *domain.Taxonomy) *Builder {
	return &Builder{categories: taxonomy.Categories(), unknown: taxonomy.Unknown()}
}

func (b *Builder) Classification(text string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following fax document and categorize it into ONE of these categories:\n\n")
	for _, c := range b.categories {
		desc := c.Description
		if desc == "" {
			desc = c.Label
		}
		fmt.Fprintf(&sb, "- %s: %s\n", c.Value, desc)
	}
	fmt.Fprintf(&sb, `
Use %q only when no other category fits.
Also assess your confidence (0.0 to 1.0), whether the fax needs urgent attention,
and summarize it in 1-3 sentences (sender, purpose, deadlines).

Return STRICT JSON with exactly these keys:
{"category": "one_of_the_categories", "confidence": 0.85, "reason": "brief explanation", "urgent": false, "summary": "..."}

Fax document:
`, string(b.unknown))
	sb.WriteString(Snippet(text))
	return sb.String()
}

func Snippet(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > MaxSnippetRunes {
		return string(runes[:MaxSnippetRunes])
	}
	return text
}

type answer struct {
	Category   string          `json:"category"`
	Confidence json.RawMessage `json:"confidence"`
	Reason     string          `json:"reason"`
	Urgent     json.RawMessage `json:"urgent"`
	Summary    string          `json:"summary"`
}

// Parse extracts the classification from a model answer. Models wrap JSON in
// prose or code fences and send numbers as strings, so the first {...} span
// is decoded leniently. The category is returned raw; mapping onto the
// taxonomy happens in the pipeline.
func Parse(raw string) (domain.Classification, error) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return domain.Classification{}, fmt.Errorf("no json object in model answer: %q", truncate(raw, 200))
	}

	var a answer
	if err := json.Unmarshal([]byte(obj), &a); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}
	if strings.TrimSpace(a.Category) == "" {
		return domain.Classification{}, fmt.Errorf("classification json has no category")
	}
	confidence, err := parseNumber(a.Confidence)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("parse confidence: %w", err)
	}

	return domain.Classification{
		Category:   strings.TrimSpace(a.Category),
		Confidence: confidence,
		Reason:     strings.TrimSpace(a.Reason),
		Urgent:     parseBool(a.Urgent),
		Summary:    strings.TrimSpace(a.Summary),
	}, nil
}

func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func parseNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("unexpected value %s", raw)
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f > 1 {
		f /= 100
	}
	return f, nil
}

func parseBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseBool(strings.TrimSpace(s))
		return v
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
