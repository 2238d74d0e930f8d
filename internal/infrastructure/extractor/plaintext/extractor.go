package plaintext

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

// maxTextBytes bounds how much of a text fax is read into memory.
const maxTextBytes = 4 << 20

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads a UTF-8 text fax. Form feeds separate pages.
func (e *Extractor) Extract(_ context.Context, path string) (domain.Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open source document: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxTextBytes))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("read source document: %w", err)
	}
	if !utf8.Valid(raw) {
		return domain.Extraction{}, fmt.Errorf("not a utf-8 text file: %s", path)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return domain.Extraction{}, nil
	}
	return domain.Extraction{Text: text, PageCount: strings.Count(text, "\f") + 1}, nil
}
