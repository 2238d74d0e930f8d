package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

const maxTextBytes = 4 << 20

// Extractor reads the embedded text layer of a PDF. Image-only scans yield
// empty text, which the pipeline treats as insufficient.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, path string) (out domain.Extraction, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			out, err = domain.Extraction{}, fmt.Errorf("parse pdf %s: %v", path, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}
	f, reader, err := pdf.Open(path)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := reader.NumPage()
	plain, err := reader.GetPlainText()
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, maxTextBytes)); err != nil {
		return domain.Extraction{}, fmt.Errorf("copy pdf text: %w", err)
	}
	return domain.Extraction{
		Text:      strings.TrimSpace(buf.String()),
		PageCount: pages,
	}, nil
}
