// Package tesseract runs the tesseract OCR binary over TIFF faxes.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

const maxStderr = 512

type Config struct {
	Binary   string
	Language string
}

type Extractor struct {
	binary   string
	language string
}

func NewExtractor(cfg Config) *Extractor {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Extractor{binary: cfg.Binary, language: cfg.Language}
}

// Extract OCRs every page of the image. The page count comes from the TIFF
// directory chain rather than the OCR output.
func (e *Extractor) Extract(ctx context.Context, path string) (domain.Extraction, error) {
	pages, err := CountTIFFPages(path)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("read tiff: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, path, "stdout", "-l", e.language) //nolint:gosec // binary comes from config, path from the watch folder or upload store
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Extraction{}, fmt.Errorf("tesseract: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return domain.Extraction{}, fmt.Errorf("tesseract exited with %d: %s", exitErr.ExitCode(), truncate(stderr.String()))
		}
		return domain.Extraction{}, fmt.Errorf("run tesseract: %w", err)
	}

	return domain.Extraction{
		Text:      strings.TrimSpace(stdout.String()),
		PageCount: pages,
	}, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}
