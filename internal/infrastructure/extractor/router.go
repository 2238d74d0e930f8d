// Package extractor routes fax files to the text extractor for their format.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

// Backend extracts text from one family of file formats.
type Backend interface {
	Extract(ctx context.Context, path string) (domain.Extraction, error)
}

type Router struct {
	byExt map[string]Backend
}

func NewRouter() *Router {
	return &Router{byExt: make(map[string]Backend)}
}

// Register binds backend to the given extensions (with or without the dot).
func (r *Router) Register(backend Backend, exts ...string) *Router {
	for _, ext := range exts {
		r.byExt[normalizeExt(ext)] = backend
	}
	return r
}

func (r *Router) Supports(filename string) bool {
	_, ok := r.byExt[normalizeExt(filepath.Ext(filename))]
	return ok
}

func (r *Router) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (r *Router) Extract(ctx context.Context, path string) (domain.Extraction, error) {
	backend, ok := r.byExt[normalizeExt(filepath.Ext(path))]
	if !ok {
		return domain.Extraction{}, domain.WrapError(domain.ErrUnsupportedFile, "extract text", fmt.Errorf("%s", filepath.Base(path)))
	}
	return backend.Extract(ctx, path)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
