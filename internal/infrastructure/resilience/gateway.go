package resilience

import (
	"context"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
)

// Classifier runs a FaxClassifier through the executor.
type Classifier struct {
	next       ports.FaxClassifier
	exec       *Executor
	operation  string
	classifier ErrorClassifier
}

func NewClassifier(next ports.FaxClassifier, exec *Executor, operation string, classifier ErrorClassifier) *Classifier {
	if operation == "" {
		operation = "classify"
	}
	if classifier == nil {
		classifier = ClassifyGatewayError
	}
	return &Classifier{next: next, exec: exec, operation: operation, classifier: classifier}
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	cls, err := Call(ctx, c.exec, c.operation, func(ctx context.Context) (domain.Classification, error) {
		return c.next.Classify(ctx, text)
	}, c.classifier)
	if err != nil {
		return domain.Classification{}, WrapTemporary(c.operation, err, c.classifier)
	}
	return cls, nil
}

// Extractor runs a TextExtractor through the executor. Extraction failures
// are local (bad files, missing binaries) so they are never retried; the
// breaker still sheds load when an OCR backend keeps failing.
type Extractor struct {
	next      ports.TextExtractor
	exec      *Executor
	operation string
}

func NewExtractor(next ports.TextExtractor, exec *Executor, operation string) *Extractor {
	if operation == "" {
		operation = "extract"
	}
	return &Extractor{next: next, exec: exec, operation: operation}
}

func (e *Extractor) Supports(filename string) bool {
	return e.next.Supports(filename)
}

func (e *Extractor) Extract(ctx context.Context, path string) (domain.Extraction, error) {
	return Call(ctx, e.exec, e.operation, func(ctx context.Context) (domain.Extraction, error) {
		return e.next.Extract(ctx, path)
	}, extractionClassifier)
}

func extractionClassifier(err error) ErrorClassification {
	if domain.IsKind(err, domain.ErrUnsupportedFile) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}
