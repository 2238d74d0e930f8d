// Package anthropic classifies faxes with Claude models through the
// official SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/resilience"
)

const (
	provider         = "anthropic"
	defaultMaxTokens = 1024
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Classifier struct {
	client  sdk.Client
	model   string
	prompts *prompt.Builder
}

func NewClassifier(cfg Config, taxonomy *domain.Taxonomy) (*Classifier, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are owned by resilience.Executor
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Classifier{
		client:  sdk.NewClient(opts...),
		model:   cfg.Model,
		prompts: prompt.NewBuilder(taxonomy),
	}, nil
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   defaultMaxTokens,
		System:      []sdk.TextBlockParam{{Text: prompt.System}},
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(c.prompts.Classification(text)))},
		Temperature: sdk.Float(0),
	})
	if err != nil {
		return domain.Classification{}, classifyError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return prompt.Parse(sb.String())
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return &resilience.HTTPStatusError{
			Provider:   provider,
			Operation:  "messages",
			StatusCode: apiErr.StatusCode,
			Status:     http.StatusText(apiErr.StatusCode),
			Body:       apiErr.RawJSON(),
		}
	}
	return fmt.Errorf("anthropic create message: %w", err)
}
