// Package openai classifies faxes through any OpenAI-compatible chat
// completion endpoint (OpenAI, vLLM, LM Studio).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/resilience"
)

const provider = "openai"

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

type Classifier struct {
	client  *goopenai.Client
	model   string
	prompts *prompt.Builder
}

func NewClassifier(cfg Config, taxonomy *domain.Taxonomy) (*Classifier, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai model is required")
	}
	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return &Classifier{
		client:  goopenai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		prompts: prompt.NewBuilder(taxonomy),
	}, nil
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: goopenai.ChatMessageRoleUser, Content: c.prompts.Classification(text)},
		},
		Temperature: 0,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.Classification{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.Classification{}, fmt.Errorf("openai chat completion: no choices in response")
	}
	return prompt.Parse(resp.Choices[0].Message.Content)
}

// classifyError maps go-openai errors onto HTTPStatusError so the retry
// policy treats every provider the same way.
func classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &resilience.HTTPStatusError{
			Provider:   provider,
			Operation:  "chat_completion",
			StatusCode: apiErr.HTTPStatusCode,
			Status:     http.StatusText(apiErr.HTTPStatusCode),
			Body:       apiErr.Message,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &resilience.HTTPStatusError{
			Provider:   provider,
			Operation:  "chat_completion",
			StatusCode: reqErr.HTTPStatusCode,
			Status:     http.StatusText(reqErr.HTTPStatusCode),
			Body:       body,
		}
	}
	return fmt.Errorf("openai chat completion: %w", err)
}
