package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/llm/prompt"
)

const provider = "ollama"

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Classifier asks a local Ollama model for a fax category.
type Classifier struct {
	client  *Client
	prompts *prompt.Builder
}

func NewClassifier(client *Client, taxonomy *domain.Taxonomy) *Classifier {
	return &Classifier{client: client, prompts: prompt.NewBuilder(taxonomy)}
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	respText, err := c.client.generateJSON(ctx, prompt.System, c.prompts.Classification(text))
	if err != nil {
		return domain.Classification{}, err
	}
	return prompt.Parse(respText)
}

func (c *Client) generateJSON(ctx context.Context, system, userPrompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"system": system,
		"prompt": userPrompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
