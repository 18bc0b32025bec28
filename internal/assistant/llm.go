package assistant

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"spai/internal/metrics"
)

// Completion is one single-turn request to the LLM.
type Completion struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature *float64
}

type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}

type Reply struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Completer runs a completion with the caller's API key.
type Completer interface {
	Complete(ctx context.Context, apiKey string, c Completion) (Reply, error)
}

type OpenAIConfig struct {
	Model   string
	BaseURL string
}

// OpenAI builds a client per call because every request may carry a
// different key. Retries are disabled: a failed call is reported, not
// repeated.
type OpenAI struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

func NewOpenAI(cfg OpenAIConfig, httpClient *http.Client) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4o
	}
	return &OpenAI{cfg: cfg, httpClient: httpClient}
}

func (o *OpenAI) Complete(ctx context.Context, apiKey string, c Completion) (Reply, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(o.httpClient))
	}
	if o.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	var msgs []openai.ChatCompletionMessageParamUnion
	if c.System != "" {
		msgs = append(msgs, openai.SystemMessage(c.System))
	}
	msgs = append(msgs, openai.UserMessage(c.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    o.cfg.Model,
	}
	if c.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.MaxTokens)
	}
	if c.Temperature != nil {
		params.Temperature = openai.Float(*c.Temperature)
	}

	start := time.Now()
	resp, err := client.Chat.Completions.New(ctx, params)
	metrics.LLMLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("openai").Inc()
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("no choices in response")
	}

	return Reply{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
