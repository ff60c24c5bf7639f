// Package vision asks an OpenAI-compatible vision model to react to a
// camera frame in the voice of the current persona.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "log/slog"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"roastbot/internal/metrics"
	"roastbot/internal/mode"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel     = "anthropic/claude-3.5-sonnet"
	DefaultMaxTokens = 150
	DefaultTimeout   = 30 * time.Second
)

const (
	FallbackThinking = "I'm having trouble thinking right now."
	FallbackBroken   = "Something went wrong with my brain."
	FallbackBlind    = "I can't see anything right now."
)

var ErrEmptyReply = errors.New("empty reply from model")

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int64
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	api       openai.Client
	model     string
	maxTokens int64
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHeader("HTTP-Referer", "https://github.com/roastbot"),
		option.WithHeader("X-Title", "Roast Bot"),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(1),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api:       openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Describe sends the JPEG frame with the persona's prompt and returns the
// model's text reply.
func (c *Client) Describe(ctx context.Context, p mode.Persona, jpeg []byte) (string, error) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.VisionLatency, start)

	image := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.SystemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: image}),
				openai.TextContentPart(p.Instruction),
			}),
		},
		Model:     openai.ChatModel(c.model),
		MaxTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		metrics.VisionRequests.WithLabelValues(status(err)).Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		metrics.VisionRequests.WithLabelValues("empty").Inc()
		return "", ErrEmptyReply
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		metrics.VisionRequests.WithLabelValues("empty").Inc()
		return "", ErrEmptyReply
	}

	metrics.VisionRequests.WithLabelValues("ok").Inc()
	log.Debug("Model replied", "model", c.model, "chars", len(content))
	return content, nil
}

// Fallback is what the robot says instead when Describe fails.
func Fallback(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return FallbackThinking
	}
	return FallbackBroken
}

func status(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%d", apiErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
