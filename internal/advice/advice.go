// Package advice asks a chat-completions endpoint for attack-vector suggestions
// based on a finished scan record.
package advice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/buemura/rook/pkg/types"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1"
	DefaultModel    = openai.GPT4

	systemPrompt = "You are a helpful assistant."
	userPrompt   = "Based upon these results from basic penetration testing scans against a target, suggest possible attack points/vectors:\n"
)

var (
	// ErrNoAPIKey is returned when no key is configured.
	ErrNoAPIKey = errors.New("no API key configured")
	// ErrNoChoices is returned when the API answers without a completion.
	ErrNoChoices = errors.New("response contained no choices")
)

// Config holds the endpoint settings. Endpoint is the API base URL; a full
// chat-completions URL is accepted too.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Client implements pipeline.Advisor against an OpenAI-compatible API.
type Client struct {
	cfg Config
	api *openai.Client
}

func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.Endpoint = strings.TrimSuffix(strings.TrimSuffix(cfg.Endpoint, "/"), "/chat/completions")
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.Endpoint
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{cfg: cfg, api: openai.NewClientWithConfig(apiCfg)}
}

// Advise sends the record's stage outputs and returns the model's reply.
func (c *Client) Advise(ctx context.Context, rec *types.ScanRecord) (string, error) {
	if c.cfg.APIKey == "" {
		return "", &types.AdviceError{Target: rec.Target, Err: ErrNoAPIKey}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt + Summarize(rec)},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			err = fmt.Errorf("API error (HTTP %d): %w", apiErr.HTTPStatusCode, apiErr)
		}
		return "", &types.AdviceError{Target: rec.Target, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &types.AdviceError{Target: rec.Target, Err: ErrNoChoices}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Summarize renders every stage of rec as labelled text blocks.
func Summarize(rec *types.ScanRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\n", rec.Target)
	for _, stage := range types.AllStages {
		fmt.Fprintf(&b, "\n%s:\n%s\n", stage.Label(), rec.Get(stage).Display())
	}
	for _, cmd := range rec.ExtraCommands {
		fmt.Fprintf(&b, "\n%s:\n%s\n", cmd.Command, cmd.Result.Display())
	}
	return b.String()
}
