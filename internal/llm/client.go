package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/askpath/askpath/internal/log"
)

// Config carries generation parameters for a Client.
type Config struct {
	// ModelName is the bare model identifier, e.g. "gemini-2.5-flash".
	// The googleai/ provider prefix is added when missing.
	ModelName   string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Retry       RetryConfig
}

// Client generates answers through genkit with a hard per-call deadline
// and bounded retries.
type Client struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	retry       RetryConfig
	logger      log.Logger
}

// NewClient validates cfg and returns a ready Client.
func NewClient(g *genkit.Genkit, cfg Config, logger log.Logger) (*Client, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	name := cfg.ModelName
	if !strings.Contains(name, "/") {
		name = "googleai/" + name
	}

	return &Client{
		g:           g,
		modelName:   name,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
		timeout:     cfg.Timeout,
		retry:       cfg.Retry,
		logger:      logger,
	}, nil
}

// Generate produces an answer for prompt. It returns ErrUpstreamTimeout
// when the deadline expires, ErrEmptyResponse when the model replies with
// no text, and ErrUpstream for other terminal failures.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", ErrUpstream)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var text string
	err := withRetry(ctx, c.retry, func() error {
		resp, genErr := genkit.Generate(ctx, c.g,
			ai.WithModelName(c.modelName),
			ai.WithSystem(SystemPrompt),
			ai.WithPrompt(prompt),
			ai.WithConfig(&genai.GenerateContentConfig{
				Temperature:     genai.Ptr(c.temperature),
				MaxOutputTokens: c.maxTokens,
			}),
		)
		if genErr != nil {
			return genErr
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("generation timed out",
				"model", c.modelName,
				"elapsed", time.Since(start))
			return "", fmt.Errorf("%w after %s", ErrUpstreamTimeout, c.timeout)
		}
		c.logger.Error("generation failed",
			"model", c.modelName,
			"error", err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("generation completed",
		"model", c.modelName,
		"elapsed", time.Since(start),
		"chars", len(text))
	return text, nil
}

// ModelName reports the fully qualified model identifier in use.
func (c *Client) ModelName() string { return c.modelName }
