// Package llm wraps Genkit model calls with the cross-cutting behavior
// every agent in this project shares: client-side rate limiting, retry
// with exponential backoff for transient provider failures, conversation
// history replay, and a JSON response mode.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Turn roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is a single prior message replayed to the model as conversation
// context before the current prompt.
type Turn struct {
	Role string
	Text string
}

// Client executes prompts against a named model registered on a Genkit
// instance. The zero value is not usable; construct with New.
type Client struct {
	g           *genkit.Genkit
	modelName   string
	logger      *slog.Logger
	retry       RetryConfig
	limiter     *rate.Limiter
	defaultTemp *float32
	maxTokens   int
}

// Option customizes a Client.
type Option func(*Client)

// WithRetryConfig overrides the default retry behavior.
func WithRetryConfig(rc RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// WithRateLimiter overrides the default client-side rate limiter.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithDefaultTemperature sets the sampling temperature used when a call
// does not override it with WithTemperature.
func WithDefaultTemperature(t float32) Option {
	return func(c *Client) { c.defaultTemp = &t }
}

// WithMaxOutputTokens caps the response length on every call. Zero
// leaves the provider's own limit in place.
func WithMaxOutputTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// New creates a Client bound to the model registered under modelName.
func New(g *genkit.Genkit, modelName string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		g:         g,
		modelName: modelName,
		logger:    logger,
		retry:     DefaultRetryConfig(),
		// 10 requests per second with burst of 30, conservative
		// enough for the free tier of most providers.
		limiter: rate.NewLimiter(10, 30),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelName returns the fully qualified model name this client targets.
func (c *Client) ModelName() string { return c.modelName }

type callOptions struct {
	history     []Turn
	temperature *float32
	json        bool
}

// CallOption customizes a single Generate call.
type CallOption func(*callOptions)

// WithHistory replays prior turns before the prompt so the model sees
// the conversation context. Unknown roles are treated as user turns.
func WithHistory(turns []Turn) CallOption {
	return func(o *callOptions) { o.history = turns }
}

// WithTemperature overrides the model's default sampling temperature.
func WithTemperature(t float32) CallOption {
	return func(o *callOptions) { o.temperature = &t }
}

// WithJSONResponse asks the provider for an application/json response.
// Callers should still pass the text through jsonrepair because models
// behind providers that ignore the MIME type may wrap the payload in
// prose or code fences.
func WithJSONResponse() CallOption {
	return func(o *callOptions) { o.json = true }
}

// Generate runs the prompt through the model and returns the trimmed
// response text. Transient provider errors are retried with exponential
// backoff; other errors fail immediately.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	genOpts := make([]ai.GenerateOption, 0, 4)
	genOpts = append(genOpts, ai.WithModelName(c.modelName))

	if len(co.history) > 0 {
		messages := make([]*ai.Message, 0, len(co.history))
		for _, turn := range co.history {
			switch turn.Role {
			case RoleModel:
				messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Text)))
			default:
				messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Text)))
			}
		}
		genOpts = append(genOpts, ai.WithMessages(messages...))
	}

	temp := co.temperature
	if temp == nil {
		temp = c.defaultTemp
	}
	if temp != nil || co.json || c.maxTokens > 0 {
		cfg := &genai.GenerateContentConfig{}
		if temp != nil {
			cfg.Temperature = genai.Ptr[float32](*temp)
		}
		if c.maxTokens > 0 {
			cfg.MaxOutputTokens = int32(c.maxTokens)
		}
		if co.json {
			cfg.ResponseMIMEType = "application/json"
		}
		genOpts = append(genOpts, ai.WithConfig(cfg))
	}

	genOpts = append(genOpts, ai.WithPrompt(prompt))

	resp, err := c.generateWithRetry(ctx, genOpts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// generateWithRetry executes the model call, retrying transient failures
// with exponential backoff. The rate limiter gates every attempt so
// retries do not stampede a provider that is already throttling us.
func (c *Client) generateWithRetry(ctx context.Context, genOpts []ai.GenerateOption) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.retry.InitialInterval

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := genkit.Generate(ctx, c.g, genOpts...)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generating response: %w", err)
		}

		if attempt < c.retry.MaxRetries {
			c.logger.Warn("model call failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", c.retry.MaxRetries),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}

			delay *= 2
			if delay > c.retry.MaxInterval {
				delay = c.retry.MaxInterval
			}
		}
	}

	return nil, fmt.Errorf("generating response after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}

// EnhanceJSONPrompt appends explicit JSON formatting instructions to a
// prompt. Models that ignore the response MIME type follow prompt-level
// instructions more reliably, so both are applied for JSON calls. The
// generic reminder is skipped when the prompt already mentions JSON.
func EnhanceJSONPrompt(prompt string) string {
	enhanced := prompt
	if !strings.Contains(strings.ToLower(prompt), "json") {
		enhanced += "\n\nReturn your response as valid JSON."
	}
	enhanced += "\n\nImportant: Your response must be valid, properly formatted JSON. Do not include any text before or after the JSON structure."
	return enhanced
}
