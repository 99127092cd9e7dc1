package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/log"
	"github.com/koopa0/briefing/internal/prompt"
)

// Client calls a chat model through Genkit. Safe for concurrent use; a
// shared rate limiter smooths bursts across requests.
type Client struct {
	g         *genkit.Genkit
	backend   chain.Backend
	maxTokens int
	limiter   *rate.Limiter
	logger    log.Logger
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Genkit  *genkit.Genkit
	Backend chain.Backend
	// MaxOutputTokens caps model output per call. Zero means provider
	// default.
	MaxOutputTokens int
	// RateLimiter is optional; when nil a default of 10 req/s with a burst
	// of 30 is used.
	RateLimiter *rate.Limiter
	Logger      log.Logger
}

func (c ClientConfig) validate() error {
	if c.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if c.Backend.Name == "" {
		return errors.New("backend model name is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// NewClient creates a Genkit-backed ChatModel.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	return &Client{
		g:         cfg.Genkit,
		backend:   cfg.Backend,
		maxTokens: cfg.MaxOutputTokens,
		limiter:   rl,
		logger:    cfg.Logger,
	}, nil
}

// Invoke implements ChatModel.
func (c *Client) Invoke(ctx context.Context, p prompt.Prompt) (Response, error) {
	return c.generate(ctx, p, nil)
}

// Stream implements ChatModel.
func (c *Client) Stream(ctx context.Context, p prompt.Prompt, cb TokenCallback) (Response, error) {
	return c.generate(ctx, p, cb)
}

func (c *Client) generate(ctx context.Context, p prompt.Prompt, cb TokenCallback) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit wait: %w", err)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(c.backend.Provider + "/" + c.backend.Name),
		ai.WithMessages(toGenkitMessages(p)...),
	}
	if c.maxTokens > 0 {
		opts = append(opts, ai.WithConfig(&ai.GenerationCommonConfig{
			MaxOutputTokens: c.maxTokens,
		}))
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return cb(ctx, chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return Response{}, fmt.Errorf("model call failed: %w", err)
	}

	out := Response{
		Text:      resp.Text(),
		ModelName: c.backend.Name,
	}
	if resp.Usage != nil {
		out.InputTokens = resp.Usage.InputTokens
		out.OutputTokens = resp.Usage.OutputTokens
	}

	c.logger.Debug("model call complete",
		"model", c.backend.Name,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens)
	return out, nil
}

func toGenkitMessages(p prompt.Prompt) []*ai.Message {
	messages := make([]*ai.Message, 0, len(p.Messages))
	for _, m := range p.Messages {
		switch m.Role {
		case chain.RoleSystem:
			messages = append(messages, ai.NewSystemTextMessage(m.Text))
		case chain.RoleAI:
			messages = append(messages, ai.NewModelTextMessage(m.Text))
		default:
			messages = append(messages, ai.NewUserTextMessage(m.Text))
		}
	}
	return messages
}
