package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/koopa0/briefing/internal/prompt"
)

// Canned is a scripted ChatModel that pops the next response from a fixed
// list on every call. Streaming delivers the response word by word. Calls
// past the end of the script repeat the last response. Safe for concurrent
// use; concurrent callers pop distinct responses.
type Canned struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Calls records every prompt the model saw, in pop order.
	calls []prompt.Prompt
}

// NewCanned creates a Canned model with the given response script.
func NewCanned(responses ...string) *Canned {
	return &Canned{responses: responses}
}

// Invoke implements ChatModel.
func (c *Canned) Invoke(ctx context.Context, p prompt.Prompt) (Response, error) {
	return c.Stream(ctx, p, nil)
}

// Stream implements ChatModel.
func (c *Canned) Stream(ctx context.Context, p prompt.Prompt, cb TokenCallback) (Response, error) {
	text := c.pop(p)

	if cb != nil {
		words := strings.SplitAfter(text, " ")
		for _, w := range words {
			if err := ctx.Err(); err != nil {
				return Response{}, err
			}
			if err := cb(ctx, w); err != nil {
				return Response{}, err
			}
		}
	}

	tok := prompt.Estimator{}
	return Response{
		Text:         text,
		InputTokens:  tok.Encode(p.Text()),
		OutputTokens: tok.Encode(text),
		ModelName:    "canned",
	}, nil
}

// Prompts returns a copy of every prompt the model has seen so far.
func (c *Canned) Prompts() []prompt.Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]prompt.Prompt, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *Canned) pop(p prompt.Prompt) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, p)
	if len(c.responses) == 0 {
		return ""
	}
	text := c.responses[c.next]
	if c.next < len(c.responses)-1 {
		c.next++
	}
	return text
}
