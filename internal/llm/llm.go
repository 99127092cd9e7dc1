// Package llm wraps chat model access behind a small interface so graph
// nodes never talk to a provider SDK directly. The production implementation
// sits on Genkit; tests use the scripted Canned model.
package llm

import (
	"context"

	"github.com/koopa0/briefing/internal/prompt"
)

// TokenCallback receives streamed response text as it arrives. Returning an
// error aborts the generation.
type TokenCallback func(ctx context.Context, delta string) error

// Response is one completed model call.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
	ModelName    string
}

// ChatModel is the interface graph nodes consume.
type ChatModel interface {
	// Invoke runs the prompt to completion and returns the full response.
	Invoke(ctx context.Context, p prompt.Prompt) (Response, error)

	// Stream runs the prompt, delivering text deltas through cb as they
	// arrive, and returns the completed response. A nil cb degrades to
	// Invoke.
	Stream(ctx context.Context, p prompt.Prompt, cb TokenCallback) (Response, error)
}
