package graph

import (
	"context"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/llm"
)

// MetadataEvent is one metadata delta emitted during a run: the route once
// decided, citations once known, and the token usage of completed model
// calls. Fields are cumulative within the event, not across events.
type MetadataEvent struct {
	Route     chain.Route
	Citations []chain.SourceDocument
	LLMCalls  []chain.LLMCall
}

// MetadataCallback receives metadata deltas during a run.
type MetadataCallback func(ctx context.Context, ev MetadataEvent) error

// Sink carries the caller's streaming callbacks into node bodies. A zero
// Sink discards everything, so nodes call it unconditionally. The stream is
// one-way and ordered; a callback error aborts the emitting node.
type Sink struct {
	onToken    llm.TokenCallback
	onMetadata MetadataCallback
}

// Token emits one answer text delta.
func (s *Sink) Token(ctx context.Context, delta string) error {
	if s == nil || s.onToken == nil {
		return nil
	}
	return s.onToken(ctx, delta)
}

// Metadata emits one metadata delta.
func (s *Sink) Metadata(ctx context.Context, ev MetadataEvent) error {
	if s == nil || s.onMetadata == nil {
		return nil
	}
	return s.onMetadata(ctx, ev)
}

// RunOption configures one Run call.
type RunOption func(*Sink)

// WithTokenCallback streams answer text deltas to cb as the final node
// generates them.
func WithTokenCallback(cb llm.TokenCallback) RunOption {
	return func(s *Sink) { s.onToken = cb }
}

// WithMetadataCallback streams metadata deltas to cb during the run.
func WithMetadataCallback(cb MetadataCallback) RunOption {
	return func(s *Sink) { s.onMetadata = cb }
}
