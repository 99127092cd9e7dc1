// Package prompt assembles bounded LLM prompts from system/task instructions,
// truncated chat history, and formatted documents.
package prompt

import (
	"errors"
	"slices"
	"strings"

	"github.com/koopa0/briefing/internal/chain"
)

// ErrQuestionTooLong means the system and task prompts alone exceed the
// input token budget. There is nothing left to truncate, so the request
// fails rather than being silently cut.
var ErrQuestionTooLong = errors.New("question too long for context window")

// Prompt is an ordered message list ready for a model call.
type Prompt struct {
	Messages []chain.ChatMessage
}

// Text joins all message texts, newest last. Used for logging and canned
// models; real clients consume Messages directly.
func (p Prompt) Text() string {
	parts := make([]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Builder assembles prompts within a token budget.
type Builder struct {
	tokeniser Tokeniser
}

// NewBuilder returns a Builder using the given tokeniser, or the default
// estimator when nil.
func NewBuilder(tokeniser Tokeniser) Builder {
	if tokeniser == nil {
		tokeniser = Estimator{}
	}
	return Builder{tokeniser: tokeniser}
}

// Build assembles a prompt for the request:
//
//	[system] [truncated history, oldest→newest] [task question + documents]
//
// The input budget is the context window minus the tokens reserved for model
// output. The history budget is what remains after the system prompt and the
// rendered task prompt (question substituted, documents excluded — document
// size is the routing layer's concern). A negative history budget returns
// ErrQuestionTooLong.
//
// History is walked newest→oldest and a message is kept only while the
// running budget stays positive after subtracting it, so the result is the
// longest suffix of history that fits. Favouring recent turns over old ones
// is deliberate.
func (b Builder) Build(systemPrompt, questionPrompt string, q chain.Query, docs []*chain.Document) (Prompt, error) {
	task := strings.ReplaceAll(questionPrompt, "{question}", q.Question)
	taskForBudget := strings.ReplaceAll(task, "{formatted_documents}", "")

	inputBudget := q.Settings.ContextWindowSize - q.Settings.LLMMaxTokens
	budget := inputBudget - b.tokeniser.Encode(systemPrompt) - b.tokeniser.Encode(taskForBudget)
	if budget < 0 {
		return Prompt{}, ErrQuestionTooLong
	}

	var kept []chain.ChatMessage
	for i := len(q.History) - 1; i >= 0; i-- {
		cost := b.tokeniser.Encode(q.History[i].Text)
		if budget-cost <= 0 {
			break
		}
		budget -= cost
		kept = append(kept, q.History[i])
	}
	slices.Reverse(kept)

	task = strings.ReplaceAll(task, "{formatted_documents}", FormatDocuments(docs))

	messages := make([]chain.ChatMessage, 0, len(kept)+2)
	messages = append(messages, chain.ChatMessage{Role: chain.RoleSystem, Text: systemPrompt})
	messages = append(messages, kept...)
	messages = append(messages, chain.ChatMessage{Role: chain.RoleUser, Text: task})

	return Prompt{Messages: messages}, nil
}
