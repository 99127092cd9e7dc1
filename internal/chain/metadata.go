package chain

import (
	"time"

	"github.com/google/uuid"
)

// LLMCall records the token usage of a single model invocation.
// Values are immutable once recorded.
type LLMCall struct {
	ID           uuid.UUID
	ModelName    string
	InputTokens  int
	OutputTokens int
	Timestamp    time.Time
}

// NewLLMCall records usage for one invocation of the named model.
func NewLLMCall(modelName string, inputTokens, outputTokens int) LLMCall {
	return LLMCall{
		ID:           uuid.New(),
		ModelName:    modelName,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Timestamp:    time.Now().UTC(),
	}
}

// RequestMetadata accumulates token accounting across a whole graph run.
// Calls merge additively and are never overwritten, so accounting only grows.
type RequestMetadata struct {
	LLMCalls                 []LLMCall
	SelectedFilesTotalTokens int
	NumberOfSelectedFiles    int
}

// InputTokensByModel aggregates input tokens per model name.
func (m *RequestMetadata) InputTokensByModel() map[string]int {
	byModel := make(map[string]int)
	for _, call := range m.LLMCalls {
		byModel[call.ModelName] += call.InputTokens
	}
	return byModel
}

// OutputTokensByModel aggregates output tokens per model name.
func (m *RequestMetadata) OutputTokensByModel() map[string]int {
	byModel := make(map[string]int)
	for _, call := range m.LLMCalls {
		byModel[call.ModelName] += call.OutputTokens
	}
	return byModel
}

// ReduceMetadata merges two metadata values into a new one. Calls are
// deduplicated by ID so a branch result applied twice cannot inflate the
// totals. Scalar fields take the update's value when set, otherwise keep the
// current one.
func ReduceMetadata(current, update *RequestMetadata) *RequestMetadata {
	if current == nil && update == nil {
		return nil
	}
	if current == nil {
		return cloneMetadata(update)
	}
	if update == nil {
		return cloneMetadata(current)
	}

	merged := cloneMetadata(current)
	seen := make(map[uuid.UUID]struct{}, len(merged.LLMCalls))
	for _, call := range merged.LLMCalls {
		seen[call.ID] = struct{}{}
	}
	for _, call := range update.LLMCalls {
		if _, ok := seen[call.ID]; ok {
			continue
		}
		merged.LLMCalls = append(merged.LLMCalls, call)
		seen[call.ID] = struct{}{}
	}

	if update.SelectedFilesTotalTokens != 0 {
		merged.SelectedFilesTotalTokens = update.SelectedFilesTotalTokens
	}
	if update.NumberOfSelectedFiles != 0 {
		merged.NumberOfSelectedFiles = update.NumberOfSelectedFiles
	}
	return merged
}

func cloneMetadata(m *RequestMetadata) *RequestMetadata {
	if m == nil {
		return nil
	}
	cloned := *m
	cloned.LLMCalls = append([]LLMCall(nil), m.LLMCalls...)
	return &cloned
}
