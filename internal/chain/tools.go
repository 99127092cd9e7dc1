package chain

import "maps"

// ToolCall is a structured tool invocation requested by the model. It is a
// side channel for UI rendering; the graph does not route on it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolStateEntry tracks one tool call and whether it has been executed.
// A nil entry in an update is a tombstone for that call ID.
type ToolStateEntry struct {
	Call   ToolCall
	Called bool
}

// ToolState maps tool-call ID to its entry.
type ToolState map[string]*ToolStateEntry

// ReduceToolCalls merges a tool-state update into the current state and
// returns a new map. Nil entry values delete their key; everything else
// inserts or overwrites.
func ReduceToolCalls(current, update ToolState) ToolState {
	if update == nil {
		return maps.Clone(current)
	}

	reduced := maps.Clone(current)
	if reduced == nil {
		reduced = ToolState{}
	}
	for id, entry := range update {
		if entry == nil {
			delete(reduced, id)
		} else {
			reduced[id] = entry
		}
	}
	return reduced
}
