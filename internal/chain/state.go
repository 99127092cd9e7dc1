package chain

import (
	"slices"

	"github.com/google/uuid"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	Role Role
	Text string
}

// Route labels the execution path a request resolved to. The set is closed:
// every conditional edge maps onto one of these constants and nothing else.
type Route string

const (
	// RouteNone means no terminal route has been decided yet.
	RouteNone Route = ""

	RouteChat                  Route = "chat"
	RouteChatWithDocs          Route = "chat_with_docs"
	RouteChatWithDocsMapReduce Route = "chat_with_docs_map_reduce"
	RouteSearch                Route = "search"

	// RouteErrorDocsTooLarge is the terminal route taken when the selected
	// documents exceed the hard token ceiling. It is a route, not an error:
	// the run completes with a canned response.
	RouteErrorDocsTooLarge Route = "error_documents_too_large"
)

// Query is the immutable request a graph run executes for.
type Query struct {
	Question      string
	SelectedKeys  []string // file names the user selected
	PermittedKeys []string // file names the user may see
	UserID        uuid.UUID
	History       []ChatMessage // oldest first, excluding the question
	Settings      Settings
}

// State is the unit of execution: one value per request, passed by value
// between nodes. Nodes treat it as read-only and describe changes with an
// Update.
type State struct {
	Request   Query
	Documents DocumentState
	Text      string
	Route     Route
	Metadata  *RequestMetadata
	ToolCalls ToolState
	Citations []SourceDocument
}

// Update is a partial state change produced by one node. Nil/zero fields
// mean "no change"; Documents and ToolCalls may carry tombstones.
type Update struct {
	Documents DocumentState
	Text      *string
	Route     Route
	Metadata  *RequestMetadata
	ToolCalls ToolState
	// ClearToolCalls drops every pending tool call before ToolCalls is
	// merged.
	ClearToolCalls bool
	Citations      []SourceDocument
}

// SetText is a convenience for updates that only replace the answer text.
func SetText(text string) *Update {
	return &Update{Text: &text}
}

// Apply folds an update into the state and returns the result. The receiver
// is not modified. Route is monotonic: once set, later updates cannot change
// it. Metadata merges additively; documents merge through ReduceDocuments.
func (s State) Apply(u *Update) State {
	if u == nil {
		return s
	}

	next := s

	if u.Documents != nil {
		next.Documents = ReduceDocuments(s.Documents, u.Documents)
	}
	if u.Text != nil {
		next.Text = *u.Text
	}
	if next.Route == RouteNone && u.Route != RouteNone {
		next.Route = u.Route
	}
	if u.Metadata != nil {
		next.Metadata = ReduceMetadata(s.Metadata, u.Metadata)
	}
	if u.ClearToolCalls {
		next.ToolCalls = ToolState{}
	}
	if u.ToolCalls != nil {
		next.ToolCalls = ReduceToolCalls(next.ToolCalls, u.ToolCalls)
	}
	if len(u.Citations) > 0 {
		next.Citations = append(slices.Clone(s.Citations), u.Citations...)
	}

	return next
}
