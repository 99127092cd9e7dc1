package graph

import (
	"errors"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/llm"
	"github.com/koopa0/briefing/internal/log"
	"github.com/koopa0/briefing/internal/prompt"
	"github.com/koopa0/briefing/internal/retrieval"
)

// Node names of the conversation graph.
const (
	NodeStart = "start"

	NodeAnswerChat = "answer_chat"

	NodeRetrieveSearch = "retrieve_search"
	NodeAnswerSearch   = "answer_search"

	NodeRetrieveAll       = "retrieve_all"
	NodeSetMetadata       = "set_metadata"
	NodeDocumentsTooLarge = "documents_too_large"
	NodeAnswerDocs        = "answer_docs"

	NodeFanChunks       = "fan_chunks"
	NodeMapDocument     = "map_document"
	NodeCheckGroups     = "check_groups"
	NodeFanGroups       = "fan_groups"
	NodeMergeGroup      = "merge_group"
	NodeAnswerMapReduce = "answer_map_reduce"
)

// Config assembles a conversation graph from its collaborators.
type Config struct {
	Retriever retrieval.Retriever
	Models    *llm.Registry
	// Tokeniser is optional; nil falls back to the default estimator.
	Tokeniser prompt.Tokeniser
	Logger    log.Logger
}

func (c Config) validate() error {
	if c.Retriever == nil {
		return errors.New("retriever is required")
	}
	if c.Models == nil {
		return errors.New("model registry is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// NewConversation builds the fixed conversation graph:
//
//	start ── @search ──► retrieve_search ─► answer_search
//	  │
//	  └─ default ─ no files ──► answer_chat
//	              some files ─► retrieve_all ─► set_metadata
//	                              ├─ over ceiling ──► documents_too_large
//	                              ├─ fits budget ───► answer_docs
//	                              └─ too big ─► fan_chunks ═► map_document
//	                                               ▼ (join)
//	                                           check_groups ◄──────┐
//	                                            ├─ >1 doc in group ┴═► merge_group
//	                                            └─ resolved ─► answer_map_reduce
//
// Double arrows are fan-out points; their children run in parallel and join
// through the document reducer before the walk continues.
func NewConversation(cfg Config) (*Graph, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	tok := cfg.Tokeniser
	if tok == nil {
		tok = prompt.Estimator{}
	}
	builder := prompt.NewBuilder(tok)

	g := New(cfg.Logger)

	g.AddJunction(NodeStart)
	g.SetEntry(NodeStart)
	g.AddConditionalEdge(NodeStart, func(s *chain.State) string {
		switch KeywordDecision(s.Request.Question) {
		case DecisionSearch:
			return NodeRetrieveSearch
		default:
			if DocumentCountDecision(s.Request) == DecisionChat {
				return NodeAnswerChat
			}
			return NodeRetrieveAll
		}
	})

	// Plain chat.
	g.AddNode(NodeAnswerChat, answerNode(cfg.Models, builder, answerConfig{
		promptSet: chain.PromptSetChat,
		route:     chain.RouteChat,
		stream:    true,
	}))
	g.AddEdge(NodeAnswerChat, End)

	// Search.
	g.AddNode(NodeRetrieveSearch, retrieveNode(cfg.Retriever, false))
	g.AddEdge(NodeRetrieveSearch, NodeAnswerSearch)
	g.AddNode(NodeAnswerSearch, answerNode(cfg.Models, builder, answerConfig{
		promptSet: chain.PromptSetSearch,
		route:     chain.RouteSearch,
		withDocs:  true,
		stream:    true,
		cite:      true,
	}))
	g.AddEdge(NodeAnswerSearch, End)

	// Chat with documents.
	g.AddNode(NodeRetrieveAll, retrieveNode(cfg.Retriever, true))
	g.AddEdge(NodeRetrieveAll, NodeSetMetadata)
	g.AddNode(NodeSetMetadata, setMetadataNode())
	g.AddConditionalEdge(NodeSetMetadata, func(s *chain.State) string {
		switch TokenBudgetDecision(s, tok) {
		case DecisionTooLarge:
			return NodeDocumentsTooLarge
		case DecisionMapReduce:
			return NodeFanChunks
		default:
			return NodeAnswerDocs
		}
	})

	g.AddNode(NodeDocumentsTooLarge, cannedNode(tooLargeResponse, chain.RouteErrorDocsTooLarge))
	g.AddEdge(NodeDocumentsTooLarge, End)

	g.AddNode(NodeAnswerDocs, answerNode(cfg.Models, builder, answerConfig{
		promptSet: chain.PromptSetChatWithDocs,
		route:     chain.RouteChatWithDocs,
		withDocs:  true,
		stream:    true,
		cite:      true,
	}))
	g.AddEdge(NodeAnswerDocs, End)

	// Iterative map-reduce: summarise every chunk, then merge groups until
	// no group holds more than one document.
	g.AddJunction(NodeFanChunks)
	g.AddFanOutEdge(NodeFanChunks, ChunkSends(NodeMapDocument), NodeCheckGroups)
	g.AddNode(NodeMapDocument, mapDocumentNode(cfg.Models, builder, tok))

	g.AddJunction(NodeCheckGroups)
	g.AddConditionalEdge(NodeCheckGroups, func(s *chain.State) string {
		if GroupResolutionDecision(s.Documents) == DecisionMorePasses {
			return NodeFanGroups
		}
		return NodeAnswerMapReduce
	})

	g.AddJunction(NodeFanGroups)
	g.AddFanOutEdge(NodeFanGroups, GroupSends(NodeMergeGroup), NodeCheckGroups)
	g.AddNode(NodeMergeGroup, mergeGroupNode(cfg.Models, builder, tok))

	g.AddNode(NodeAnswerMapReduce, answerNode(cfg.Models, builder, answerConfig{
		promptSet: chain.PromptSetChatWithDocs,
		route:     chain.RouteChatWithDocsMapReduce,
		withDocs:  true,
		stream:    true,
		cite:      true,
	}))
	g.AddEdge(NodeAnswerMapReduce, End)

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}
