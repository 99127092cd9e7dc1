package graph

import (
	"context"
	"fmt"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/llm"
	"github.com/koopa0/briefing/internal/prompt"
	"github.com/koopa0/briefing/internal/retrieval"
)

// tooLargeResponse is the canned terminal answer when the selected
// documents exceed the hard token ceiling.
const tooLargeResponse = "These documents are too large to work with."

// answerConfig parameterises the chat and stuff node bodies, which differ
// only in which documents they see and whether they stream.
type answerConfig struct {
	promptSet chain.PromptSet
	route     chain.Route
	withDocs  bool
	stream    bool
	cite      bool
}

// answerNode is the chat and stuff pattern: build a prompt, call the model,
// write text and token usage back. Terminal variants stream text deltas and
// emit a metadata event; map-step variants run silently.
func answerNode(models *llm.Registry, builder prompt.Builder, cfg answerConfig) NodeFunc {
	return func(ctx context.Context, s *chain.State, sink *Sink) (*chain.Update, error) {
		var docs []*chain.Document
		if cfg.withDocs {
			docs = s.Documents.Flatten()
		}

		system, question := s.Request.Settings.PromptsFor(cfg.promptSet)
		p, err := builder.Build(system, question, s.Request, docs)
		if err != nil {
			return nil, err
		}

		model, err := models.Get(s.Request.Settings.ChatBackend)
		if err != nil {
			return nil, err
		}

		var resp llm.Response
		if cfg.stream {
			resp, err = model.Stream(ctx, p, sink.Token)
		} else {
			resp, err = model.Invoke(ctx, p)
		}
		if err != nil {
			return nil, err
		}

		call := chain.NewLLMCall(resp.ModelName, resp.InputTokens, resp.OutputTokens)
		update := &chain.Update{
			Text:     &resp.Text,
			Route:    cfg.route,
			Metadata: &chain.RequestMetadata{LLMCalls: []chain.LLMCall{call}},
		}
		if cfg.cite {
			update.Citations = chain.SourcesFromDocuments(docs)
		}

		if cfg.route != chain.RouteNone {
			if err := sink.Metadata(ctx, MetadataEvent{
				Route:     cfg.route,
				Citations: update.Citations,
				LLMCalls:  []chain.LLMCall{call},
			}); err != nil {
				return nil, err
			}
		}
		return update, nil
	}
}

// retrieveNode fetches documents into the state, either a top-k hybrid
// search or every chunk of the selected files.
func retrieveNode(r retrieval.Retriever, all bool) NodeFunc {
	return func(ctx context.Context, s *chain.State, _ *Sink) (*chain.Update, error) {
		var (
			docs []*chain.Document
			err  error
		)
		if all {
			docs, err = r.AllChunks(ctx, s.Request)
		} else {
			docs, err = r.Search(ctx, s.Request)
		}
		if err != nil {
			return nil, fmt.Errorf("retrieval: %w", err)
		}
		return &chain.Update{Documents: chain.GroupByFile(docs)}, nil
	}
}

// setMetadataNode records the size of the retrieved selection in the
// request metadata.
func setMetadataNode() NodeFunc {
	return func(_ context.Context, s *chain.State, _ *Sink) (*chain.Update, error) {
		return &chain.Update{
			Metadata: &chain.RequestMetadata{
				SelectedFilesTotalTokens: s.Documents.TotalTokens(),
				NumberOfSelectedFiles:    len(s.Documents),
			},
		}, nil
	}
}

// cannedNode terminates the run with a fixed answer and route. It follows
// the same streaming contract as a real answer node.
func cannedNode(text string, route chain.Route) NodeFunc {
	return func(ctx context.Context, _ *chain.State, sink *Sink) (*chain.Update, error) {
		if err := sink.Token(ctx, text); err != nil {
			return nil, err
		}
		if err := sink.Metadata(ctx, MetadataEvent{Route: route}); err != nil {
			return nil, err
		}
		return &chain.Update{Text: &text, Route: route}, nil
	}
}

// mapDocumentNode is the per-chunk map step. The child state carries
// exactly one document; its content is replaced by a model summary with a
// freshly computed token count.
func mapDocumentNode(models *llm.Registry, builder prompt.Builder, tok prompt.Tokeniser) NodeFunc {
	summarise := answerNode(models, builder, answerConfig{
		promptSet: chain.PromptSetChatMapReduce,
		withDocs:  true,
	})
	return func(ctx context.Context, s *chain.State, sink *Sink) (*chain.Update, error) {
		docs := s.Documents.Flatten()
		if len(docs) != 1 {
			return nil, fmt.Errorf("map step expects exactly one document, got %d", len(docs))
		}
		doc := docs[0]

		result, err := summarise(ctx, s, sink)
		if err != nil {
			return nil, err
		}
		summary := *result.Text

		groupID := chain.GroupID(doc.Metadata.FileName)
		return &chain.Update{
			Documents: chain.DocumentState{
				groupID: chain.DocumentGroup{
					doc.ID: {
						ID:      doc.ID,
						Content: summary,
						Metadata: chain.DocumentMetadata{
							FileName:    doc.Metadata.FileName,
							TokenCount:  tok.Encode(summary),
							PageNumbers: doc.Metadata.PageNumbers,
							Index:       doc.Metadata.Index,
						},
					},
				},
			},
			Metadata: result.Metadata,
		}, nil
	}
}

// mergeGroupNode is the per-group reduce step. The child state carries one
// whole group; its documents are concatenated into a synthetic document,
// summarised, and the group is collapsed to that one result. Every other
// document in the group is tombstoned.
func mergeGroupNode(models *llm.Registry, builder prompt.Builder, tok prompt.Tokeniser) NodeFunc {
	return func(ctx context.Context, s *chain.State, sink *Sink) (*chain.Update, error) {
		docs := s.Documents.Flatten()
		if len(docs) == 0 {
			return nil, fmt.Errorf("merge step got an empty group")
		}

		combined := docs[0]
		for _, doc := range docs[1:] {
			combined = chain.CombineDocuments(combined, doc)
		}

		system, question := s.Request.Settings.PromptsFor(chain.PromptSetChatMapReduce)
		p, err := builder.Build(system, question, s.Request, []*chain.Document{combined})
		if err != nil {
			return nil, err
		}
		model, err := models.Get(s.Request.Settings.ChatBackend)
		if err != nil {
			return nil, err
		}
		resp, err := model.Invoke(ctx, p)
		if err != nil {
			return nil, err
		}

		groupID := chain.GroupID(combined.Metadata.FileName)
		group := chain.DocumentGroup{
			combined.ID: {
				ID:      combined.ID,
				Content: resp.Text,
				Metadata: chain.DocumentMetadata{
					FileName:    combined.Metadata.FileName,
					TokenCount:  tok.Encode(resp.Text),
					PageNumbers: combined.Metadata.PageNumbers,
					Index:       combined.Metadata.Index,
				},
			},
		}
		for _, doc := range docs[1:] {
			group[doc.ID] = nil
		}

		call := chain.NewLLMCall(resp.ModelName, resp.InputTokens, resp.OutputTokens)
		return &chain.Update{
			Documents: chain.DocumentState{groupID: group},
			Metadata:  &chain.RequestMetadata{LLMCalls: []chain.LLMCall{call}},
		}, nil
	}
}
