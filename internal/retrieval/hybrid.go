package retrieval

import (
	"context"
	"fmt"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/index"
	"github.com/koopa0/briefing/internal/log"
)

// Hybrid answers searches from the chunk index: permission filtering, a
// boosted lexical+vector query, then the elbow filter over the scored
// results.
type Hybrid struct {
	store  *index.Store
	logger log.Logger
}

// NewHybrid creates a Hybrid retriever over the given index store.
func NewHybrid(store *index.Store, logger log.Logger) (*Hybrid, error) {
	if store == nil {
		return nil, fmt.Errorf("index store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Hybrid{store: store, logger: logger}, nil
}

// Search implements Retriever.
func (h *Hybrid) Search(ctx context.Context, q chain.Query) ([]*chain.Document, error) {
	keys := EffectiveKeys(q.SelectedKeys, q.PermittedKeys, h.logger)
	if len(keys) == 0 {
		return nil, nil
	}

	s := q.Settings
	chunks, err := h.store.HybridSearch(ctx, index.HybridParams{
		Question:        q.Question,
		FileNames:       keys,
		K:               s.RetrievalK,
		NumCandidates:   s.NumCandidates,
		MatchBoost:      s.MatchBoost,
		KNNBoost:        s.KNNBoost,
		SimilarityFloor: s.SimilarityThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	docs := documentsFromChunks(chunks)
	trimmed := FilterByElbow(docs, s.ElbowFilterEnabled, s.ElbowSensitivity, s.ScoreScalingFactor)
	if len(trimmed) < len(docs) {
		h.logger.Debug("elbow filter trimmed results",
			"before", len(docs), "after", len(trimmed))
	}
	return trimmed, nil
}

// AllChunks implements Retriever.
func (h *Hybrid) AllChunks(ctx context.Context, q chain.Query) ([]*chain.Document, error) {
	keys := EffectiveKeys(q.SelectedKeys, q.PermittedKeys, h.logger)
	if len(keys) == 0 {
		return nil, nil
	}

	chunks, err := h.store.AllChunks(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("all chunks: %w", err)
	}
	return documentsFromChunks(chunks), nil
}

func documentsFromChunks(chunks []index.Chunk) []*chain.Document {
	docs := make([]*chain.Document, 0, len(chunks))
	for _, c := range chunks {
		pages := make([]int, len(c.PageNumbers))
		for i, p := range c.PageNumbers {
			pages[i] = int(p)
		}
		docs = append(docs, &chain.Document{
			ID:      c.ID,
			Content: c.Content,
			Metadata: chain.DocumentMetadata{
				FileName:    c.FileName,
				TokenCount:  c.TokenCount,
				PageNumbers: pages,
				Score:       c.Score,
				Index:       c.Index,
			},
		})
	}
	return docs
}
