// Package retrieval turns a request into the document set the graph works
// on. It owns the permission filtering of file keys, the hybrid
// lexical+vector search, and the relevance elbow filter applied to search
// results.
package retrieval

import (
	"context"
	"slices"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/log"
)

// Retriever is the interface the graph consumes. Implementations must be
// safe for concurrent use across requests.
type Retriever interface {
	// Search runs a top-k hybrid query for the request's question over its
	// effective file keys, returning documents in descending score order
	// after elbow trimming.
	Search(ctx context.Context, q chain.Query) ([]*chain.Document, error)

	// AllChunks returns every chunk of the request's effective files in
	// file order, for summarisation routes.
	AllChunks(ctx context.Context, q chain.Query) ([]*chain.Document, error)
}

// EffectiveKeys resolves the file names a query may actually touch:
// selected ∩ permitted. An empty selection means "everything I may see".
// Selected keys outside the permitted set are not an error: they are logged
// and dropped, never surfaced to the user.
func EffectiveKeys(selected, permitted []string, logger log.Logger) []string {
	if len(selected) == 0 {
		return slices.Clone(permitted)
	}

	keys := make([]string, 0, len(selected))
	for _, key := range selected {
		if slices.Contains(permitted, key) {
			keys = append(keys, key)
		} else if logger != nil {
			logger.Warn("selected file not permitted, dropping from filter", "file", key)
		}
	}
	return keys
}
