// Package index reads and writes the chunk index: one row per document
// chunk, with content, a precomputed token count, and a vector embedding.
// Chunking itself happens in the ingestion pipeline; this package only
// serves queries over what the ingester wrote.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/koopa0/briefing/internal/log"
)

// queryTimeout bounds a single index query so a slow search cannot block a
// whole chat request.
const queryTimeout = 10 * time.Second

// Chunk is one indexed row.
type Chunk struct {
	ID          uuid.UUID
	FileName    string
	Content     string
	TokenCount  int
	PageNumbers []int32
	Index       int // chunk order within the file
	Score       float64
}

// HybridParams parameterises one hybrid search.
type HybridParams struct {
	Question  string
	FileNames []string

	K             int
	NumCandidates int
	MatchBoost    float64
	KNNBoost      float64
	// SimilarityFloor drops the vector clause's contribution for matches
	// below this cosine similarity.
	SimilarityFloor float64
}

// Store queries the chunk index over PostgreSQL + pgvector.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store. The embedder produces query embeddings for the
// vector clause of hybrid search.
func New(pool *pgxpool.Pool, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("connection pool is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

const hybridSearchSQL = `
SELECT id, file_name, content, token_count, page_numbers, chunk_index,
       ts_rank_cd(tsv, plainto_tsquery('english', $1)) * $2
       + CASE WHEN 1 - (embedding <=> $3) >= $4
              THEN (1 - (embedding <=> $3)) * $5
              ELSE 0 END AS score
FROM chunks
WHERE file_name = ANY($6)
ORDER BY score DESC
LIMIT $7`

// HybridSearch runs the boosted lexical OR vector query over the given
// files and returns chunks in descending score order.
func (s *Store) HybridSearch(ctx context.Context, params HybridParams) ([]Chunk, error) {
	if len(params.FileNames) == 0 {
		return nil, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	embedding, err := s.embedQuery(queryCtx, params.Question)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(queryCtx, hybridSearchSQL,
		params.Question,
		params.MatchBoost,
		embedding,
		params.SimilarityFloor,
		params.KNNBoost,
		params.FileNames,
		params.K,
	)
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.FileName, &c.Content, &c.TokenCount, &c.PageNumbers, &c.Index, &c.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hybrid search rows: %w", err)
	}

	s.logger.Debug("hybrid search complete",
		"files", len(params.FileNames),
		"hits", len(chunks),
		"k", params.K)
	return chunks, nil
}

const allChunksSQL = `
SELECT id, file_name, content, token_count, page_numbers, chunk_index
FROM chunks
WHERE file_name = ANY($1)
ORDER BY file_name, chunk_index`

// AllChunks returns every chunk of the given files in file order, without
// scoring. Used by the summarisation routes, which need whole documents
// rather than best matches.
func (s *Store) AllChunks(ctx context.Context, fileNames []string) ([]Chunk, error) {
	if len(fileNames) == 0 {
		return nil, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(queryCtx, allChunksSQL, fileNames)
	if err != nil {
		return nil, fmt.Errorf("all-chunks query failed: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.FileName, &c.Content, &c.TokenCount, &c.PageNumbers, &c.Index); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("all-chunks rows: %w", err)
	}
	return chunks, nil
}

const upsertChunkSQL = `
INSERT INTO chunks (id, file_name, content, token_count, page_numbers, chunk_index, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    file_name = EXCLUDED.file_name,
    content = EXCLUDED.content,
    token_count = EXCLUDED.token_count,
    page_numbers = EXCLUDED.page_numbers,
    chunk_index = EXCLUDED.chunk_index,
    embedding = EXCLUDED.embedding`

// Upsert inserts or replaces one chunk, embedding its content.
func (s *Store) Upsert(ctx context.Context, c Chunk) error {
	embedding, err := s.embedQuery(ctx, c.Content)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, upsertChunkSQL,
		c.ID, c.FileName, c.Content, c.TokenCount, c.PageNumbers, c.Index, embedding,
	); err != nil {
		return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
	}
	return nil
}

// DeleteFile removes every chunk of a file.
func (s *Store) DeleteFile(ctx context.Context, fileName string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE file_name = $1`, fileName); err != nil {
		return fmt.Errorf("delete chunks for %q: %w", fileName, err)
	}
	s.logger.Debug("deleted file chunks", "file", fileName)
	return nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// Ping reports whether the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) embedQuery(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pgvector.Vector{}, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return pgvector.Vector{}, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
