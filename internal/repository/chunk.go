package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ojas-care/ojas/internal/domain"
)

// DefaultKeywordBoost is the rank multiplier applied to full-text
// matches in the hybrid query, so a chunk found by keyword outranks a
// vector-only chunk of equal similarity.
const DefaultKeywordBoost = 1.5

// ChunkRepository implements the two retrieval queries over the
// dementia_chunks table.
type ChunkRepository struct {
	pool         *pgxpool.Pool
	keywordBoost float64
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool, keywordBoost: DefaultKeywordBoost}
}

// NewChunkRepositoryWithBoost overrides the keyword rank boost.
func NewChunkRepositoryWithBoost(pool *pgxpool.Pool, keywordBoost float64) *ChunkRepository {
	if keywordBoost <= 0 {
		keywordBoost = DefaultKeywordBoost
	}
	return &ChunkRepository{pool: pool, keywordBoost: keywordBoost}
}

// HybridSearch unions a full-text match on the chunk content with a
// vector match above the similarity threshold. Keyword hits have their
// ordering score boosted; the stored Similarity stays the raw cosine
// similarity so downstream merging compares like with like.
func (r *ChunkRepository) HybridSearch(ctx context.Context, embedding []float32, keyword string, matchCount int, similarityThreshold float64) ([]domain.Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		WITH q AS (
			SELECT $1::vector AS qvec, websearch_to_tsquery('english', $2) AS tsq
		),
		scored AS (
			SELECT c.id, c.content, c.source_url, c.page_title, c.topic_heading,
			       1.0 - (c.embedding <=> (SELECT qvec FROM q)) AS similarity,
			       c.content_tsv @@ (SELECT tsq FROM q) AS keyword_match
			FROM dementia_chunks c
		)
		SELECT id, content, source_url, page_title, topic_heading, similarity, keyword_match
		FROM scored
		WHERE keyword_match OR similarity >= $3
		ORDER BY CASE WHEN keyword_match THEN similarity * $4 ELSE similarity END DESC, id
		LIMIT $5`,
		pgvector.NewVector(embedding),
		keyword,
		similarityThreshold,
		r.keywordBoost,
		matchCount,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		var keywordMatch bool
		if err := rows.Scan(&c.ID, &c.Content, &c.SourceURL, &c.PageTitle, &c.TopicHeading, &c.Similarity, &keywordMatch); err != nil {
			return nil, err
		}
		if keywordMatch {
			c.AddSearchType(domain.SearchTypeKeyword)
		}
		if c.Similarity >= similarityThreshold {
			c.AddSearchType(domain.SearchTypeVector)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TitleFilteredSearch picks the best-matching page titles by lexical
// title rank, then vector-ranks the chunks within those pages. It
// surfaces chunks whose page is clearly on-topic even when the chunk
// text itself matches weakly.
func (r *ChunkRepository) TitleFilteredSearch(ctx context.Context, embedding []float32, keyword string, matchCount, titleMatchCount int, similarityThreshold float64) ([]domain.Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		WITH q AS (
			SELECT $1::vector AS qvec, websearch_to_tsquery('english', $2) AS tsq
		),
		titles AS (
			SELECT page_title, MAX(ts_rank_cd(title_tsv, (SELECT tsq FROM q))) AS title_rank
			FROM dementia_chunks
			WHERE title_tsv @@ (SELECT tsq FROM q)
			GROUP BY page_title
			ORDER BY title_rank DESC
			LIMIT $3
		)
		SELECT c.id, c.content, c.source_url, c.page_title, c.topic_heading,
		       1.0 - (c.embedding <=> (SELECT qvec FROM q)) AS similarity
		FROM dementia_chunks c
		JOIN titles t ON t.page_title = c.page_title
		WHERE 1.0 - (c.embedding <=> (SELECT qvec FROM q)) >= $4
		ORDER BY similarity DESC, c.id
		LIMIT $5`,
		pgvector.NewVector(embedding),
		keyword,
		titleMatchCount,
		similarityThreshold,
		matchCount,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.ID, &c.Content, &c.SourceURL, &c.PageTitle, &c.TopicHeading, &c.Similarity); err != nil {
			return nil, err
		}
		c.AddSearchType(domain.SearchTypeTitleFiltered)
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertChunk stores one knowledge chunk. It exists for migrations,
// fixtures, and integration tests; ingestion proper happens offline.
func (r *ChunkRepository) InsertChunk(ctx context.Context, chunk *domain.Chunk) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO dementia_chunks (content, source_url, page_title, topic_heading, embedding, processing_info)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		chunk.Content,
		chunk.SourceURL,
		chunk.PageTitle,
		chunk.TopicHeading,
		pgvector.NewVector(chunk.Embedding),
		chunk.ProcessingInfo,
	).Scan(&chunk.ID)
}
