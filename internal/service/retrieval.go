package service

import (
	"context"
	"time"

	"github.com/ojas-care/ojas/internal/domain"
)

// EmbeddingClient defines the interface for generating query embeddings.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore exposes the two retrieval primitives over the knowledge
// base. Implementations are external (Postgres with vector and
// full-text indexes); the retrieval core treats them as black boxes.
type ChunkStore interface {
	// HybridSearch unions a keyword-dominant full-text match with a
	// vector-similarity match above the threshold, capped at matchCount.
	HybridSearch(ctx context.Context, embedding []float32, keyword string, matchCount int, similarityThreshold float64) ([]domain.Candidate, error)
	// TitleFilteredSearch picks the top titleMatchCount page titles by
	// lexical title match, then vector-ranks the chunks within those
	// titles above the threshold, capped at matchCount.
	TitleFilteredSearch(ctx context.Context, embedding []float32, keyword string, matchCount, titleMatchCount int, similarityThreshold float64) ([]domain.Candidate, error)
}

// RerankClient scores candidate texts against a query and returns a
// relevance-ordered subset. On error, callers must fall back to the
// prior similarity-based ordering rather than dropping candidates.
type RerankClient interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankResult, error)
}

// QueryDecomposer turns one user query into targeted sub-queries via an
// external model call. Empty or invalid output must degrade to
// single-query mode, never abort.
type QueryDecomposer interface {
	Decompose(ctx context.Context, query string) ([]string, error)
}

// RetrievalConfig carries the engine's tunables. The boost factors and
// thresholds have no derivation beyond empirical tuning, so everything
// is configuration rather than constants in code.
type RetrievalConfig struct {
	// MatchCount is the per-track store result cap for one sub-query.
	MatchCount int
	// TitleMatchCount is how many distinct page titles the
	// title-filtered track considers.
	TitleMatchCount int
	// SimilarityThreshold is the minimum acceptable cosine similarity.
	SimilarityThreshold float64
	// RerankTopN caps each sub-query worker's reranked output.
	RerankTopN int
	// ContextSize caps the final RankedContextSet.
	ContextSize int
	// FallbackContextSize caps the final set when the global rerank
	// fails and ordering falls back to similarity.
	FallbackContextSize int
	// MaxParallelWorkers bounds sub-query fan-out. The limit protects
	// external API quotas, not in-process state.
	MaxParallelWorkers int
	// WorkerTimeout bounds one sub-query worker; an expired worker
	// contributes an empty result instead of blocking the batch.
	WorkerTimeout time.Duration
	// OverallTimeout is the outer deadline for a whole retrieval.
	OverallTimeout time.Duration
}

// DefaultRetrievalConfig returns the tuned defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MatchCount:          30,
		TitleMatchCount:     10,
		SimilarityThreshold: 0.40,
		RerankTopN:          10,
		ContextSize:         10,
		FallbackContextSize: 12,
		MaxParallelWorkers:  4,
		WorkerTimeout:       15 * time.Second,
		OverallTimeout:      45 * time.Second,
	}
}

func (c RetrievalConfig) normalized() RetrievalConfig {
	def := DefaultRetrievalConfig()
	if c.MatchCount <= 0 {
		c.MatchCount = def.MatchCount
	}
	if c.TitleMatchCount <= 0 {
		c.TitleMatchCount = def.TitleMatchCount
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = def.SimilarityThreshold
	}
	if c.RerankTopN <= 0 {
		c.RerankTopN = def.RerankTopN
	}
	if c.ContextSize <= 0 {
		c.ContextSize = def.ContextSize
	}
	if c.FallbackContextSize <= 0 {
		c.FallbackContextSize = def.FallbackContextSize
	}
	if c.MaxParallelWorkers <= 0 {
		c.MaxParallelWorkers = def.MaxParallelWorkers
	}
	if c.WorkerTimeout <= 0 {
		c.WorkerTimeout = def.WorkerTimeout
	}
	return c
}

// RetrievalService runs the multi-path retrieval-and-rerank pipeline:
// dual-track search per sub-query, bounded parallel fan-out, and a
// two-stage rerank (per sub-query, then globally against the original
// query).
type RetrievalService struct {
	embedding EmbeddingClient
	store     ChunkStore
	reranker  RerankClient
	cfg       RetrievalConfig
}

// NewRetrievalService creates a RetrievalService with default tuning.
func NewRetrievalService(embedding EmbeddingClient, store ChunkStore, reranker RerankClient) *RetrievalService {
	return NewRetrievalServiceWithConfig(embedding, store, reranker, DefaultRetrievalConfig())
}

// NewRetrievalServiceWithConfig creates a RetrievalService with
// explicit tuning.
func NewRetrievalServiceWithConfig(embedding EmbeddingClient, store ChunkStore, reranker RerankClient, cfg RetrievalConfig) *RetrievalService {
	return &RetrievalService{
		embedding: embedding,
		store:     store,
		reranker:  reranker,
		cfg:       cfg.normalized(),
	}
}

// RetrievalResult is the outcome of one full retrieval: the final
// context set plus enough accounting for logging and degradation
// decisions at the generation boundary.
type RetrievalResult struct {
	Context    domain.RankedContextSet
	SubQueries []domain.SubQuery

	// PooledCount is the number of candidates across all workers before
	// the global dedup; UniqueCount is after.
	PooledCount int
	UniqueCount int

	// FailedSubQueries holds ordinals whose workers lost both tracks;
	// TimedOutSubQueries holds ordinals that exceeded WorkerTimeout.
	// Both are degraded-but-non-fatal conditions.
	FailedSubQueries   []int
	TimedOutSubQueries []int

	// GlobalRerankFallback is set when the final rerank failed and the
	// output ordering fell back to similarity.
	GlobalRerankFallback bool
}

// Degraded reports whether any sub-query contributed less than it
// should have.
func (r *RetrievalResult) Degraded() bool {
	return len(r.FailedSubQueries) > 0 || len(r.TimedOutSubQueries) > 0 || r.GlobalRerankFallback
}
