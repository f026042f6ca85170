package service

import (
	"context"
	"sync"

	"github.com/ojas-care/ojas/internal/domain"
)

// Function-backed fakes keep per-sub-query behavior easy to script in
// the concurrency tests.

type stubEmbedder struct {
	fn func(ctx context.Context, text string) ([]float32, error)
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.fn != nil {
		return s.fn(ctx, text)
	}
	return make([]float32, 4), nil
}

type stubStore struct {
	hybridFn func(ctx context.Context, embedding []float32, keyword string, matchCount int, similarityThreshold float64) ([]domain.Candidate, error)
	titleFn  func(ctx context.Context, embedding []float32, keyword string, matchCount, titleMatchCount int, similarityThreshold float64) ([]domain.Candidate, error)
}

func (s *stubStore) HybridSearch(ctx context.Context, embedding []float32, keyword string, matchCount int, similarityThreshold float64) ([]domain.Candidate, error) {
	if s.hybridFn != nil {
		return s.hybridFn(ctx, embedding, keyword, matchCount, similarityThreshold)
	}
	return nil, nil
}

func (s *stubStore) TitleFilteredSearch(ctx context.Context, embedding []float32, keyword string, matchCount, titleMatchCount int, similarityThreshold float64) ([]domain.Candidate, error) {
	if s.titleFn != nil {
		return s.titleFn(ctx, embedding, keyword, matchCount, titleMatchCount, similarityThreshold)
	}
	return nil, nil
}

type stubReranker struct {
	fn func(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankResult, error)
}

func (s *stubReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankResult, error) {
	if s.fn != nil {
		return s.fn(ctx, query, documents, topN)
	}
	return passthroughRerank(documents, topN), nil
}

// passthroughRerank keeps the submitted order, assigning descending
// scores, truncated to topN.
func passthroughRerank(documents []string, topN int) []domain.RerankResult {
	n := len(documents)
	if topN > 0 && topN < n {
		n = topN
	}
	out := make([]domain.RerankResult, n)
	for i := 0; i < n; i++ {
		out[i] = domain.RerankResult{Index: i, Score: 1.0 - float64(i)*0.01}
	}
	return out
}

type stubDecomposer struct {
	fn func(ctx context.Context, query string) ([]string, error)
}

func (s *stubDecomposer) Decompose(ctx context.Context, query string) ([]string, error) {
	if s.fn != nil {
		return s.fn(ctx, query)
	}
	return nil, nil
}

type stubGenerator struct {
	fn func(ctx context.Context, query string, contextSet domain.RankedContextSet) (string, error)
}

func (s *stubGenerator) GenerateAnswer(ctx context.Context, query string, contextSet domain.RankedContextSet) (string, error) {
	if s.fn != nil {
		return s.fn(ctx, query, contextSet)
	}
	return "an answer", nil
}

type stubLogger struct {
	mu      sync.Mutex
	entries []RetrievalLogEntry
	err     error
}

func (s *stubLogger) CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.entries = append(s.entries, entry)
	return "log-1", nil
}

func cand(id int64, sim float64, types ...domain.SearchType) domain.Candidate {
	c := domain.Candidate{
		Chunk:      domain.Chunk{ID: id, Content: contentFor(id), PageTitle: "Page"},
		Similarity: sim,
	}
	for _, t := range types {
		c.AddSearchType(t)
	}
	return c
}

func contentFor(id int64) string {
	return "chunk content " + string(rune('a'+id%26))
}
