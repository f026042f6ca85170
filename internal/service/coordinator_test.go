package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojas-care/ojas/internal/domain"
)

func subQueries(texts ...string) []domain.SubQuery {
	return domain.NewSubQueries(texts)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	svc := newTestService(&stubStore{}, nil)

	result, err := svc.Retrieve(context.Background(), "  ", nil)

	assert.Nil(t, result)
	assert.Equal(t, domain.ErrEmptyQuery, err)
}

func TestRetrieve_NoSubQueriesFallsBackToOriginal(t *testing.T) {
	var mu sync.Mutex
	var keywords []string
	store := &stubStore{
		hybridFn: func(_ context.Context, _ []float32, keyword string, _ int, _ float64) ([]domain.Candidate, error) {
			mu.Lock()
			keywords = append(keywords, keyword)
			mu.Unlock()
			return []domain.Candidate{cand(1, 0.9, domain.SearchTypeVector)}, nil
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.Retrieve(context.Background(), "sundowning agitation", nil)

	require.NoError(t, err)
	require.Len(t, result.SubQueries, 1)
	assert.Equal(t, "sundowning agitation", result.SubQueries[0].Text)
	assert.Len(t, keywords, 1)
}

func TestRetrieve_PoolsDedupsAndRanks(t *testing.T) {
	store := &stubStore{
		hybridFn: func(_ context.Context, _ []float32, keyword string, _ int, _ float64) ([]domain.Candidate, error) {
			// Chunk 7 shows up for every sub-query.
			return []domain.Candidate{
				cand(7, 0.9, domain.SearchTypeVector),
				cand(100, 0.5, domain.SearchTypeKeyword),
			}, nil
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.Retrieve(context.Background(), "caring for my mother",
		subQueries("dementia daily care", "dementia communication"))

	require.NoError(t, err)
	assert.Equal(t, 4, result.PooledCount)
	assert.Equal(t, 2, result.UniqueCount)
	require.NoError(t, result.Context.Validate())
	assert.False(t, result.Degraded())
}

func TestRetrieve_BoundedConcurrency(t *testing.T) {
	var current, peak int64
	store := &stubStore{
		hybridFn: func(ctx context.Context, _ []float32, _ string, _ int, _ float64) ([]domain.Candidate, error) {
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return []domain.Candidate{cand(1, 0.9, domain.SearchTypeVector)}, nil
		},
	}

	cfg := DefaultRetrievalConfig()
	cfg.MaxParallelWorkers = 2
	svc := NewRetrievalServiceWithConfig(&stubEmbedder{}, store, &stubReranker{}, cfg)

	_, err := svc.Retrieve(context.Background(), "q",
		subQueries("a", "b", "c", "d", "e", "f"))

	require.NoError(t, err)
	// One hybrid call per worker, at most two workers in flight.
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestRetrieve_WorkerTimeoutContributesNothing(t *testing.T) {
	store := &stubStore{
		hybridFn: func(ctx context.Context, _ []float32, keyword string, _ int, _ float64) ([]domain.Candidate, error) {
			if keyword == "slow" {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return []domain.Candidate{cand(1, 0.9, domain.SearchTypeVector)}, nil
		},
		titleFn: func(ctx context.Context, _ []float32, keyword string, _, _ int, _ float64) ([]domain.Candidate, error) {
			if keyword == "slow" {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return nil, nil
		},
	}

	cfg := DefaultRetrievalConfig()
	cfg.WorkerTimeout = 50 * time.Millisecond
	svc := NewRetrievalServiceWithConfig(&stubEmbedder{}, store, &stubReranker{}, cfg)

	result, err := svc.Retrieve(context.Background(), "q", subQueries("fast", "slow"))

	require.NoError(t, err)
	assert.Equal(t, []int{1}, result.TimedOutSubQueries)
	assert.Empty(t, result.FailedSubQueries)
	assert.True(t, result.Degraded())
	require.Len(t, result.Context.Entries, 1)
	assert.Equal(t, int64(1), result.Context.Entries[0].ID)
}

func TestRetrieve_TotalFailure(t *testing.T) {
	svc := NewRetrievalService(
		&stubEmbedder{fn: func(context.Context, string) ([]float32, error) {
			return nil, errors.New("provider down")
		}},
		&stubStore{},
		&stubReranker{},
	)

	result, err := svc.Retrieve(context.Background(), "q", subQueries("a", "b"))

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrRetrievalFailed)
}

func TestRetrieve_PartialFailureIsNotFatal(t *testing.T) {
	store := &stubStore{
		hybridFn: func(_ context.Context, _ []float32, keyword string, _ int, _ float64) ([]domain.Candidate, error) {
			if keyword == "bad" {
				return nil, errors.New("down")
			}
			return []domain.Candidate{cand(2, 0.8, domain.SearchTypeVector)}, nil
		},
		titleFn: func(_ context.Context, _ []float32, keyword string, _, _ int, _ float64) ([]domain.Candidate, error) {
			if keyword == "bad" {
				return nil, errors.New("down")
			}
			return nil, nil
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.Retrieve(context.Background(), "q", subQueries("good", "bad"))

	require.NoError(t, err)
	assert.Equal(t, []int{1}, result.FailedSubQueries)
	assert.True(t, result.Degraded())
	assert.Len(t, result.Context.Entries, 1)
}

func TestRetrieve_EmptySuccessIsNotFailure(t *testing.T) {
	// Both tracks succeed but match nothing. That is an empty result,
	// not a retrieval failure.
	svc := newTestService(&stubStore{}, nil)

	result, err := svc.Retrieve(context.Background(), "q", subQueries("a"))

	require.NoError(t, err)
	assert.True(t, result.Context.Empty())
	assert.False(t, result.Degraded())
}

func TestRetrieve_GlobalRerankFailureFallsBack(t *testing.T) {
	store := &stubStore{
		hybridFn: func(context.Context, []float32, string, int, float64) ([]domain.Candidate, error) {
			out := make([]domain.Candidate, 0, 15)
			for i := int64(1); i <= 15; i++ {
				out = append(out, cand(i, float64(i)*0.05, domain.SearchTypeVector))
			}
			return out, nil
		},
	}
	calls := 0
	reranker := &stubReranker{fn: func(_ context.Context, _ string, documents []string, topN int) ([]domain.RerankResult, error) {
		calls++
		if calls == 1 {
			// Per-sub-query stage succeeds.
			return passthroughRerank(documents, topN), nil
		}
		return nil, errors.New("rerank api down")
	}}

	cfg := DefaultRetrievalConfig()
	cfg.RerankTopN = 15
	svc := NewRetrievalServiceWithConfig(&stubEmbedder{}, store, reranker, cfg)

	result, err := svc.Retrieve(context.Background(), "q", subQueries("a"))

	require.NoError(t, err)
	assert.True(t, result.GlobalRerankFallback)
	assert.True(t, result.Degraded())
	// Fallback widens the cap from ContextSize to FallbackContextSize.
	assert.Len(t, result.Context.Entries, cfg.FallbackContextSize)
	// Similarity ordering, descending.
	assert.Equal(t, int64(15), result.Context.Entries[0].ID)
}

func TestRetrieve_ContextSizeCap(t *testing.T) {
	store := &stubStore{
		hybridFn: func(context.Context, []float32, string, int, float64) ([]domain.Candidate, error) {
			out := make([]domain.Candidate, 0, 30)
			for i := int64(1); i <= 30; i++ {
				out = append(out, cand(i, 1.0-float64(i)*0.01, domain.SearchTypeVector))
			}
			return out, nil
		},
	}
	cfg := DefaultRetrievalConfig()
	cfg.RerankTopN = 30
	svc := NewRetrievalServiceWithConfig(&stubEmbedder{}, store, &stubReranker{}, cfg)

	result, err := svc.Retrieve(context.Background(), "q", subQueries("a"))

	require.NoError(t, err)
	assert.Len(t, result.Context.Entries, cfg.ContextSize)
	require.NoError(t, result.Context.Validate())
}

func TestRetrieve_NoDuplicateChunksAcrossSubQueries(t *testing.T) {
	store := &stubStore{
		hybridFn: func(context.Context, []float32, string, int, float64) ([]domain.Candidate, error) {
			return []domain.Candidate{
				cand(1, 0.9, domain.SearchTypeVector),
				cand(2, 0.8, domain.SearchTypeVector),
			}, nil
		},
		titleFn: func(context.Context, []float32, string, int, int, float64) ([]domain.Candidate, error) {
			return []domain.Candidate{cand(1, 0.85, domain.SearchTypeTitleFiltered)}, nil
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.Retrieve(context.Background(), "q", subQueries("a", "b", "c"))

	require.NoError(t, err)
	require.NoError(t, result.Context.Validate())
	assert.Equal(t, 2, result.UniqueCount)
}
