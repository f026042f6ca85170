package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ojas-care/ojas/internal/domain"
	"github.com/ojas-care/ojas/internal/telemetry"
)

// workerOutcome carries one sub-query worker's contribution back to the
// coordinator. Exactly one of the three shapes applies: candidates,
// timeout, or failure.
type workerOutcome struct {
	ordinal    int
	candidates []domain.Candidate
	timedOut   bool
	err        error
}

// Retrieve runs the full multi-path retrieval for a batch of
// sub-queries: bounded parallel dual-track workers, a strict join, a
// global dedup over the pooled candidates, and a final rerank against
// the original query.
//
// Partial results are the normal case. A failed or timed-out worker
// contributes nothing and is recorded in the result; Retrieve returns
// an error only when every worker lost both of its tracks, which is the
// one condition the caller must not confuse with a legitimately empty
// knowledge base.
func (s *RetrievalService) Retrieve(ctx context.Context, originalQuery string, subQueries []domain.SubQuery) (*RetrievalResult, error) {
	if strings.TrimSpace(originalQuery) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if len(subQueries) == 0 {
		subQueries = domain.NewSubQueries([]string{originalQuery})
	}

	if s.cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.OverallTimeout)
		defer cancel()
	}

	ctx, span := telemetry.StartSpan(ctx, "retrieval.retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
		Query:     originalQuery,
	})
	defer span.End()

	start := time.Now()

	poolSize := s.cfg.MaxParallelWorkers
	if len(subQueries) < poolSize {
		poolSize = len(subQueries)
	}
	sem := make(chan struct{}, poolSize)
	outcomes := make([]workerOutcome, len(subQueries))

	var wg sync.WaitGroup
	for i, sq := range subQueries {
		wg.Add(1)
		go func(i int, sq domain.SubQuery) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			workerCtx, cancel := context.WithTimeout(ctx, s.cfg.WorkerTimeout)
			defer cancel()

			candidates, err := s.searchSubQuery(workerCtx, sq)
			switch {
			case err != nil && errors.Is(workerCtx.Err(), context.DeadlineExceeded):
				outcomes[i] = workerOutcome{ordinal: sq.Ordinal, timedOut: true}
			case err != nil:
				outcomes[i] = workerOutcome{ordinal: sq.Ordinal, err: err}
			default:
				outcomes[i] = workerOutcome{ordinal: sq.Ordinal, candidates: candidates}
			}
		}(i, sq)
	}
	// Strict join: the global stage never starts on a partial batch.
	wg.Wait()

	result := &RetrievalResult{SubQueries: subQueries}
	var pooled []domain.Candidate
	for _, o := range outcomes {
		switch {
		case o.timedOut:
			log.Printf("retrieval: sub-query %d timed out after %s", o.ordinal, s.cfg.WorkerTimeout)
			result.TimedOutSubQueries = append(result.TimedOutSubQueries, o.ordinal)
		case o.err != nil:
			log.Printf("retrieval: sub-query %d failed: %v", o.ordinal, o.err)
			result.FailedSubQueries = append(result.FailedSubQueries, o.ordinal)
		default:
			pooled = append(pooled, o.candidates...)
		}
	}

	if len(result.FailedSubQueries) == len(subQueries) && len(subQueries) > 0 {
		span.SetError(domain.ErrRetrievalFailed)
		return nil, domain.ErrRetrievalFailed
	}

	result.PooledCount = len(pooled)
	unique := dedupeCandidates(pooled)
	result.UniqueCount = len(unique)

	result.Context = s.assembleContext(ctx, originalQuery, unique, result)

	log.Printf("retrieval: query %q -> %d sub-queries, %d pooled, %d unique, %d in context (%.0fms)",
		originalQuery, len(subQueries), result.PooledCount, result.UniqueCount,
		len(result.Context.Entries), float64(time.Since(start).Milliseconds()))
	span.SetTag("context_size", strconv.Itoa(len(result.Context.Entries)))

	return result, nil
}
