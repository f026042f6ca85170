package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ojas-care/ojas/internal/service"
)

// RetrievalLogRepository stores retrieval logs for evaluating the
// decomposition and ranking stages offline.
type RetrievalLogRepository struct {
	pool *pgxpool.Pool
}

func NewRetrievalLogRepository(pool *pgxpool.Pool) *RetrievalLogRepository {
	return &RetrievalLogRepository{pool: pool}
}

func (r *RetrievalLogRepository) CreateRetrievalLog(ctx context.Context, entry service.RetrievalLogEntry) (string, error) {
	degradation := map[string]any{}
	if len(entry.FailedSubQueries) > 0 {
		degradation["failed_sub_queries"] = entry.FailedSubQueries
	}
	if len(entry.TimedOutSubQueries) > 0 {
		degradation["timed_out_sub_queries"] = entry.TimedOutSubQueries
	}
	if entry.GlobalRerankFallback {
		degradation["global_rerank_fallback"] = true
	}

	subQueriesJSON, _ := json.Marshal(entry.SubQueries)
	resultsJSON, _ := json.Marshal(entry.Results)
	degradationJSON, _ := json.Marshal(degradation)

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO retrieval_logs (query, sub_queries, results, result_count, pooled_count, unique_count, degradation, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		entry.Query,
		subQueriesJSON,
		resultsJSON,
		len(entry.Results),
		entry.PooledCount,
		entry.UniqueCount,
		degradationJSON,
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
