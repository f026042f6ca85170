package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ojas-care/ojas/internal/cohere"
	"github.com/ojas-care/ojas/internal/config"
	"github.com/ojas-care/ojas/internal/domain"
	"github.com/ojas-care/ojas/internal/openai"
	"github.com/ojas-care/ojas/internal/repository"
	"github.com/ojas-care/ojas/internal/service"
)

// buildAnswerService wires the retrieval pipeline from configuration.
// The embedding provider is mandatory; without a Cohere key both rerank
// stages degrade to similarity ordering.
func buildAnswerService(cfg *config.Config, pool *pgxpool.Pool) (*service.AnswerService, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("embedding provider not configured: OJAS_OPENAI_API_KEY required")
	}

	embedder := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	decomposer := openai.NewDecomposer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel)
	generator := openai.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel)

	var reranker service.RerankClient
	if cfg.HasCohere() {
		client, err := cohere.NewClient(cohere.Config{
			APIKey: cfg.CohereAPIKey,
			Model:  cfg.RerankModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rerank client: %w", err)
		}
		reranker = client
	} else {
		reranker = noRerankClient{}
	}

	store := repository.NewChunkRepositoryWithBoost(pool, cfg.KeywordBoost)
	retrievalSvc := service.NewRetrievalServiceWithConfig(embedder, store, reranker, service.RetrievalConfig{
		MatchCount:          cfg.MatchCount,
		TitleMatchCount:     cfg.TitleMatchCount,
		SimilarityThreshold: cfg.SimilarityThreshold,
		RerankTopN:          cfg.RerankTopN,
		ContextSize:         cfg.ContextSize,
		FallbackContextSize: cfg.FallbackContextSize,
		MaxParallelWorkers:  cfg.MaxParallelWorkers,
		WorkerTimeout:       cfg.WorkerTimeout,
		OverallTimeout:      cfg.OverallTimeout,
	})

	logRepo := repository.NewRetrievalLogRepository(pool)
	return service.NewAnswerService(decomposer, retrievalSvc, generator, logRepo), nil
}

// noRerankClient stands in when no Cohere key is configured. Every call
// fails, so both rerank stages fall back to similarity ordering.
type noRerankClient struct{}

func (noRerankClient) Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankResult, error) {
	return nil, fmt.Errorf("reranker not configured: OJAS_COHERE_API_KEY required")
}
