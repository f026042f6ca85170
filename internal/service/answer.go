package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/ojas-care/ojas/internal/domain"
	"github.com/ojas-care/ojas/internal/telemetry"
)

// AnswerGenerator synthesizes a grounded answer from the assembled
// context. Implementations must state that nothing was found when the
// context set is empty instead of answering from the model's own
// knowledge.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, query string, contextSet domain.RankedContextSet) (string, error)
}

// RetrievalLogEntry is one retrieval's accounting row, written after
// the response is assembled. Logged results carry ranks and scores for
// offline evaluation of the ranking stages.
type RetrievalLogEntry struct {
	Query      string
	SubQueries []string
	Results    []RetrievalLogResult

	PooledCount          int
	UniqueCount          int
	FailedSubQueries     []int
	TimedOutSubQueries   []int
	GlobalRerankFallback bool
	DurationMs           int64
}

// RetrievalLogResult is one ranked chunk in a log entry.
type RetrievalLogResult struct {
	Rank        int      `json:"rank"`
	ChunkID     int64    `json:"chunk_id"`
	PageTitle   string   `json:"page_title"`
	SearchTypes []string `json:"search_types"`
	Similarity  float64  `json:"similarity"`
	RerankScore float64  `json:"rerank_score,omitempty"`
}

// RetrievalLogger persists retrieval log entries. Logging is
// best-effort; a write failure must never fail the search it describes.
type RetrievalLogger interface {
	CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error)
}

// AnswerService runs the full question-answering pipeline: decompose
// the question, retrieve ranked context, synthesize an answer.
type AnswerService struct {
	decomposer QueryDecomposer
	retrieval  *RetrievalService
	generator  AnswerGenerator
	logger     RetrievalLogger
}

// NewAnswerService creates an AnswerService. logger may be nil, in
// which case retrieval logging is skipped.
func NewAnswerService(decomposer QueryDecomposer, retrieval *RetrievalService, generator AnswerGenerator, logger RetrievalLogger) *AnswerService {
	return &AnswerService{
		decomposer: decomposer,
		retrieval:  retrieval,
		generator:  generator,
		logger:     logger,
	}
}

// AnswerResult is the pipeline's final output: the synthesized answer
// plus the context it was grounded on.
type AnswerResult struct {
	Answer    string
	Retrieval *RetrievalResult
}

// DecomposeQuery turns the question into sub-queries, degrading to a
// single sub-query of the original text when the decomposer fails or
// returns nothing usable. It never returns an error for a non-empty
// question.
func (s *AnswerService) DecomposeQuery(ctx context.Context, query string) []domain.SubQuery {
	texts, err := s.decomposer.Decompose(ctx, query)
	if err != nil {
		log.Printf("answer: decomposition failed, using original query: %v", err)
		texts = nil
	}
	subQueries := domain.NewSubQueries(texts)
	if len(subQueries) == 0 {
		subQueries = domain.NewSubQueries([]string{query})
	}
	return subQueries
}

// Search runs decomposition and retrieval without generation, for the
// search endpoint and CLI.
func (s *AnswerService) Search(ctx context.Context, query string) (*RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "answer.search", telemetry.SpanAttributes{
		Operation: "search",
		Query:     query,
	})
	defer span.End()

	start := time.Now()
	subQueries := s.DecomposeQuery(ctx, query)
	result, err := s.retrieval.Retrieve(ctx, query, subQueries)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.logRetrieval(ctx, query, result, time.Since(start))
	return result, nil
}

// Answer runs the full pipeline for one question.
func (s *AnswerService) Answer(ctx context.Context, query string) (*AnswerResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "answer.answer", telemetry.SpanAttributes{
		Operation: "answer",
		Query:     query,
	})
	defer span.End()

	start := time.Now()
	subQueries := s.DecomposeQuery(ctx, query)
	retrieval, err := s.retrieval.Retrieve(ctx, query, subQueries)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	answer, err := s.generator.GenerateAnswer(ctx, query, retrieval.Context)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.logRetrieval(ctx, query, retrieval, time.Since(start))
	return &AnswerResult{Answer: answer, Retrieval: retrieval}, nil
}

func (s *AnswerService) logRetrieval(ctx context.Context, query string, result *RetrievalResult, elapsed time.Duration) {
	if s.logger == nil {
		return
	}

	entry := RetrievalLogEntry{
		Query:                query,
		PooledCount:          result.PooledCount,
		UniqueCount:          result.UniqueCount,
		FailedSubQueries:     result.FailedSubQueries,
		TimedOutSubQueries:   result.TimedOutSubQueries,
		GlobalRerankFallback: result.GlobalRerankFallback,
		DurationMs:           elapsed.Milliseconds(),
	}
	for _, sq := range result.SubQueries {
		entry.SubQueries = append(entry.SubQueries, sq.Text)
	}
	for i, c := range result.Context.Entries {
		types := make([]string, len(c.SearchTypes))
		for j, st := range c.SearchTypes {
			types[j] = string(st)
		}
		entry.Results = append(entry.Results, RetrievalLogResult{
			Rank:        i + 1,
			ChunkID:     c.ID,
			PageTitle:   c.PageTitle,
			SearchTypes: types,
			Similarity:  c.Similarity,
			RerankScore: c.RerankScore,
		})
	}

	if _, err := s.logger.CreateRetrievalLog(ctx, entry); err != nil {
		log.Printf("answer: retrieval log write failed: %v", err)
	}
}
