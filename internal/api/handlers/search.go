package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ojas-care/ojas/internal/api"
	"github.com/ojas-care/ojas/internal/domain"
	"github.com/ojas-care/ojas/internal/service"
)

// QuestionService is the pipeline surface the HTTP layer depends on.
type QuestionService interface {
	Search(ctx context.Context, query string) (*service.RetrievalResult, error)
	Answer(ctx context.Context, query string) (*service.AnswerResult, error)
}

type SearchHandler struct {
	svc QuestionService
}

func NewSearchHandler(svc QuestionService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type QuestionRequest struct {
	Query string `json:"query"`
}

type ChunkResponse struct {
	ID           int64    `json:"id"`
	Content      string   `json:"content"`
	SourceURL    string   `json:"source_url,omitempty"`
	PageTitle    string   `json:"page_title,omitempty"`
	TopicHeading string   `json:"topic_heading,omitempty"`
	Similarity   float64  `json:"similarity"`
	RerankScore  float64  `json:"rerank_score,omitempty"`
	SearchTypes  []string `json:"search_types"`
}

type RetrievalMetaResponse struct {
	SubQueries           []string `json:"sub_queries"`
	PooledCount          int      `json:"pooled_count"`
	UniqueCount          int      `json:"unique_count"`
	FailedSubQueries     []int    `json:"failed_sub_queries,omitempty"`
	TimedOutSubQueries   []int    `json:"timed_out_sub_queries,omitempty"`
	GlobalRerankFallback bool     `json:"global_rerank_fallback,omitempty"`
}

type SearchResponse struct {
	Results []*ChunkResponse      `json:"results"`
	Meta    RetrievalMetaResponse `json:"meta"`
}

type SourceResponse struct {
	PageTitle string `json:"page_title"`
	SourceURL string `json:"source_url,omitempty"`
}

type AskResponse struct {
	Answer  string                `json:"answer"`
	Sources []*SourceResponse     `json:"sources"`
	Meta    RetrievalMetaResponse `json:"meta"`
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return "", false
	}
	return req.Query, true
}

// Search runs retrieval only and returns the ranked context set.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Search(r.Context(), query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]*ChunkResponse, len(result.Context.Entries))
	for i, c := range result.Context.Entries {
		results[i] = chunkResponse(c)
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results: results,
		Meta:    retrievalMeta(result),
	})
}

// Ask runs the full pipeline and returns the answer with its sources.
func (h *SearchHandler) Ask(w http.ResponseWriter, r *http.Request) {
	query, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Answer(r.Context(), query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	seen := make(map[string]struct{})
	var sources []*SourceResponse
	for _, c := range result.Retrieval.Context.Entries {
		if _, dup := seen[c.PageTitle]; dup {
			continue
		}
		seen[c.PageTitle] = struct{}{}
		sources = append(sources, &SourceResponse{
			PageTitle: c.PageTitle,
			SourceURL: c.SourceURL,
		})
	}

	api.Success(w, http.StatusOK, AskResponse{
		Answer:  result.Answer,
		Sources: sources,
		Meta:    retrievalMeta(result.Retrieval),
	})
}

func chunkResponse(c domain.Candidate) *ChunkResponse {
	types := make([]string, len(c.SearchTypes))
	for i, st := range c.SearchTypes {
		types[i] = string(st)
	}
	return &ChunkResponse{
		ID:           c.ID,
		Content:      c.Content,
		SourceURL:    c.SourceURL,
		PageTitle:    c.PageTitle,
		TopicHeading: c.TopicHeading,
		Similarity:   c.Similarity,
		RerankScore:  c.RerankScore,
		SearchTypes:  types,
	}
}

func retrievalMeta(r *service.RetrievalResult) RetrievalMetaResponse {
	subQueries := make([]string, len(r.SubQueries))
	for i, sq := range r.SubQueries {
		subQueries[i] = sq.Text
	}
	return RetrievalMetaResponse{
		SubQueries:           subQueries,
		PooledCount:          r.PooledCount,
		UniqueCount:          r.UniqueCount,
		FailedSubQueries:     r.FailedSubQueries,
		TimedOutSubQueries:   r.TimedOutSubQueries,
		GlobalRerankFallback: r.GlobalRerankFallback,
	}
}
