package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ojas-care/ojas/internal/api/handlers"
	"github.com/ojas-care/ojas/internal/domain"
	"github.com/ojas-care/ojas/internal/service"
)

type MockQuestionService struct {
	mock.Mock
}

func (m *MockQuestionService) Search(ctx context.Context, query string) (*service.RetrievalResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RetrievalResult), args.Error(1)
}

func (m *MockQuestionService) Answer(ctx context.Context, query string) (*service.AnswerResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnswerResult), args.Error(1)
}

func setupRouter() (http.Handler, *MockQuestionService) {
	svc := new(MockQuestionService)
	router := NewRouter(RouterConfig{
		SearchHandler: handlers.NewSearchHandler(svc),
	})
	return router, svc
}

func sampleRetrieval() *service.RetrievalResult {
	return &service.RetrievalResult{
		Context: domain.RankedContextSet{Entries: []domain.Candidate{
			{
				Chunk: domain.Chunk{
					ID:        42,
					Content:   "Memory loss is a common early sign.",
					PageTitle: "About dementia",
					SourceURL: "https://example.org/about-dementia",
				},
				Similarity:  0.87,
				RerankScore: 0.93,
				Reranked:    true,
				SearchTypes: []domain.SearchType{domain.SearchTypeVector, domain.SearchTypeKeyword},
			},
		}},
		SubQueries:  domain.NewSubQueries([]string{"early signs of dementia"}),
		PooledCount: 12,
		UniqueCount: 8,
	}
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_Search(t *testing.T) {
	router, svc := setupRouter()
	svc.On("Search", mock.Anything, "early signs").Return(sampleRetrieval(), nil)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"early signs"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data handlers.SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, int64(42), resp.Data.Results[0].ID)
	assert.Equal(t, 0.93, resp.Data.Results[0].RerankScore)
	assert.ElementsMatch(t, []string{"vector", "keyword"}, resp.Data.Results[0].SearchTypes)
	assert.Equal(t, []string{"early signs of dementia"}, resp.Data.Meta.SubQueries)
	assert.Equal(t, 12, resp.Data.Meta.PooledCount)
	svc.AssertExpectations(t)
}

func TestRouter_Search_MissingQuery(t *testing.T) {
	router, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Search_InvalidBody(t *testing.T) {
	router, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader("{"))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Search_TotalFailure(t *testing.T) {
	router, svc := setupRouter()
	svc.On("Search", mock.Anything, "q").Return(nil, domain.ErrRetrievalFailed)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"q"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Ask(t *testing.T) {
	router, svc := setupRouter()
	svc.On("Answer", mock.Anything, "early signs").Return(&service.AnswerResult{
		Answer:    "Memory loss that disrupts daily life is a common early sign.",
		Retrieval: sampleRetrieval(),
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"query":"early signs"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data handlers.AskResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Data.Answer, "Memory loss")
	require.Len(t, resp.Data.Sources, 1)
	assert.Equal(t, "About dementia", resp.Data.Sources[0].PageTitle)
	svc.AssertExpectations(t)
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_MaxBodyBytes(t *testing.T) {
	router, _ := setupRouter()

	big := strings.Repeat("x", 65*1024)
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"`+big+`"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
