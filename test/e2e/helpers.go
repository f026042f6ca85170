//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ojas-care/ojas/internal/api/handlers"
	"github.com/ojas-care/ojas/internal/domain"
	"github.com/ojas-care/ojas/internal/repository"
	"github.com/ojas-care/ojas/internal/server"
	"github.com/ojas-care/ojas/internal/service"
	"github.com/ojas-care/ojas/internal/testutil"
	"github.com/stretchr/testify/require"
)

// topicAxes maps fixture topics to embedding axes, so text sharing a
// topic word lands on the same axis and scores cosine similarity 1.0.
var topicAxes = map[string]int{
	"sundowning": 0,
	"routine":    1,
	"respite":    2,
}

const offTopicAxis = 100

// fixtureEmbedding deterministically embeds text into 1024 dims based
// on which topic words it mentions.
func fixtureEmbedding(text string) []float32 {
	v := make([]float32, 1024)
	lower := strings.ToLower(text)
	for topic, axis := range topicAxes {
		if strings.Contains(lower, topic) {
			v[axis] = 1.0
			return v
		}
	}
	v[offTopicAxis] = 1.0
	return v
}

type fixtureEmbedder struct{}

func (fixtureEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	return fixtureEmbedding(text), nil
}

type identityDecomposer struct{}

func (identityDecomposer) Decompose(_ context.Context, query string) ([]string, error) {
	return []string{query}, nil
}

// orderReranker preserves the incoming order with descending scores,
// exercising the rerank mapping without an external model.
type orderReranker struct{}

func (orderReranker) Rerank(_ context.Context, _ string, documents []string, topN int) ([]domain.RerankResult, error) {
	n := len(documents)
	if topN < n {
		n = topN
	}
	out := make([]domain.RerankResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.RerankResult{Index: i, Score: 1.0 - float64(i)*0.01})
	}
	return out, nil
}

type cannedGenerator struct{}

func (cannedGenerator) GenerateAnswer(_ context.Context, _ string, contextSet domain.RankedContextSet) (string, error) {
	if contextSet.Empty() {
		return "I could not find information about that.", nil
	}
	return "Answer grounded in " + contextSet.Entries[0].PageTitle + ".", nil
}

// E2EEnv is a running stack: pgvector in a container, the real
// repositories and HTTP surface, and deterministic model stubs.
type E2EEnv struct {
	T         *testing.T
	Pool      *pgxpool.Pool
	ChunkRepo *repository.ChunkRepository
	Server    *httptest.Server

	cleanup []func()
}

func SetupE2EEnv(t *testing.T) *E2EEnv {
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")

	chunkRepo := repository.NewChunkRepository(pool)
	logRepo := repository.NewRetrievalLogRepository(pool)

	retrieval := service.NewRetrievalService(fixtureEmbedder{}, chunkRepo, orderReranker{})
	answer := service.NewAnswerService(identityDecomposer{}, retrieval, cannedGenerator{}, logRepo)

	router := server.NewRouter(server.RouterConfig{
		SearchHandler: handlers.NewSearchHandler(answer),
	})
	srv := httptest.NewServer(router)

	env := &E2EEnv{T: t, Pool: pool, ChunkRepo: chunkRepo, Server: srv}
	env.cleanup = append(env.cleanup,
		srv.Close,
		pool.Close,
		func() { _ = pc.Terminate(ctx) },
	)
	return env
}

func (e *E2EEnv) Cleanup() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// SeedChunk inserts a chunk embedded with fixtureEmbedding of its
// content.
func (e *E2EEnv) SeedChunk(content, pageTitle string) int64 {
	e.T.Helper()
	chunk := &domain.Chunk{
		Content:      content,
		SourceURL:    "https://example.org/" + strings.ReplaceAll(strings.ToLower(pageTitle), " ", "-"),
		PageTitle:    pageTitle,
		TopicHeading: "Overview",
		Embedding:    fixtureEmbedding(content),
	}
	require.NoError(e.T, e.ChunkRepo.InsertChunk(context.Background(), chunk))
	return chunk.ID
}

func (e *E2EEnv) Post(path string, body interface{}) *http.Response {
	e.T.Helper()
	payload, err := json.Marshal(body)
	require.NoError(e.T, err)
	resp, err := http.Post(e.Server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(e.T, err)
	return resp
}

func (e *E2EEnv) Get(path string) *http.Response {
	e.T.Helper()
	resp, err := http.Get(e.Server.URL + path)
	require.NoError(e.T, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
