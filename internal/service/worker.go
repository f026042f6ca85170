package service

import (
	"context"
	"log"
	"strings"
	"unicode"

	"github.com/ojas-care/ojas/internal/domain"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "it": {}, "this": {}, "that": {}, "these": {}, "those": {}, "we": {}, "our": {}, "you": {},
	"your": {}, "i": {}, "me": {}, "my": {}, "us": {}, "them": {}, "they": {}, "their": {}, "do": {},
	"does": {}, "did": {}, "what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "which": {}, "can": {},
	"could": {}, "should": {}, "would": {}, "may": {}, "might": {}, "will": {}, "shall": {},
}

// keywordQuery strips stopwords from a sub-query so the full-text track
// matches on content-bearing terms.
func keywordQuery(query string) string {
	var tokens []string
	for _, token := range strings.FieldsFunc(query, func(r rune) bool {
		return unicode.IsSpace(r)
	}) {
		clean := strings.ToLower(strings.TrimSpace(token))
		if clean == "" {
			continue
		}
		if _, ok := stopwords[clean]; ok {
			continue
		}
		tokens = append(tokens, token)
	}
	return strings.Join(tokens, " ")
}

type trackResult struct {
	track      string
	candidates []domain.Candidate
	err        error
}

// searchSubQuery is the dual-track search worker: for one sub-query it
// runs the hybrid and title-filtered tracks concurrently, merges and
// dedups their candidates, and reranks the survivors against the
// sub-query text.
//
// A single failed track is absorbed and the worker proceeds with the
// surviving track. Only when both tracks fail does the worker return an
// error, which the coordinator records as a retrieval gap for this
// sub-query rather than a fatal condition.
func (s *RetrievalService) searchSubQuery(ctx context.Context, sq domain.SubQuery) ([]domain.Candidate, error) {
	// One embedding call, shared by both tracks.
	embedding, err := s.embedding.GenerateEmbedding(ctx, sq.Text)
	if err != nil {
		return nil, domain.NewEmbeddingError(err)
	}

	keyword := keywordQuery(sq.Text)
	if keyword == "" {
		keyword = sq.Text
	}

	results := make(chan trackResult, 2)
	go func() {
		candidates, err := s.store.HybridSearch(ctx, embedding, keyword, s.cfg.MatchCount, s.cfg.SimilarityThreshold)
		if err != nil {
			err = domain.NewStoreQueryError("hybrid", err)
		}
		results <- trackResult{track: "hybrid", candidates: candidates, err: err}
	}()
	go func() {
		candidates, err := s.store.TitleFilteredSearch(ctx, embedding, keyword, s.cfg.MatchCount, s.cfg.TitleMatchCount, s.cfg.SimilarityThreshold)
		if err != nil {
			err = domain.NewStoreQueryError("title-filtered", err)
		}
		results <- trackResult{track: "title-filtered", candidates: candidates, err: err}
	}()

	// Both tracks must be fully collected before the merge; there is no
	// streaming partial merge.
	var merged []domain.Candidate
	var trackErrs []error
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			log.Printf("retrieval: sub-query %d %s track failed: %v", sq.Ordinal, r.track, r.err)
			trackErrs = append(trackErrs, r.err)
			continue
		}
		merged = append(merged, r.candidates...)
	}
	if len(trackErrs) == 2 {
		return nil, trackErrs[0]
	}

	deduped := dedupeCandidates(merged)
	for i := range deduped {
		deduped[i].SubQueryOrdinal = sq.Ordinal
	}
	if len(deduped) == 0 {
		return deduped, nil
	}

	return s.rerankCandidates(ctx, sq.Text, deduped, s.cfg.RerankTopN), nil
}

// rerankCandidates replaces similarity ordering with the reranker's
// relevance ordering. Candidates the reranker does not return are
// dropped. On reranker failure the prior similarity ordering survives,
// truncated to topN.
func (s *RetrievalService) rerankCandidates(ctx context.Context, query string, candidates []domain.Candidate, topN int) []domain.Candidate {
	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Content
	}

	ranked, err := s.reranker.Rerank(ctx, query, documents, topN)
	if err != nil {
		log.Printf("retrieval: rerank failed, falling back to similarity order: %v", err)
		sortCandidates(candidates)
		if len(candidates) > topN {
			candidates = candidates[:topN]
		}
		return candidates
	}

	out := make([]domain.Candidate, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		c := candidates[r.Index]
		c.RerankScore = r.Score
		c.Reranked = true
		out = append(out, c)
	}
	return out
}
