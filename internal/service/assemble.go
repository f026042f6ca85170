package service

import (
	"context"
	"log"

	"github.com/ojas-care/ojas/internal/domain"
)

// assembleContext runs the global rerank of the deduplicated candidate
// pool against the original query and caps the result at the configured
// context size. When the reranker fails the candidates keep their
// similarity ordering and the cap widens to FallbackContextSize, since
// similarity is a weaker relevance signal than a rerank score.
func (s *RetrievalService) assembleContext(ctx context.Context, originalQuery string, unique []domain.Candidate, result *RetrievalResult) domain.RankedContextSet {
	if len(unique) == 0 {
		return domain.RankedContextSet{}
	}

	documents := make([]string, len(unique))
	for i, c := range unique {
		documents[i] = c.Content
	}

	ranked, err := s.reranker.Rerank(ctx, originalQuery, documents, s.cfg.ContextSize)
	if err != nil {
		log.Printf("retrieval: global rerank failed, keeping similarity order: %v", err)
		result.GlobalRerankFallback = true
		sortCandidates(unique)
		if len(unique) > s.cfg.FallbackContextSize {
			unique = unique[:s.cfg.FallbackContextSize]
		}
		return domain.RankedContextSet{Entries: unique}
	}

	entries := make([]domain.Candidate, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(unique) {
			continue
		}
		c := unique[r.Index]
		c.RerankScore = r.Score
		c.Reranked = true
		entries = append(entries, c)
	}
	if len(entries) > s.cfg.ContextSize {
		entries = entries[:s.cfg.ContextSize]
	}
	return domain.RankedContextSet{Entries: entries}
}
