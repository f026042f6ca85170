package service

import (
	"sort"

	"github.com/ojas-care/ojas/internal/domain"
)

// dedupeCandidates collapses candidates sharing a chunk ID into one
// record with the union of search types and the maximum similarity.
// The result is sorted by descending score, chunk ID ascending on ties,
// so the operation is idempotent and order-insensitive.
func dedupeCandidates(candidates []domain.Candidate) []domain.Candidate {
	byID := make(map[int64]domain.Candidate, len(candidates))
	for _, c := range candidates {
		existing, ok := byID[c.ID]
		if !ok {
			byID[c.ID] = c
			continue
		}
		if c.Similarity > existing.Similarity {
			existing.Similarity = c.Similarity
		}
		if c.Reranked && (!existing.Reranked || c.RerankScore > existing.RerankScore) {
			existing.RerankScore = c.RerankScore
			existing.Reranked = true
		}
		for _, st := range c.SearchTypes {
			existing.AddSearchType(st)
		}
		byID[c.ID] = existing
	}

	out := make([]domain.Candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sortCandidates(out)
	return out
}

// sortCandidates orders by descending best score; ties break on chunk
// ID ascending so the ordering is deterministic across runs.
func sortCandidates(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].BestScore(), candidates[j].BestScore()
		if si != sj {
			return si > sj
		}
		return candidates[i].ID < candidates[j].ID
	})
}
