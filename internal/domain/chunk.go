package domain

import (
	"fmt"
	"strings"
)

// SearchType identifies the retrieval path that surfaced a candidate.
type SearchType string

const (
	SearchTypeVector        SearchType = "vector"
	SearchTypeKeyword       SearchType = "keyword"
	SearchTypeTitleFiltered SearchType = "title_filtered"
)

// Chunk is an immutable knowledge unit produced by offline ingestion.
// The retrieval core only ever reads chunks.
type Chunk struct {
	ID             int64
	Content        string
	SourceURL      string
	PageTitle      string
	TopicHeading   string
	Embedding      []float32
	ProcessingInfo string
}

// Candidate wraps a Chunk with per-query retrieval provenance.
// Candidates from different search paths that share a chunk ID collapse
// to one record, keeping the highest score and the union of paths.
type Candidate struct {
	Chunk
	Similarity      float64
	SearchTypes     []SearchType
	RerankScore     float64
	Reranked        bool
	SubQueryOrdinal int
}

// HasSearchType reports whether t already contributed to this candidate.
func (c *Candidate) HasSearchType(t SearchType) bool {
	for _, st := range c.SearchTypes {
		if st == t {
			return true
		}
	}
	return false
}

// AddSearchType records a contributing retrieval path exactly once.
func (c *Candidate) AddSearchType(t SearchType) {
	if t == "" || c.HasSearchType(t) {
		return
	}
	c.SearchTypes = append(c.SearchTypes, t)
}

// MultiPath reports whether more than one retrieval path found the chunk.
func (c *Candidate) MultiPath() bool {
	return len(c.SearchTypes) > 1
}

// BestScore returns the rerank score when the candidate has been
// reranked, otherwise the store similarity.
func (c *Candidate) BestScore() float64 {
	if c.Reranked {
		return c.RerankScore
	}
	return c.Similarity
}

// SubQuery is a facet of the user's question, carrying an ordinal for
// deterministic ordering of worker results.
type SubQuery struct {
	Text    string
	Ordinal int
}

// NewSubQueries builds ordered sub-queries from decomposer output,
// dropping blanks. An empty result means the caller must fall back to
// the original query.
func NewSubQueries(texts []string) []SubQuery {
	out := make([]SubQuery, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, SubQuery{Text: t, Ordinal: len(out)})
	}
	return out
}

// RankedContextSet is the ordered, deduplicated candidate set handed to
// generation. No two entries share a chunk ID and entries are ordered
// by descending relevance.
type RankedContextSet struct {
	Entries []Candidate
}

// Empty reports whether retrieval produced no usable context. The
// generation boundary must be told so it can say "no information
// found" instead of answering from nothing.
func (s RankedContextSet) Empty() bool {
	return len(s.Entries) == 0
}

// Validate checks the set's structural invariants.
func (s RankedContextSet) Validate() error {
	seen := make(map[int64]struct{}, len(s.Entries))
	for _, e := range s.Entries {
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: chunk %d appears twice", ErrDuplicateChunk, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

// RerankResult is one entry of a reranker response: the index into the
// submitted document list plus the model's relevance score.
type RerankResult struct {
	Index int
	Score float64
}
