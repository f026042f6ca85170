package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeEmbedding       = "EMBEDDING_ERROR"
	ErrCodeStoreQuery      = "STORE_QUERY_ERROR"
	ErrCodeRerank          = "RERANK_ERROR"
	ErrCodeDecompose       = "DECOMPOSE_ERROR"
	ErrCodeWorkerTimeout   = "WORKER_TIMEOUT"
	ErrCodeRetrievalFailed = "RETRIEVAL_FAILED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery     = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrDuplicateChunk = NewDomainError(ErrCodeValidation, "context set contains duplicate chunk id")
)

// ErrRetrievalFailed is the one hard failure the retrieval core
// surfaces: both search tracks failed for every sub-query. It is
// distinct from a legitimate empty-but-successful result.
var ErrRetrievalFailed = NewDomainError(ErrCodeRetrievalFailed, "all search tracks failed for every sub-query")

// NewEmbeddingError wraps a provider failure from the embedder.
func NewEmbeddingError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, "embedding request failed", err)
}

// NewStoreQueryError wraps a failed store query on one search track.
func NewStoreQueryError(track string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStoreQuery, fmt.Sprintf("%s search failed", track), err)
}

// NewRerankError wraps a reranker provider failure. Callers fall back
// to similarity ordering rather than dropping candidates.
func NewRerankError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeRerank, "rerank request failed", err)
}

// NewDecomposeError wraps a decomposition failure. Callers degrade to
// single-query mode using the original text.
func NewDecomposeError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeDecompose, "query decomposition failed", err)
}

// NewWorkerTimeout reports a sub-query worker exceeding its deadline.
// The coordinator treats the sub-query as an empty contribution.
func NewWorkerTimeout(subQuery string) *DomainError {
	return NewDomainError(ErrCodeWorkerTimeout, fmt.Sprintf("search worker timed out for %q", subQuery))
}
