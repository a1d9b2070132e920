package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentUnreadable signals that the source document could not be opened or parsed.
	ErrDocumentUnreadable = errors.New("document unreadable")
	// ErrEmbeddingFailure signals an embedding provider failure or an unusable vector.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrNoRelevantContext signals that retrieval found nothing to answer from.
	ErrNoRelevantContext = errors.New("no relevant context")
	// ErrGenerationFailure signals a generation provider failure or an empty answer.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrTimeout signals that a pipeline stage exceeded its deadline.
	ErrTimeout = errors.New("stage timeout")
	// ErrInvalidQuery signals a malformed query (e.g. empty question).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnexpected is the catch-all failure.
	ErrUnexpected = errors.New("unexpected failure")
)

// Kind classifies an error for callers that map failures to responses.
type Kind string

// Error kinds.
const (
	KindNone                   Kind = ""
	KindDocumentUnreadable     Kind = "document_unreadable"
	KindEmbeddingFailure       Kind = "embedding_failure"
	KindNoRelevantContext      Kind = "no_relevant_context"
	KindGenerationFailure      Kind = "generation_failure"
	KindDimensionalityMismatch Kind = "dimensionality_mismatch"
	KindTimeout                Kind = "timeout"
	KindInvalidQuery           Kind = "invalid_query"
	KindUnexpected             Kind = "unexpected_failure"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNoRelevantContext, KindNoRelevantContext},
	{ErrTimeout, KindTimeout},
	{ErrVectorDimMismatch, KindDimensionalityMismatch},
	{ErrEmbeddingFailure, KindEmbeddingFailure},
	{ErrGenerationFailure, KindGenerationFailure},
	{ErrDocumentUnreadable, KindDocumentUnreadable},
	{ErrInvalidQuery, KindInvalidQuery},
}

// KindOf returns the kind of err. Unknown non-nil errors are KindUnexpected.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnexpected
}

// PartialWriteError reports how far a multi-record write got before failing.
// Records before FailedID are stored; FailedID and everything after are not.
type PartialWriteError struct {
	Written  int
	FailedID string
	Err      error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %d records stored, failed at %q: %v", e.Written, e.FailedID, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
