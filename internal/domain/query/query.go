package query

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// MaxQuestionLen bounds the question size in bytes.
const MaxQuestionLen = 4096

// Query is one user request. It is never persisted.
type Query struct {
	UserName string
	Question string
}

// New trims and validates the question.
func New(userName, question string) (Query, error) {
	q := Query{UserName: strings.TrimSpace(userName), Question: strings.TrimSpace(question)}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Validate checks that the question is present and bounded.
func (q Query) Validate() error {
	if q.Question == "" {
		return fmt.Errorf("%w: question is required", domain.ErrInvalidQuery)
	}
	if len(q.Question) > MaxQuestionLen {
		return fmt.Errorf("%w: question too long (max %d bytes)", domain.ErrInvalidQuery, MaxQuestionLen)
	}
	return nil
}
