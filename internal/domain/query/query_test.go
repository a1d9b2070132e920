package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func TestNew(t *testing.T) {
	q, err := New(" ana ", "  What is the capital of France?  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.UserName != "ana" || q.Question != "What is the capital of France?" {
		t.Errorf("unexpected query: %+v", q)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		question string
	}{
		{"empty", ""},
		{"blank", "   \n"},
		{"too long", strings.Repeat("a", MaxQuestionLen+1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("u", tc.question)
			if !errors.Is(err, domain.ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}

func TestNew_EmptyUserNameAllowed(t *testing.T) {
	if _, err := New("", "hi"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
