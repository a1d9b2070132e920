package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDo_SucceedsAfterTransient(t *testing.T) {
	r := New(fastPolicy(3), isTransient, nil)

	calls := 0
	err := r.Do(context.Background(), "embed", func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnPermanent(t *testing.T) {
	r := New(fastPolicy(5), isTransient, nil)
	permanent := errors.New("bad request")

	calls := 0
	err := r.Do(context.Background(), "embed", func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	r := New(fastPolicy(3), isTransient, nil)

	calls := 0
	err := r.Do(context.Background(), "generate", func(context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NilClassifierNeverRetries(t *testing.T) {
	r := New(fastPolicy(4), nil, nil)

	calls := 0
	_ = r.Do(context.Background(), "x", func(context.Context) error {
		calls++
		return errTransient
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	r := New(Policy{MaxAttempts: 10, InitialInterval: 50 * time.Millisecond, MaxInterval: 50 * time.Millisecond}, isTransient, nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.Do(ctx, "x", func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call after cancel, got %d", calls)
	}
}

func TestNew_Defaults(t *testing.T) {
	r := New(Policy{}, nil, nil)
	if r.policy.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", r.policy.MaxAttempts)
	}
}
