package answer

import "context"

// Retrier is the local interface for retrying provider calls.
type Retrier interface {
	Do(ctx context.Context, name string, op func(ctx context.Context) error) error
}
