// Package retry runs provider calls under bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Policy bounds the retry loop. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Classifier reports whether an error is transient and the call may be repeated.
type Classifier func(error) bool

// Retrier retries operations whose errors the classifier marks transient.
type Retrier struct {
	policy    Policy
	transient Classifier
	logger    *zap.Logger
}

// New creates a Retrier. A nil classifier never retries.
func New(policy Policy, transient Classifier, logger *zap.Logger) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 200 * time.Millisecond
	}
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}
	if transient == nil {
		transient = func(error) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{policy: policy, transient: transient, logger: logger}
}

// Do calls op until it succeeds, returns a non-transient error, attempts run
// out or ctx is done. The returned error is op's last error, or ctx.Err()
// when the context ended between attempts.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !r.transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn("transient provider error, retrying",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(operation, r.backOff(ctx), notify)
}

func (r *Retrier) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)
}
