// Package retrypolicy defines the retry-policy contract the scheduler
// delegates to (§1, §4.6): the core never implements retry semantics
// itself, it only invokes a policy with a zero-argument action and a
// context bag.
package retrypolicy

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Action is the zero-argument asynchronous action a policy invokes one or
// more times per its own rules.
type Action func(ctx context.Context) error

// Policy invokes action per its own policy and either yields success or
// re-surfaces the terminal failure. Implementations must observe ctx
// cancellation.
type Policy interface {
	Execute(ctx context.Context, bag Bag, action Action) error
}

// Noop invokes action exactly once. It is the policy JobDefinition falls
// back to when none is configured (§4.2).
type Noop struct{}

func (Noop) Execute(ctx context.Context, _ Bag, action Action) error {
	return action(ctx)
}

// Backoff is the default non-noop policy offered to callers: exponential
// backoff with a bounded attempt count, built on cenkalti/backoff/v4.
type Backoff struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Zero or negative means unlimited (bounded only by ctx/MaxElapsedTime).
	MaxAttempts int
	// InitialInterval is the delay before the second attempt. Defaults to
	// 500ms when zero.
	InitialInterval time.Duration
	// MaxInterval bounds the exponential growth. Defaults to the library's
	// 60s when zero.
	MaxInterval time.Duration
	// MaxElapsedTime stops retrying once exceeded. Zero means no limit.
	MaxElapsedTime time.Duration
}

func (p Backoff) Execute(ctx context.Context, _ Bag, action Action) error {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = p.MaxElapsedTime

	var bo backoff.BackOff = backoff.WithContext(eb, ctx)
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1))
	}

	return backoff.Retry(func() error {
		return action(ctx)
	}, bo)
}
