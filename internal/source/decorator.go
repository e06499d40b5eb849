package source

import (
	"context"
	"errors"
	"fmt"

	"jobforge/internal/model"
	"jobforge/internal/ratelimit"
	"jobforge/internal/retry"
)

// RetryingAdapter retries transient fetch failures before giving up. Once
// the budget is exhausted the error wraps model.ErrSourceUnavailable so the
// pipeline can tell a dead source from a bad query.
type RetryingAdapter struct {
	inner  Adapter
	policy retry.Policy
}

// NewRetryingAdapter wraps an adapter with the retry policy.
func NewRetryingAdapter(inner Adapter, policy retry.Policy) *RetryingAdapter {
	return &RetryingAdapter{inner: inner, policy: policy}
}

func (a *RetryingAdapter) Name() string { return a.inner.Name() }

func (a *RetryingAdapter) Fetch(ctx context.Context, q Query) ([]model.RawPosting, error) {
	var postings []model.RawPosting
	err := a.policy.Do(ctx, a.inner.Name()+" fetch", func(ctx context.Context) error {
		var ferr error
		postings, ferr = a.inner.Fetch(ctx, q)
		return ferr
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %w", a.inner.Name(), model.ErrSourceUnavailable, err)
	}
	return postings, nil
}

// RateLimitedAdapter waits for the per-source rate limiter before
// delegating. All adapters hitting the same source share one limiter.
type RateLimitedAdapter struct {
	inner   Adapter
	limiter *ratelimit.SourceRateLimiter
}

// NewRateLimitedAdapter wraps an adapter with source-level rate limiting.
func NewRateLimitedAdapter(inner Adapter, limiter *ratelimit.SourceRateLimiter) *RateLimitedAdapter {
	return &RateLimitedAdapter{inner: inner, limiter: limiter}
}

func (a *RateLimitedAdapter) Name() string { return a.inner.Name() }

func (a *RateLimitedAdapter) Fetch(ctx context.Context, q Query) ([]model.RawPosting, error) {
	if err := a.limiter.Wait(ctx, a.inner.Name()); err != nil {
		return nil, err
	}
	return a.inner.Fetch(ctx, q)
}
