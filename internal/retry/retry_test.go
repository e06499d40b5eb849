package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"jobforge/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() Policy {
	return Policy{MaxRetries: 2, BaseDelay: 10 * time.Millisecond, Logger: discardLogger()}
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		if calls == 1 {
			return &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDo_DoesNotRetryOn4xx(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		return &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError with status 404, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", calls)
	}
}

func TestDo_DoesNotRetryNotFound(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), "enrich", func(context.Context) error {
		calls++
		return model.ErrProfileNotFound
	})
	if !errors.Is(err, model.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", calls)
	}
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		return &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	})
	if err == nil {
		t.Fatal("expected error after max retries, got nil")
	}
	// 1 initial + 2 retries = 3
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_RespectsRetryAfter(t *testing.T) {
	calls := 0
	start := time.Now()
	err := testPolicy().Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		if calls == 1 {
			return &model.HTTPError{StatusCode: 429, RetryAfter: 50 * time.Millisecond}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected at least 50ms wait from Retry-After, waited %v", elapsed)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	p := Policy{MaxRetries: 2, BaseDelay: 5 * time.Second, Logger: discardLogger()}
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, "fetch", func(context.Context) error {
			calls++
			return &model.HTTPError{StatusCode: 500}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if calls != 1 {
			t.Fatalf("expected 1 call before cancellation, got %d", calls)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}
