package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jobforge/internal/model"
	"jobforge/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const greenhouseFixture = `{
	"jobs": [
		{
			"id": 4000001,
			"title": "Senior Backend Engineer",
			"location": {"name": "Berlin, BE, Germany"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/4000001",
			"content": "&lt;p&gt;Build &amp; run Go services.&lt;/p&gt;",
			"updated_at": "2026-05-01T10:00:00Z"
		},
		{
			"id": 4000002,
			"title": "Product Designer",
			"location": {"name": "Remote"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/4000002",
			"content": "&lt;p&gt;Design things.&lt;/p&gt;"
		}
	]
}`

func TestGreenhouseFetch_FiltersByTermAndCleansHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("content") != "true" {
			t.Errorf("expected content=true query, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(greenhouseFixture))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter("acme", "Acme", srv.Client())
	a.baseURL = srv.URL

	postings, err := a.Fetch(context.Background(), Query{Term: "engineer"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting after term filter, got %d", len(postings))
	}

	p := postings[0]
	if p.Source != "greenhouse" {
		t.Errorf("source = %q", p.Source)
	}
	if p.JobURL != "https://boards.greenhouse.io/acme/jobs/4000001" {
		t.Errorf("job url = %q", p.JobURL)
	}
	if p.Description != "Build & run Go services." {
		t.Errorf("description = %q; HTML should be stripped", p.Description)
	}
	if p.LocationCity != "Berlin" || p.LocationCountry != "Germany" {
		t.Errorf("location = %q/%q/%q", p.LocationCity, p.LocationState, p.LocationCountry)
	}
	if p.PostedAt == nil {
		t.Error("expected posted_at from updated_at")
	}
}

func TestGreenhouseFetch_HTTPErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter("acme", "Acme", srv.Client())
	a.baseURL = srv.URL

	_, err := a.Fetch(context.Background(), Query{})
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", httpErr.StatusCode)
	}
	if httpErr.RetryAfter != 120*time.Second {
		t.Errorf("retry-after = %v, want 120s", httpErr.RetryAfter)
	}
}

const adzunaFixture = `{
	"count": 1,
	"results": [
		{
			"id": "987654",
			"title": "Go Developer",
			"description": "Write Go for a logistics platform.",
			"company": {"display_name": "Shiply"},
			"location": {"display_name": "London, UK", "area": ["UK", "London", "Central London"]},
			"salary_min": 70000,
			"salary_max": 90000,
			"redirect_url": "https://www.adzuna.com/land/ad/987654",
			"created": "2026-05-02T08:30:00Z",
			"contract_time": "full_time",
			"contract_type": "permanent"
		}
	]
}`

func TestAdzunaFetch_MapsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("app_id") != "id" || q.Get("app_key") != "key" {
			t.Errorf("missing credentials in query: %s", r.URL.RawQuery)
		}
		if q.Get("what") != "go developer" {
			t.Errorf("what = %q", q.Get("what"))
		}
		w.Write([]byte(adzunaFixture))
	}))
	defer srv.Close()

	a := NewAdzunaAdapter("id", "key", "gb", srv.Client())
	a.baseURL = srv.URL

	postings, err := a.Fetch(context.Background(), Query{Term: "go developer", Location: "London"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}

	p := postings[0]
	if p.Source != "adzuna" {
		t.Errorf("source = %q", p.Source)
	}
	if p.Employer != "Shiply" {
		t.Errorf("employer = %q", p.Employer)
	}
	if p.CompMin == nil || *p.CompMin != 70000 {
		t.Errorf("comp min = %v", p.CompMin)
	}
	if p.CompMax == nil || *p.CompMax != 90000 {
		t.Errorf("comp max = %v", p.CompMax)
	}
	if p.JobType != "fulltime" {
		t.Errorf("job type = %q", p.JobType)
	}
	if p.LocationCity != "Central London" || p.LocationCountry != "UK" {
		t.Errorf("location = %q/%q/%q", p.LocationCity, p.LocationState, p.LocationCountry)
	}
}

func TestAdzunaFetch_MissingCredentials(t *testing.T) {
	a := NewAdzunaAdapter("", "", "gb", http.DefaultClient)
	if _, err := a.Fetch(context.Background(), Query{Term: "go"}); err == nil {
		t.Fatal("expected error without credentials")
	}
}

// flakyAdapter fails with a transient error until succeedOn is reached.
type flakyAdapter struct {
	calls     int
	succeedOn int
}

func (f *flakyAdapter) Name() string { return "flaky" }

func (f *flakyAdapter) Fetch(context.Context, Query) ([]model.RawPosting, error) {
	f.calls++
	if f.calls < f.succeedOn {
		return nil, &model.HTTPError{StatusCode: 503}
	}
	return []model.RawPosting{{Source: "flaky", Title: "x"}}, nil
}

func TestRetryingAdapter_RecoversFromTransientFailure(t *testing.T) {
	inner := &flakyAdapter{succeedOn: 2}
	a := NewRetryingAdapter(inner, retry.Policy{
		MaxRetries: 2, BaseDelay: 5 * time.Millisecond, Logger: discardLogger(),
	})

	postings, err := a.Fetch(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	if inner.calls != 2 {
		t.Errorf("calls = %d, want 2", inner.calls)
	}
}

func TestRetryingAdapter_ExhaustedBudgetIsSourceUnavailable(t *testing.T) {
	inner := &flakyAdapter{succeedOn: 100}
	a := NewRetryingAdapter(inner, retry.Policy{
		MaxRetries: 1, BaseDelay: 5 * time.Millisecond, Logger: discardLogger(),
	})

	_, err := a.Fetch(context.Background(), Query{})
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Errorf("expected wrapped HTTPError, got %v", err)
	}
}
