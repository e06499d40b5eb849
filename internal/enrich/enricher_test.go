package enrich

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jobforge/internal/model"
	"jobforge/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu         sync.Mutex
	companies  map[string]model.EnrichmentStatus
	profiles   map[string]model.CompanyProfile
	cache      map[string]model.EnrichmentCacheEntry
	cacheReads int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		companies: make(map[string]model.EnrichmentStatus),
		profiles:  make(map[string]model.CompanyProfile),
		cache:     make(map[string]model.EnrichmentCacheEntry),
	}
}

func (s *fakeStore) EnsureCompany(_ context.Context, url, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[url]; !ok {
		s.companies[url] = model.EnrichmentNone
	}
	return nil
}

func (s *fakeStore) ApplyEnrichment(_ context.Context, url string, p model.CompanyProfile, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[url] = model.EnrichmentDone
	s.profiles[url] = p
	return nil
}

func (s *fakeStore) MarkEnrichmentFailed(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[url] = model.EnrichmentFailed
	return nil
}

func (s *fakeStore) GetCacheEntry(_ context.Context, key string) (*model.EnrichmentCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheReads++
	e, ok := s.cache[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *fakeStore) PutCacheEntry(_ context.Context, e model.EnrichmentCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[e.Key] = e
	return nil
}

func (s *fakeStore) status(url string) model.EnrichmentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.companies[url]
}

// fakeClient counts lookups and can be scripted per call.
type fakeClient struct {
	calls atomic.Int64
	fn    func(call int64) (*model.CompanyProfile, error)
	gate  chan struct{} // when set, Lookup blocks until the gate closes
}

func (c *fakeClient) Lookup(ctx context.Context, _ string) (*model.CompanyProfile, error) {
	n := c.calls.Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.fn(n)
}

func testEnricher(client ProfileClient, store Store) *Enricher {
	policy := retry.Policy{MaxRetries: 3, BaseDelay: 5 * time.Millisecond, Logger: discardLogger()}
	return New(client, store, policy, Config{TTL: time.Hour, NegativeTTL: 24 * time.Hour}, discardLogger())
}

func TestEnrich_AppliesProfileAndCaches(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{fn: func(int64) (*model.CompanyProfile, error) {
		return &model.CompanyProfile{Name: "Acme", Industry: "Software"}, nil
	}}
	e := testEnricher(client, store)
	ctx := context.Background()
	url := "https://linkedin.com/company/acme"

	if err := e.Enrich(ctx, url, "Acme"); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if store.status(url) != model.EnrichmentDone {
		t.Errorf("status = %q, want enriched", store.status(url))
	}
	if client.calls.Load() != 1 {
		t.Errorf("lookups = %d, want 1", client.calls.Load())
	}

	// Second round inside the TTL must come from the cache.
	if err := e.Enrich(ctx, url, "Acme"); err != nil {
		t.Fatalf("second Enrich: %v", err)
	}
	if client.calls.Load() != 1 {
		t.Errorf("lookups after cache hit = %d, want 1", client.calls.Load())
	}
}

func TestEnrich_MemoryLayerSkipsStoreRead(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{fn: func(int64) (*model.CompanyProfile, error) {
		return &model.CompanyProfile{Name: "Acme"}, nil
	}}
	e := testEnricher(client, store)
	ctx := context.Background()
	url := "https://linkedin.com/company/acme"

	if err := e.Enrich(ctx, url, "Acme"); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if err := e.Enrich(ctx, url, "Acme"); err != nil {
		t.Fatalf("second Enrich: %v", err)
	}

	store.mu.Lock()
	reads := store.cacheReads
	store.mu.Unlock()
	if reads != 1 {
		t.Errorf("store cache reads = %d, want 1 (second hit served in-process)", reads)
	}
	if client.calls.Load() != 1 {
		t.Errorf("lookups = %d, want 1", client.calls.Load())
	}
}

func TestEnrich_ExpiredCacheTriggersRefresh(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{fn: func(int64) (*model.CompanyProfile, error) {
		return &model.CompanyProfile{Name: "Acme"}, nil
	}}
	e := testEnricher(client, store)
	ctx := context.Background()
	url := "https://linkedin.com/company/acme"

	if err := e.Enrich(ctx, url, "Acme"); err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	// Move the clock past the TTL.
	e.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := e.Enrich(ctx, url, "Acme"); err != nil {
		t.Fatalf("Enrich after expiry: %v", err)
	}
	if client.calls.Load() != 2 {
		t.Errorf("lookups = %d, want 2 after TTL expiry", client.calls.Load())
	}
}

func TestEnrich_ConcurrentLookupsCollapse(t *testing.T) {
	store := newFakeStore()
	gate := make(chan struct{})
	client := &fakeClient{
		gate: gate,
		fn: func(int64) (*model.CompanyProfile, error) {
			return &model.CompanyProfile{Name: "Acme"}, nil
		},
	}
	e := testEnricher(client, store)
	url := "https://linkedin.com/company/acme"

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.Enrich(context.Background(), url, "Acme")
		}(i)
	}

	// Let every goroutine queue up behind the in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("goroutine %d: %v", i, err)
		}
	}
	if calls := client.calls.Load(); calls != 1 {
		t.Errorf("lookups = %d, want 1 for concurrent requests", calls)
	}
}

func TestEnrich_NotFoundIsHandledAndCached(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{fn: func(int64) (*model.CompanyProfile, error) {
		return nil, model.ErrProfileNotFound
	}}
	e := testEnricher(client, store)
	ctx := context.Background()
	url := "https://linkedin.com/company/ghost"

	if err := e.Enrich(ctx, url, "Ghost"); err != nil {
		t.Fatalf("not-found should not be an error, got %v", err)
	}
	if store.status(url) != model.EnrichmentFailed {
		t.Errorf("status = %q, want enrichment_failed", store.status(url))
	}

	// The negative result is cached: no second lookup.
	if err := e.Enrich(ctx, url, "Ghost"); err != nil {
		t.Fatalf("second Enrich: %v", err)
	}
	if client.calls.Load() != 1 {
		t.Errorf("lookups = %d, want 1 after negative cache", client.calls.Load())
	}
}

func TestEnrich_TransientFailureRetriesThenSucceeds(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{fn: func(call int64) (*model.CompanyProfile, error) {
		if call == 1 {
			return nil, &model.HTTPError{StatusCode: 503}
		}
		return &model.CompanyProfile{Name: "Acme"}, nil
	}}
	e := testEnricher(client, store)

	url := "https://linkedin.com/company/acme"
	if err := e.Enrich(context.Background(), url, "Acme"); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if store.status(url) != model.EnrichmentDone {
		t.Errorf("status = %q, want enriched", store.status(url))
	}
	if client.calls.Load() != 2 {
		t.Errorf("lookups = %d, want 2", client.calls.Load())
	}
}

func TestEnrich_RateLimitedThriceThenSucceeds(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{fn: func(call int64) (*model.CompanyProfile, error) {
		if call <= 3 {
			return nil, &model.HTTPError{StatusCode: 429}
		}
		return &model.CompanyProfile{Name: "Acme"}, nil
	}}
	e := testEnricher(client, store)

	url := "https://linkedin.com/company/acme"
	if err := e.Enrich(context.Background(), url, "Acme"); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if store.status(url) != model.EnrichmentDone {
		t.Errorf("status = %q, want enriched", store.status(url))
	}
	if client.calls.Load() != 4 {
		t.Errorf("lookups = %d, want 4 (three rate-limited, one success)", client.calls.Load())
	}
}

func TestEnrich_AuthFailureIsPermanent(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{fn: func(int64) (*model.CompanyProfile, error) {
		return nil, &model.HTTPError{StatusCode: 401}
	}}
	e := testEnricher(client, store)

	url := "https://linkedin.com/company/acme"
	err := e.Enrich(context.Background(), url, "Acme")
	if err == nil {
		t.Fatal("expected error for auth failure")
	}
	if client.calls.Load() != 1 {
		t.Errorf("lookups = %d, want 1 (401 must not be retried)", client.calls.Load())
	}
	if store.status(url) != model.EnrichmentFailed {
		t.Errorf("status = %q, want enrichment_failed", store.status(url))
	}
}

func TestHTTPProfileClient_MapsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://linkedin.com/company/acme" {
			t.Errorf("url param = %q", got)
		}
		w.Write([]byte(`{
			"name": "Acme",
			"industry": "Software",
			"company_size": [51, 200],
			"hq": {"city": "Berlin", "country": "Germany"},
			"founded_year": 2015,
			"specialities": ["logistics"]
		}`))
	}))
	defer srv.Close()

	c := NewHTTPProfileClient(srv.URL, "key", srv.Client())
	p, err := c.Lookup(context.Background(), "https://linkedin.com/company/acme")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Name != "Acme" || p.Industry != "Software" {
		t.Errorf("profile = %+v", p)
	}
	if p.SizeMin == nil || *p.SizeMin != 51 || p.SizeMax == nil || *p.SizeMax != 200 {
		t.Errorf("size = %v..%v", p.SizeMin, p.SizeMax)
	}
	if p.HQCity != "Berlin" || p.HQCountry != "Germany" {
		t.Errorf("hq = %q/%q", p.HQCity, p.HQCountry)
	}
	if p.FoundedYear == nil || *p.FoundedYear != 2015 {
		t.Errorf("founded = %v", p.FoundedYear)
	}
}

func TestHTTPProfileClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPProfileClient(srv.URL, "key", srv.Client())
	_, err := c.Lookup(context.Background(), "https://linkedin.com/company/gone")
	if !errors.Is(err, model.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}
