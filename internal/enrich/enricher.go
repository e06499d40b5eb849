package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"jobforge/internal/model"
	"jobforge/internal/retry"
)

// Store is the slice of the persistence gateway enrichment needs.
type Store interface {
	EnsureCompany(ctx context.Context, profileURL, name string) error
	ApplyEnrichment(ctx context.Context, profileURL string, p model.CompanyProfile, enrichedAt time.Time) error
	MarkEnrichmentFailed(ctx context.Context, profileURL string) error
	GetCacheEntry(ctx context.Context, key string) (*model.EnrichmentCacheEntry, error)
	PutCacheEntry(ctx context.Context, e model.EnrichmentCacheEntry) error
}

// Enricher resolves company profiles with caching and in-flight dedup.
// Concurrent requests for the same profile URL collapse into one service
// call via singleflight; completed lookups land in the store-backed cache
// so later runs inside the TTL never call out at all. A short-lived
// in-process layer sits on top of the store cache, so repeated sightings
// of the same company skip even the store read.
type Enricher struct {
	client      ProfileClient
	store       Store
	policy      retry.Policy
	ttl         time.Duration // positive results
	negativeTTL time.Duration // not-found results
	logger      *slog.Logger

	group singleflight.Group
	now   func() time.Time

	memMu sync.Mutex
	mem   map[string]memEntry
}

// memTTL bounds the in-process layer so store-level invalidation is picked
// up within minutes.
const memTTL = 5 * time.Minute

type memEntry struct {
	entry   model.EnrichmentCacheEntry
	savedAt time.Time
}

// Config holds enrichment cache parameters.
type Config struct {
	TTL         time.Duration
	NegativeTTL time.Duration
}

// New creates an Enricher.
func New(client ProfileClient, store Store, policy retry.Policy, cfg Config, logger *slog.Logger) *Enricher {
	return &Enricher{
		client:      client,
		store:       store,
		policy:      policy,
		ttl:         cfg.TTL,
		negativeTTL: cfg.NegativeTTL,
		logger:      logger,
		now:         time.Now,
		mem:         make(map[string]memEntry),
	}
}

// Enrich makes sure the company exists and holds fresh profile data.
// A not-found profile is a handled outcome, not an error: the company is
// marked failed and the miss is cached. Only transport failures that
// survive the retry budget (or storage failures) are returned.
func (e *Enricher) Enrich(ctx context.Context, profileURL, name string) error {
	if err := e.store.EnsureCompany(ctx, profileURL, name); err != nil {
		return err
	}

	// Collapse concurrent lookups for the same profile URL. Every waiter
	// shares the winner's result, including its error.
	_, err, _ := e.group.Do(profileURL, func() (any, error) {
		return nil, e.enrichOne(ctx, profileURL)
	})
	return err
}

func (e *Enricher) enrichOne(ctx context.Context, profileURL string) error {
	entry, err := e.cachedEntry(ctx, profileURL)
	if err != nil {
		return err
	}
	if entry != nil && !entry.Expired(e.now()) {
		e.logger.Debug("enrichment cache hit", "profile_url", profileURL, "not_found", entry.NotFound)
		return e.apply(ctx, profileURL, entry.Profile, entry.NotFound)
	}

	var profile *model.CompanyProfile
	lookupErr := e.policy.Do(ctx, "profile lookup", func(ctx context.Context) error {
		var lerr error
		profile, lerr = e.client.Lookup(ctx, profileURL)
		return lerr
	})

	switch {
	case lookupErr == nil:
		cached := model.EnrichmentCacheEntry{
			Key:       profileURL,
			Profile:   profile,
			ExpiresAt: e.now().Add(e.ttl),
		}
		if err := e.store.PutCacheEntry(ctx, cached); err != nil {
			return err
		}
		e.remember(cached)
		return e.apply(ctx, profileURL, profile, false)

	case errors.Is(lookupErr, model.ErrProfileNotFound):
		e.logger.Info("company profile not found", "profile_url", profileURL)
		cached := model.EnrichmentCacheEntry{
			Key:       profileURL,
			NotFound:  true,
			ExpiresAt: e.now().Add(e.negativeTTL),
		}
		if err := e.store.PutCacheEntry(ctx, cached); err != nil {
			return err
		}
		e.remember(cached)
		return e.apply(ctx, profileURL, nil, true)

	default:
		e.logger.Warn("company enrichment failed", "profile_url", profileURL, "error", lookupErr)
		if err := e.store.MarkEnrichmentFailed(ctx, profileURL); err != nil {
			return err
		}
		return lookupErr
	}
}

// cachedEntry consults the in-process layer before the store. A memorized
// entry serves only while both fresh in memory and unexpired.
func (e *Enricher) cachedEntry(ctx context.Context, key string) (*model.EnrichmentCacheEntry, error) {
	now := e.now()
	e.memMu.Lock()
	if m, ok := e.mem[key]; ok && now.Sub(m.savedAt) < memTTL && !m.entry.Expired(now) {
		entry := m.entry
		e.memMu.Unlock()
		return &entry, nil
	}
	e.memMu.Unlock()

	entry, err := e.store.GetCacheEntry(ctx, key)
	if err != nil || entry == nil {
		return entry, err
	}
	e.remember(*entry)
	return entry, nil
}

func (e *Enricher) remember(entry model.EnrichmentCacheEntry) {
	e.memMu.Lock()
	e.mem[entry.Key] = memEntry{entry: entry, savedAt: e.now()}
	e.memMu.Unlock()
}

func (e *Enricher) apply(ctx context.Context, profileURL string, profile *model.CompanyProfile, notFound bool) error {
	if notFound || profile == nil {
		return e.store.MarkEnrichmentFailed(ctx, profileURL)
	}
	return e.store.ApplyEnrichment(ctx, profileURL, *profile, e.now())
}
