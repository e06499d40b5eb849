// Package pipeline runs one scrape batch end to end: fetch from every
// configured source, normalize and upsert, enrich companies, extract fields,
// filter. Stages are connected by bounded channels and run their own worker
// pools, so a slow model call backpressures fetching instead of buffering
// unbounded work. A single job failing never stops the batch; storage
// failing always does.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobforge/internal/filter"
	"jobforge/internal/model"
	"jobforge/internal/normalize"
	"jobforge/internal/source"
	"jobforge/internal/store"
)

// Store is the slice of the persistence gateway the pipeline touches
// directly.
type Store interface {
	UpsertJob(ctx context.Context, job model.CanonicalJob) (store.UpsertOutcome, error)
	EnsureCompany(ctx context.Context, profileURL, name string) error
	GetExtractedFields(ctx context.Context, jobKey string) (*model.ExtractedFields, error)
}

// Enricher resolves one company profile.
type Enricher interface {
	Enrich(ctx context.Context, profileURL, name string) error
}

// Extractor derives structured fields for one job.
type Extractor interface {
	Extract(ctx context.Context, job model.CanonicalJob) error
}

// Filterer decides visibility for one job.
type Filterer interface {
	Decide(ctx context.Context, in filter.Input) (model.FilterDecision, error)
}

// Config sizes the stage worker pools and queues.
type Config struct {
	Workers     int           // per stage
	QueueCap    int           // channel capacity between stages
	CallTimeout time.Duration // ceiling for one external call, retries included
}

// Failure records one isolated per-item failure.
type Failure struct {
	Stage string // "fetch", "normalize", "enrich", "extract", "filter"
	Key   string // job key, profile URL, or source name
	Err   string
}

// RunSummary tallies one batch.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Fetched   int
	Inserted  int
	Updated   int
	Unchanged int

	Enriched     int
	EnrichFailed int

	Extracted      int
	ExtractFailed  int
	ExtractSkipped int

	Visible int
	Hidden  int

	NewlyVisible []model.CanonicalJob
	Failures     []Failure
}

// Pipeline wires the stages together.
type Pipeline struct {
	adapters  []source.Adapter
	queries   []source.Query
	store     Store
	enricher  Enricher
	extractor Extractor
	filterer  Filterer
	cfg       Config
	logger    *slog.Logger
}

// New creates a Pipeline.
func New(adapters []source.Adapter, queries []source.Query, st Store, enricher Enricher, extractor Extractor, filterer Filterer, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueCap <= 0 {
		cfg.QueueCap = 16
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}
	return &Pipeline{
		adapters:  adapters,
		queries:   queries,
		store:     st,
		enricher:  enricher,
		extractor: extractor,
		filterer:  filterer,
		cfg:       cfg,
		logger:    logger,
	}
}

// jobItem carries a job between stages with its upsert outcome, so later
// stages know whether it is new, changed, or a re-sighting.
type jobItem struct {
	job     model.CanonicalJob
	outcome store.UpsertOutcome
}

// Run executes one batch. Per-item failures are tallied in the summary;
// the returned error is non-nil only when the run aborted (storage down,
// every source dead, or the context cancelled).
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	var mu sync.Mutex

	record := func(stage, key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		summary.Failures = append(summary.Failures, Failure{Stage: stage, Key: key, Err: err.Error()})
	}

	p.logger.Info("run started", "run_id", summary.RunID, "sources", len(p.adapters), "queries", len(p.queries))

	g, ctx := errgroup.WithContext(ctx)

	rawCh := make(chan model.RawPosting, p.cfg.QueueCap)
	upsertedCh := make(chan jobItem, p.cfg.QueueCap)
	enrichedCh := make(chan jobItem, p.cfg.QueueCap)
	extractedCh := make(chan jobItem, p.cfg.QueueCap)

	// Fetch: one worker per adapter, all queries each.
	var healthySources int
	g.Go(func() error {
		defer close(rawCh)
		fg, fctx := errgroup.WithContext(ctx)
		for _, a := range p.adapters {
			fg.Go(func() error {
				ok := false
				for _, q := range p.queries {
					if fctx.Err() != nil {
						return fctx.Err()
					}
					cctx, cancel := p.callScope(fctx)
					postings, err := a.Fetch(cctx, q)
					cancel()
					if err != nil {
						record("fetch", a.Name(), err)
						continue
					}
					ok = true
					mu.Lock()
					summary.Fetched += len(postings)
					mu.Unlock()
					for _, raw := range postings {
						select {
						case rawCh <- raw:
						case <-fctx.Done():
							return fctx.Err()
						}
					}
				}
				if ok {
					mu.Lock()
					healthySources++
					mu.Unlock()
				}
				return nil
			})
		}
		return fg.Wait()
	})

	// Normalize + upsert.
	g.Go(func() error {
		defer close(upsertedCh)
		return p.pool(ctx, func(ctx context.Context) error {
			for raw := range rawCh {
				job, err := normalize.Normalize(raw)
				if err != nil {
					record("normalize", raw.Source+"/"+raw.ExternalID, err)
					continue
				}
				outcome, err := p.store.UpsertJob(ctx, job)
				if err != nil {
					return err
				}
				// The company row exists from first sighting, whether or
				// not enrichment ever runs for it.
				if job.EmployerProfileURL != "" {
					if err := p.store.EnsureCompany(ctx, job.EmployerProfileURL, job.Employer); err != nil {
						return err
					}
				}
				mu.Lock()
				switch outcome {
				case store.Inserted:
					summary.Inserted++
				case store.Updated:
					summary.Updated++
				default:
					summary.Unchanged++
				}
				mu.Unlock()
				select {
				case upsertedCh <- jobItem{job: job, outcome: outcome}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	})

	// Enrich companies: one lookup per distinct profile URL per batch, so
	// the summary counts companies rather than jobs. The first job sighting
	// a company claims it; every later job for the same company passes
	// straight through. The enricher's own singleflight still covers lookups
	// racing across batches.
	var companyMu sync.Mutex
	seenCompanies := make(map[string]struct{})
	claimCompany := func(url string) bool {
		companyMu.Lock()
		defer companyMu.Unlock()
		if _, ok := seenCompanies[url]; ok {
			return false
		}
		seenCompanies[url] = struct{}{}
		return true
	}
	g.Go(func() error {
		defer close(enrichedCh)
		return p.pool(ctx, func(ctx context.Context) error {
			for item := range upsertedCh {
				if url := item.job.EmployerProfileURL; url != "" && claimCompany(url) {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					cctx, cancel := p.callScope(ctx)
					err := p.enricher.Enrich(cctx, url, item.job.Employer)
					cancel()
					if err != nil {
						if model.IsStorageError(err) {
							return err
						}
						record("enrich", url, err)
						mu.Lock()
						summary.EnrichFailed++
						mu.Unlock()
					} else {
						mu.Lock()
						summary.Enriched++
						mu.Unlock()
					}
				}
				select {
				case enrichedCh <- item:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	})

	// Extract fields. Re-sightings with an existing valid extraction are
	// skipped unless the description changed.
	g.Go(func() error {
		defer close(extractedCh)
		return p.pool(ctx, func(ctx context.Context) error {
			for item := range enrichedCh {
				skip, err := p.shouldSkipExtraction(ctx, item)
				if err != nil {
					return err
				}
				if skip {
					mu.Lock()
					summary.ExtractSkipped++
					mu.Unlock()
				} else {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					cctx, cancel := p.callScope(ctx)
					err := p.extractor.Extract(cctx, item.job)
					cancel()
					if err != nil {
						if model.IsStorageError(err) {
							return err
						}
						record("extract", item.job.Key, err)
						mu.Lock()
						summary.ExtractFailed++
						mu.Unlock()
					} else {
						mu.Lock()
						summary.Extracted++
						mu.Unlock()
					}
				}
				select {
				case extractedCh <- item:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	})

	// Filter.
	g.Go(func() error {
		return p.pool(ctx, func(ctx context.Context) error {
			for item := range extractedCh {
				fields, err := p.store.GetExtractedFields(ctx, item.job.Key)
				if err != nil {
					return err
				}
				if fields != nil && !fields.Valid {
					fields = nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				cctx, cancel := p.callScope(ctx)
				decision, err := p.filterer.Decide(cctx, filter.Input{Job: item.job, Fields: fields})
				cancel()
				if err != nil {
					if model.IsStorageError(err) {
						return err
					}
					record("filter", item.job.Key, err)
					continue
				}
				mu.Lock()
				if decision.Visible {
					summary.Visible++
					if item.outcome == store.Inserted {
						summary.NewlyVisible = append(summary.NewlyVisible, item.job)
					}
				} else {
					summary.Hidden++
				}
				mu.Unlock()
			}
			return nil
		})
	})

	err := g.Wait()
	summary.FinishedAt = time.Now().UTC()

	if err != nil {
		return summary, fmt.Errorf("run %s aborted: %w", summary.RunID, err)
	}
	if len(p.adapters) > 0 && healthySources == 0 {
		return summary, fmt.Errorf("run %s: %w: no source produced results", summary.RunID, model.ErrSourceUnavailable)
	}

	p.logger.Info("run finished",
		"run_id", summary.RunID,
		"fetched", summary.Fetched,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"visible", summary.Visible,
		"hidden", summary.Hidden,
		"failures", len(summary.Failures),
	)
	return summary, nil
}

// callScope detaches one external call from run cancellation and caps it
// with its own deadline. Cancelling the run stops new items at the channel
// selects, while a call already in flight finishes or times out on its own
// instead of being cut off with billed work half done.
func (p *Pipeline) callScope(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CallTimeout)
}

// pool runs fn in cfg.Workers goroutines and waits for all of them.
func (p *Pipeline) pool(ctx context.Context, fn func(context.Context) error) error {
	wg, wctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Go(func() error { return fn(wctx) })
	}
	return wg.Wait()
}

func (p *Pipeline) shouldSkipExtraction(ctx context.Context, item jobItem) (bool, error) {
	if item.outcome == store.Updated {
		return false, nil
	}
	existing, err := p.store.GetExtractedFields(ctx, item.job.Key)
	if err != nil {
		return false, err
	}
	return existing != nil && existing.Valid, nil
}
