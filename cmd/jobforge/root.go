package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jobforge/internal/config"
	"jobforge/internal/enrich"
	"jobforge/internal/extract"
	"jobforge/internal/filter"
	"jobforge/internal/llm"
	"jobforge/internal/model"
	"jobforge/internal/notifier"
	"jobforge/internal/pipeline"
	"jobforge/internal/ratelimit"
	"jobforge/internal/retry"
	"jobforge/internal/source"
	"jobforge/internal/store"
	"jobforge/internal/tailor"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobforge",
	Short: "Job board pipeline — scrape, enrich, extract, filter, tailor",
	Long:  "Jobforge ingests postings from job sources, enriches employers, extracts structured fields with a model, filters the board, and tailors resumes per job.",
	// Default to `start` so that `jobforge` with no args runs the daemon.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBFORGE_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBFORGE_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBFORGE_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) notifier.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func buildAdapters(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) []source.Adapter {
	limiter := ratelimit.NewSourceRateLimiter(cfg.RateLimit.MinDelay)
	policy := retry.Policy{MaxRetries: 2, BaseDelay: 5 * time.Second, Logger: logger}

	wrap := func(a source.Adapter) source.Adapter {
		return source.NewRetryingAdapter(source.NewRateLimitedAdapter(a, limiter), policy)
	}

	var adapters []source.Adapter
	if cfg.Sources.Greenhouse.Enabled {
		for _, board := range cfg.Sources.Greenhouse.Boards {
			adapters = append(adapters, wrap(source.NewGreenhouseAdapter(board, board, httpClient)))
			logger.Info("registered source", "adapter", "greenhouse", "board", board)
		}
	}
	if cfg.Sources.Adzuna.Enabled {
		adapters = append(adapters, wrap(source.NewAdzunaAdapter(
			cfg.Sources.Adzuna.AppID,
			cfg.Sources.Adzuna.AppKey,
			cfg.Sources.Adzuna.Country,
			httpClient,
		)))
		logger.Info("registered source", "adapter", "adzuna", "country", cfg.Sources.Adzuna.Country)
	}
	return adapters
}

func setupLLM(cfg *config.Config) llm.Client {
	if !cfg.LLM.Enabled {
		return nil
	}
	httpClient := &http.Client{Timeout: cfg.LLM.Timeout}
	return llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, httpClient)
}

// noopEnricher is used when enrichment is disabled; companies stay
// unenriched.
type noopEnricher struct{}

func (noopEnricher) Enrich(context.Context, string, string) error { return nil }

// noopExtractor is used when the LLM is disabled; jobs stay pending.
type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, model.CanonicalJob) error { return nil }

func buildPipeline(cfg *config.Config, st *store.Store, logger *slog.Logger) *pipeline.Pipeline {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	// Budget of 3 rides out a burst of rate-limit responses before a call
	// is declared failed.
	policy := retry.Policy{MaxRetries: 3, BaseDelay: 2 * time.Second, Logger: logger}

	var enricher pipeline.Enricher = noopEnricher{}
	if cfg.Enrichment.Enabled {
		client := enrich.NewHTTPProfileClient(cfg.Enrichment.BaseURL, cfg.Enrichment.APIKey,
			&http.Client{Timeout: cfg.Enrichment.Timeout})
		enricher = enrich.New(client, st, policy, enrich.Config{
			TTL:         cfg.Enrichment.TTL,
			NegativeTTL: cfg.Enrichment.NegativeTTL,
		}, logger)
	}

	llmClient := setupLLM(cfg)
	var extractor pipeline.Extractor = noopExtractor{}
	if llmClient != nil {
		extractor = extract.New(llmClient, st, policy, cfg.LLM.MaxRepairs, logger)
	}

	predicates := []filter.Predicate{
		filter.RelocationPredicate{},
		filter.ScreeningPredicate{},
		filter.NewLocationPredicate(cfg.Filters.ExcludedLocations),
		filter.NewTitlePredicate(cfg.Filters.TitleKeywords),
		filter.NewCompanyPredicate(cfg.Filters.BlockedCompanies),
	}
	if cfg.Filters.RejectContractor {
		predicates = append(predicates, filter.ContractorPredicate{})
	}
	if llmClient != nil && cfg.Filters.SearchSummary != "" {
		predicates = append(predicates, filter.NewFitPredicate(llmClient, st, policy, cfg.Filters.SearchSummary, logger))
	}
	engine := filter.NewEngine(predicates, st, logger)

	queries := make([]source.Query, 0, len(cfg.Queries))
	for _, q := range cfg.Queries {
		queries = append(queries, source.Query{
			Term:          q.Term,
			Location:      q.Location,
			ResultsWanted: q.ResultsWanted,
		})
	}

	return pipeline.New(
		buildAdapters(cfg, httpClient, logger),
		queries,
		st,
		enricher,
		extractor,
		engine,
		pipeline.Config{
			Workers:     cfg.Pipeline.Workers,
			QueueCap:    cfg.Pipeline.QueueCap,
			CallTimeout: cfg.Pipeline.CallTimeout,
		},
		logger,
	)
}

func buildTailorEngine(cfg *config.Config, st *store.Store, logger *slog.Logger) (*tailor.Engine, error) {
	client := setupLLM(cfg)
	if client == nil {
		return nil, fmt.Errorf("llm must be enabled for resume tailoring")
	}
	policy := retry.Policy{MaxRetries: 2, BaseDelay: 2 * time.Second, Logger: logger}
	dir := cfg.Tailor.ArtifactDir
	if dir == "" {
		dir = "artifacts"
	}
	return tailor.New(client, st, tailor.NewChromeRenderer(), policy, dir, logger), nil
}

// loadProfile reads the candidate's base resume document from the configured
// JSON file.
func loadProfile(cfg *config.Config, userID string) (model.CandidateProfile, error) {
	if cfg.Tailor.ProfilePath == "" {
		return model.CandidateProfile{}, fmt.Errorf("tailor.profile_path is not configured")
	}
	data, err := os.ReadFile(cfg.Tailor.ProfilePath)
	if err != nil {
		return model.CandidateProfile{}, fmt.Errorf("read profile: %w", err)
	}
	var doc model.ResumeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.CandidateProfile{}, fmt.Errorf("parse profile: %w", err)
	}
	return model.CandidateProfile{UserID: userID, Document: doc}, nil
}
