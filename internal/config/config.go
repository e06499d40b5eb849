package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for jobforge.
type Config struct {
	DBPath       string
	Sources      SourcesConfig
	Queries      []QueryConfig
	Pipeline     PipelineConfig
	Enrichment   EnrichmentConfig
	LLM          LLMConfig
	Filters      FilterConfig
	Notification NotificationConfig
	Tailor       TailorConfig
	RateLimit    RateLimitConfig
}

// SourcesConfig selects which source adapters are active.
type SourcesConfig struct {
	Greenhouse GreenhouseConfig
	Adzuna     AdzunaConfig
}

// GreenhouseConfig lists the Greenhouse boards to poll.
type GreenhouseConfig struct {
	Enabled bool     `yaml:"enabled"`
	Boards  []string `yaml:"boards"` // board tokens, e.g. "stripe"
}

// AdzunaConfig holds Adzuna API credentials and the country slug.
type AdzunaConfig struct {
	Enabled bool   `yaml:"enabled"`
	AppID   string `yaml:"app_id"`  // expanded from env var by Load
	AppKey  string `yaml:"app_key"` // expanded from env var by Load
	Country string `yaml:"country"` // e.g. "us", "de"
}

// QueryConfig is one search to run against every active source.
type QueryConfig struct {
	Term          string `yaml:"term"`
	Location      string `yaml:"location"`
	ResultsWanted int    `yaml:"results_wanted"`
}

// PipelineConfig controls batch concurrency and scheduling.
type PipelineConfig struct {
	Workers     int
	QueueCap    int
	CallTimeout time.Duration // per external call, retries included
	Schedule    string        // cron spec for the start command, e.g. "@every 6h"
}

// EnrichmentConfig controls the company profile lookup layer.
type EnrichmentConfig struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	TTL         time.Duration // cache lifetime for successful lookups
	NegativeTTL time.Duration // cache lifetime for not-found results
	Timeout     time.Duration
}

// LLMConfig controls the model used for extraction, fit scoring and
// tailoring.
type LLMConfig struct {
	Enabled    bool
	BaseURL    string // defaults to https://api.openai.com/v1
	Model      string
	APIKey     string
	Timeout    time.Duration
	MaxRepairs int // extraction repair budget
}

// FilterConfig holds the predicate settings.
type FilterConfig struct {
	ExcludedLocations []string
	TitleKeywords     []string
	BlockedCompanies  []string
	SearchSummary     string // one-line description of the target role, for fit scoring
	RejectContractor  bool
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// TailorConfig controls resume tailoring and PDF rendering.
type TailorConfig struct {
	ArtifactDir string `yaml:"artifact_dir"`
	ProfilePath string `yaml:"profile_path"` // JSON resume + candidate profile
}

// RateLimitConfig controls source-level rate limiting.
type RateLimitConfig struct {
	MinDelay        time.Duration            // minimum gap between requests to the same source
	SourceOverrides map[string]time.Duration // per-source overrides, keyed by adapter name
}

// MinDelayFor returns the configured delay for the given source, falling
// back to MinDelay.
func (r RateLimitConfig) MinDelayFor(source string) time.Duration {
	if d, ok := r.SourceOverrides[source]; ok {
		return d
	}
	return r.MinDelay
}

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"

	defaultWorkers     = 4
	defaultQueueCap    = 16
	defaultCallTimeout = 2 * time.Minute
	defaultSchedule    = "@every 6h"
	defaultTTL         = 168 * time.Hour
	defaultNegativeTTL = 720 * time.Hour // not-found results are stable, cache them longer
	defaultMaxRepairs  = 2
	defaultTimeout     = 30 * time.Second
	defaultMinDelay    = 2 * time.Second
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations
// as strings).
type rawConfig struct {
	DBPath       string              `yaml:"db_path"`
	Sources      rawSourcesConfig    `yaml:"sources"`
	Queries      []QueryConfig       `yaml:"queries"`
	Pipeline     rawPipelineConfig   `yaml:"pipeline"`
	Enrichment   rawEnrichmentConfig `yaml:"enrichment"`
	LLM          rawLLMConfig        `yaml:"llm"`
	Filters      rawFilterConfig     `yaml:"filters"`
	Notification NotificationConfig  `yaml:"notification"`
	Tailor       TailorConfig        `yaml:"tailor"`
	RateLimit    rawRateLimitConfig  `yaml:"rate_limit"`
}

type rawSourcesConfig struct {
	Greenhouse GreenhouseConfig `yaml:"greenhouse"`
	Adzuna     AdzunaConfig     `yaml:"adzuna"`
}

type rawPipelineConfig struct {
	Workers     int    `yaml:"workers"`
	QueueCap    int    `yaml:"queue_cap"`
	CallTimeout string `yaml:"call_timeout"`
	Schedule    string `yaml:"schedule"`
}

type rawEnrichmentConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	TTL         string `yaml:"ttl"`
	NegativeTTL string `yaml:"negative_ttl"`
	Timeout     string `yaml:"timeout"`
}

type rawLLMConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	Timeout    string `yaml:"timeout"`
	MaxRepairs *int   `yaml:"max_repairs"`
}

type rawFilterConfig struct {
	ExcludedLocations []string `yaml:"excluded_locations"`
	TitleKeywords     []string `yaml:"title_keywords"`
	BlockedCompanies  []string `yaml:"blocked_companies"`
	SearchSummary     string   `yaml:"search_summary"`
	RejectContractor  bool     `yaml:"reject_contractor"`
}

type rawRateLimitConfig struct {
	MinDelay        string            `yaml:"min_delay"`
	SourceOverrides map[string]string `yaml:"source_overrides"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ttl, err := durationOr(raw.Enrichment.TTL, defaultTTL, "enrichment.ttl")
	if err != nil {
		return nil, err
	}
	negTTL, err := durationOr(raw.Enrichment.NegativeTTL, defaultNegativeTTL, "enrichment.negative_ttl")
	if err != nil {
		return nil, err
	}
	enrichTimeout, err := durationOr(raw.Enrichment.Timeout, defaultTimeout, "enrichment.timeout")
	if err != nil {
		return nil, err
	}
	llmTimeout, err := durationOr(raw.LLM.Timeout, defaultTimeout, "llm.timeout")
	if err != nil {
		return nil, err
	}
	minDelay, err := durationOr(raw.RateLimit.MinDelay, defaultMinDelay, "rate_limit.min_delay")
	if err != nil {
		return nil, err
	}
	callTimeout, err := durationOr(raw.Pipeline.CallTimeout, defaultCallTimeout, "pipeline.call_timeout")
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]time.Duration)
	for src, s := range raw.RateLimit.SourceOverrides {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.source_overrides[%q]: %w", src, err)
		}
		overrides[src] = d
	}

	workers := raw.Pipeline.Workers
	if workers == 0 {
		workers = defaultWorkers
	}
	queueCap := raw.Pipeline.QueueCap
	if queueCap == 0 {
		queueCap = defaultQueueCap
	}
	schedule := raw.Pipeline.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	llmBaseURL := raw.LLM.BaseURL
	if llmBaseURL == "" {
		llmBaseURL = defaultOpenAIBaseURL
	}
	maxRepairs := defaultMaxRepairs
	if raw.LLM.MaxRepairs != nil {
		maxRepairs = *raw.LLM.MaxRepairs
	}

	dbPath := raw.DBPath
	if dbPath == "" {
		dbPath = "jobforge.db"
	}

	cfg := &Config{
		DBPath: dbPath,
		Sources: SourcesConfig{
			Greenhouse: raw.Sources.Greenhouse,
			Adzuna:     raw.Sources.Adzuna,
		},
		Queries: raw.Queries,
		Pipeline: PipelineConfig{
			Workers:     workers,
			QueueCap:    queueCap,
			CallTimeout: callTimeout,
			Schedule:    schedule,
		},
		Enrichment: EnrichmentConfig{
			Enabled:     raw.Enrichment.Enabled,
			BaseURL:     raw.Enrichment.BaseURL,
			APIKey:      raw.Enrichment.APIKey,
			TTL:         ttl,
			NegativeTTL: negTTL,
			Timeout:     enrichTimeout,
		},
		LLM: LLMConfig{
			Enabled:    raw.LLM.Enabled,
			BaseURL:    llmBaseURL,
			Model:      raw.LLM.Model,
			APIKey:     raw.LLM.APIKey,
			Timeout:    llmTimeout,
			MaxRepairs: maxRepairs,
		},
		Filters: FilterConfig{
			ExcludedLocations: raw.Filters.ExcludedLocations,
			TitleKeywords:     raw.Filters.TitleKeywords,
			BlockedCompanies:  raw.Filters.BlockedCompanies,
			SearchSummary:     raw.Filters.SearchSummary,
			RejectContractor:  raw.Filters.RejectContractor,
		},
		Notification: raw.Notification,
		Tailor:       raw.Tailor,
		RateLimit: RateLimitConfig{
			MinDelay:        minDelay,
			SourceOverrides: overrides,
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationOr(s string, fallback time.Duration, field string) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func validate(cfg *Config) error {
	if !cfg.Sources.Greenhouse.Enabled && !cfg.Sources.Adzuna.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if cfg.Sources.Greenhouse.Enabled && len(cfg.Sources.Greenhouse.Boards) == 0 {
		return fmt.Errorf("sources.greenhouse.boards is required when greenhouse is enabled")
	}
	if cfg.Sources.Adzuna.Enabled {
		if cfg.Sources.Adzuna.AppID == "" || cfg.Sources.Adzuna.AppKey == "" {
			return fmt.Errorf("sources.adzuna.app_id and app_key are required when adzuna is enabled")
		}
		if cfg.Sources.Adzuna.Country == "" {
			return fmt.Errorf("sources.adzuna.country is required when adzuna is enabled")
		}
	}
	if len(cfg.Queries) == 0 {
		return fmt.Errorf("at least one query is required")
	}
	for i, q := range cfg.Queries {
		if q.Term == "" {
			return fmt.Errorf("queries[%d].term is required", i)
		}
	}

	if cfg.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.QueueCap < 1 {
		return fmt.Errorf("pipeline.queue_cap must be positive, got %d", cfg.Pipeline.QueueCap)
	}

	if cfg.Enrichment.Enabled {
		if cfg.Enrichment.BaseURL == "" {
			return fmt.Errorf("enrichment.base_url is required when enrichment is enabled")
		}
		if cfg.Enrichment.APIKey == "" {
			return fmt.Errorf("enrichment.api_key is required when enrichment is enabled")
		}
	}

	if cfg.LLM.Enabled {
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required when llm.enabled is true")
		}
		if cfg.LLM.Model == "" {
			return fmt.Errorf("llm.model is required when llm.enabled is true")
		}
		if cfg.LLM.MaxRepairs < 0 {
			return fmt.Errorf("llm.max_repairs must not be negative, got %d", cfg.LLM.MaxRepairs)
		}
	}

	switch cfg.Notification.Type {
	case "", "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	return nil
}
