package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/jobs.db
sources:
  greenhouse:
    enabled: true
    boards:
      - stripe
      - vercel
queries:
  - term: backend engineer
    location: Berlin
    results_wanted: 50
enrichment:
  enabled: true
  base_url: https://nubela.co/proxycurl
  api_key: secret
  ttl: 72h
llm:
  enabled: true
  model: gpt-4o-mini
  api_key: sk-test
filters:
  excluded_locations:
    - India
  title_keywords:
    - engineer
notification:
  type: log
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/jobs.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if len(cfg.Sources.Greenhouse.Boards) != 2 || cfg.Sources.Greenhouse.Boards[0] != "stripe" {
		t.Errorf("Greenhouse.Boards = %v", cfg.Sources.Greenhouse.Boards)
	}
	if len(cfg.Queries) != 1 || cfg.Queries[0].Term != "backend engineer" || cfg.Queries[0].ResultsWanted != 50 {
		t.Errorf("Queries = %+v", cfg.Queries)
	}
	if cfg.Enrichment.TTL != 72*time.Hour {
		t.Errorf("Enrichment.TTL = %v, want 72h", cfg.Enrichment.TTL)
	}
	if cfg.Enrichment.NegativeTTL != 720*time.Hour {
		t.Errorf("Enrichment.NegativeTTL = %v, want default 720h", cfg.Enrichment.NegativeTTL)
	}
	if cfg.Enrichment.NegativeTTL <= cfg.Enrichment.TTL {
		t.Errorf("NegativeTTL %v must outlive positive TTL %v", cfg.Enrichment.NegativeTTL, cfg.Enrichment.TTL)
	}
	if cfg.LLM.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("LLM.BaseURL = %q, want default", cfg.LLM.BaseURL)
	}
	if cfg.LLM.MaxRepairs != 2 {
		t.Errorf("LLM.MaxRepairs = %d, want default 2", cfg.LLM.MaxRepairs)
	}
	if cfg.Pipeline.Workers != 4 || cfg.Pipeline.QueueCap != 16 {
		t.Errorf("Pipeline = %+v, want defaults", cfg.Pipeline)
	}
	if cfg.Pipeline.CallTimeout != 2*time.Minute {
		t.Errorf("Pipeline.CallTimeout = %v, want default 2m", cfg.Pipeline.CallTimeout)
	}
	if cfg.Pipeline.Schedule != "@every 6h" {
		t.Errorf("Pipeline.Schedule = %q, want default", cfg.Pipeline.Schedule)
	}
	if len(cfg.Filters.ExcludedLocations) != 1 || cfg.Filters.ExcludedLocations[0] != "India" {
		t.Errorf("ExcludedLocations = %v", cfg.Filters.ExcludedLocations)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_ADZUNA_KEY", "k-123")
	path := writeConfig(t, `
sources:
  adzuna:
    enabled: true
    app_id: my-app
    app_key: ${TEST_ADZUNA_KEY}
    country: us
queries:
  - term: golang
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sources.Adzuna.AppKey != "k-123" {
		t.Errorf("Adzuna.AppKey = %q, want expanded env value", cfg.Sources.Adzuna.AppKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_NoSourcesEnabled(t *testing.T) {
	path := writeConfig(t, `
queries:
  - term: golang
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error when no source is enabled")
	}
}

func TestLoad_NoQueries(t *testing.T) {
	path := writeConfig(t, `
sources:
  greenhouse:
    enabled: true
    boards: [stripe]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error when no queries are configured")
	}
}

func TestLoad_AdzunaMissingCredentials(t *testing.T) {
	path := writeConfig(t, `
sources:
  adzuna:
    enabled: true
    country: us
queries:
  - term: golang
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for adzuna without credentials")
	}
}

func TestLoad_SlackWebhookValidation(t *testing.T) {
	path := writeConfig(t, `
sources:
  greenhouse:
    enabled: true
    boards: [stripe]
queries:
  - term: golang
notification:
  type: slack
  webhook_url: https://evil.example.com/hook
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for non-slack webhook URL")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
sources:
  greenhouse:
    enabled: true
    boards: [stripe]
queries:
  - term: golang
enrichment:
  ttl: one week
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for invalid duration")
	}
}

func TestRateLimit_MinDelayFor(t *testing.T) {
	r := RateLimitConfig{
		MinDelay:        2 * time.Second,
		SourceOverrides: map[string]time.Duration{"adzuna": 5 * time.Second},
	}
	if d := r.MinDelayFor("adzuna"); d != 5*time.Second {
		t.Errorf("MinDelayFor(adzuna) = %v, want override", d)
	}
	if d := r.MinDelayFor("greenhouse"); d != 2*time.Second {
		t.Errorf("MinDelayFor(greenhouse) = %v, want fallback", d)
	}
}
