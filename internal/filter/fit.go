package filter

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"
	"text/template"

	"jobforge/internal/llm"
	"jobforge/internal/model"
	"jobforge/internal/retry"
)

//go:embed prompts/fit.md
var fitPromptRaw string

var fitTemplate = template.Must(template.New("fit").Parse(fitPromptRaw))

// Fit categories.
const (
	FitStrong   = "strong"
	FitPossible = "possible"
	FitPoor     = "poor"
)

var fitSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"fit_category": map[string]any{
			"type": "string",
			"enum": []string{FitStrong, FitPossible, FitPoor},
		},
	},
	"required": []string{"fit_category"},
}

// FitStore persists fit verdicts alongside the extraction they were
// computed from.
type FitStore interface {
	SaveFitCategory(ctx context.Context, jobKey, category string) error
}

// FitPredicate is the model-assisted predicate: it classifies the job's fit
// against the candidate's search and hides clear misses. Verdicts are
// cached with the extraction, so a re-filter never re-asks the model.
// It abstains, never fails, when extraction is missing or the model call
// breaks: a degraded predicate must not hide jobs.
type FitPredicate struct {
	client        llm.Client
	store         FitStore
	policy        retry.Policy
	searchSummary string
	logger        *slog.Logger
}

// NewFitPredicate creates the predicate. searchSummary is a one-line
// description of what the candidate is looking for.
func NewFitPredicate(client llm.Client, store FitStore, policy retry.Policy, searchSummary string, logger *slog.Logger) *FitPredicate {
	return &FitPredicate{
		client:        client,
		store:         store,
		policy:        policy,
		searchSummary: searchSummary,
		logger:        logger,
	}
}

func (*FitPredicate) Name() string { return "fit" }

func (p *FitPredicate) Evaluate(ctx context.Context, in Input) model.PredicateOutcome {
	if in.Fields == nil || !in.Fields.Valid {
		return abstain()
	}

	category := in.Fields.FitCategory
	if category == "" {
		var err error
		category, err = p.classify(ctx, in)
		if err != nil {
			p.logger.Warn("fit classification unavailable", "job", in.Job.Key, "error", err)
			return abstain()
		}
		if err := p.store.SaveFitCategory(ctx, in.Job.Key, category); err != nil {
			p.logger.Warn("caching fit category failed", "job", in.Job.Key, "error", err)
		}
	}

	if category == FitPoor {
		return fail("poor fit")
	}
	return pass()
}

func (p *FitPredicate) classify(ctx context.Context, in Input) (string, error) {
	seniority := ""
	if in.Fields.Seniority != nil {
		seniority = *in.Fields.Seniority
	}

	var buf bytes.Buffer
	err := fitTemplate.Execute(&buf, struct {
		SearchSummary    string
		Title            string
		Employer         string
		Seniority        string
		RequiredSkills   string
		Responsibilities string
	}{
		SearchSummary:    p.searchSummary,
		Title:            in.Job.Title,
		Employer:         in.Job.Employer,
		Seniority:        seniority,
		RequiredSkills:   strings.Join(in.Fields.RequiredSkills, ", "),
		Responsibilities: strings.Join(in.Fields.Responsibilities, "; "),
	})
	if err != nil {
		return "", err
	}

	var raw string
	err = p.policy.Do(ctx, "fit "+in.Job.Key, func(ctx context.Context) error {
		var cerr error
		raw, cerr = p.client.Complete(ctx, llm.Request{
			System:     "You judge job fit for a candidate. Answer strictly in the requested format.",
			Prompt:     buf.String(),
			SchemaName: "job_fit",
			Schema:     fitSchema,
		})
		return cerr
	})
	if err != nil {
		return "", err
	}

	var verdict struct {
		FitCategory string `json:"fit_category"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return "", err
	}
	return verdict.FitCategory, nil
}
