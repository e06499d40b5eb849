// Package extract derives structured fields from job descriptions with an
// LLM. Output is validated locally against the field schema; invalid output
// is re-prompted with the validator's findings until a bounded repair
// budget runs out, at which point the job is marked extraction_failed and
// the run moves on.
package extract

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"jobforge/internal/llm"
	"jobforge/internal/model"
	"jobforge/internal/retry"
)

//go:embed prompts/extract.md
var extractPromptRaw string

//go:embed prompts/repair.md
var repairPromptRaw string

var (
	extractTemplate = template.Must(template.New("extract").Parse(extractPromptRaw))
	repairTemplate  = template.Must(template.New("repair").Parse(repairPromptRaw))
)

const systemPrompt = "You are a precise structured data extractor for job descriptions."

// Store is the slice of the persistence gateway extraction needs.
type Store interface {
	SaveExtractedFields(ctx context.Context, f model.ExtractedFields) error
	SetExtractionStatus(ctx context.Context, key string, status model.ExtractionStatus) error
}

// Extractor runs schema-validated field extraction for single jobs.
type Extractor struct {
	client     llm.Client
	store      Store
	policy     retry.Policy
	maxRepairs int
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Extractor. maxRepairs is the number of re-prompts allowed
// after the first invalid answer.
func New(client llm.Client, store Store, policy retry.Policy, maxRepairs int, logger *slog.Logger) *Extractor {
	return &Extractor{
		client:     client,
		store:      store,
		policy:     policy,
		maxRepairs: maxRepairs,
		logger:     logger,
		now:        time.Now,
	}
}

type promptData struct {
	Title       string
	Employer    string
	Location    string
	Description string
	Problems    []string
	Previous    string
}

// Extract derives fields for one job and persists the result. On success
// the job is marked extracted; once the repair budget is exhausted it is
// marked extraction_failed and a *model.ValidationError is returned.
// Absent fields stay null: validation never fills in guesses.
func (e *Extractor) Extract(ctx context.Context, job model.CanonicalJob) error {
	if job.Description == "" {
		e.logger.Debug("skipping extraction, no description", "job", job.Key)
		return e.store.SetExtractionStatus(ctx, job.Key, model.ExtractionFailed)
	}

	data := promptData{
		Title:       job.Title,
		Employer:    job.Employer,
		Location:    job.Location(),
		Description: job.Description,
	}

	var lastProblems []string
	tmpl := extractTemplate
	attempts := 0
	for attempt := 0; attempt <= e.maxRepairs; attempt++ {
		attempts++

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("render extraction prompt: %w", err)
		}

		var raw string
		err := e.policy.Do(ctx, "extract "+job.Key, func(ctx context.Context) error {
			var cerr error
			raw, cerr = e.client.Complete(ctx, llm.Request{
				System:     systemPrompt,
				Prompt:     buf.String(),
				SchemaName: "job_fields",
				Schema:     fieldSchema,
			})
			return cerr
		})
		if err != nil {
			if serr := e.store.SetExtractionStatus(ctx, job.Key, model.ExtractionFailed); serr != nil {
				return serr
			}
			return fmt.Errorf("extraction for %s: %w", job.Key, err)
		}

		problems := validate(raw)
		if len(problems) == 0 {
			fields, err := parseFields(raw)
			if err != nil {
				// Syntactically fine per the validator but not our shape;
				// treat like a validation failure and re-prompt.
				problems = []string{err.Error()}
			} else {
				fields.JobKey = job.Key
				fields.Version = uuid.NewString()
				fields.Valid = true
				fields.ExtractedAt = e.now()
				if err := e.store.SaveExtractedFields(ctx, fields); err != nil {
					return err
				}
				return e.store.SetExtractionStatus(ctx, job.Key, model.ExtractionDone)
			}
		}

		e.logger.Warn("extraction output failed validation",
			"job", job.Key,
			"attempt", attempts,
			"problems", problems,
		)
		lastProblems = problems
		data.Problems = problems
		data.Previous = raw
		tmpl = repairTemplate
	}

	if err := e.store.SetExtractionStatus(ctx, job.Key, model.ExtractionFailed); err != nil {
		return err
	}
	return &model.ValidationError{Attempts: attempts, Problems: lastProblems}
}

// validate checks raw against the field schema and returns the problems,
// empty on success.
func validate(raw string) []string {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(fieldSchema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return []string{fmt.Sprintf("output is not valid JSON: %v", err)}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, re.String())
	}
	return problems
}

func parseFields(raw string) (model.ExtractedFields, error) {
	var f model.ExtractedFields
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return model.ExtractedFields{}, fmt.Errorf("unmarshal extracted fields: %w", err)
	}
	return f, nil
}
