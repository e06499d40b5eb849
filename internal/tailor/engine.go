// Package tailor generates per-job resume variants. The model may reorder
// and rephrase the candidate's base profile against one job's requirements;
// structure conformance and a fabrication guard run on every reply before
// anything is stored. Rendering to PDF only ever happens on request.
package tailor

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"jobforge/internal/llm"
	"jobforge/internal/model"
	"jobforge/internal/retry"
)

//go:embed prompts/tailor.md
var tailorPromptRaw string

var tailorTemplate = template.Must(template.New("tailor").Parse(tailorPromptRaw))

const tailorSystemPrompt = "You tailor resumes. You rearrange and rephrase only; you never invent experience, skills, or achievements."

// Store is the slice of the persistence gateway tailoring needs.
type Store interface {
	GetTailoredResume(ctx context.Context, userID, jobKey string) (*model.TailoredResume, error)
	SaveTailoredResume(ctx context.Context, r model.TailoredResume) error
	UpdateResumeDocument(ctx context.Context, userID, jobKey string, doc model.ResumeDocument) error
	SetArtifact(ctx context.Context, userID, jobKey, path string) error
}

// Engine drives tailoring, editing, and on-demand rendering.
type Engine struct {
	client      llm.Client
	store       Store
	renderer    Renderer
	policy      retry.Policy
	artifactDir string
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Engine. Rendered PDFs land in artifactDir.
func New(client llm.Client, store Store, renderer Renderer, policy retry.Policy, artifactDir string, logger *slog.Logger) *Engine {
	return &Engine{
		client:      client,
		store:       store,
		renderer:    renderer,
		policy:      policy,
		artifactDir: artifactDir,
		logger:      logger,
		now:         time.Now,
	}
}

// Tailor generates a fresh tailored document for the (user, job) pair and
// persists it, overwriting any earlier version. The reply is forced into
// the base profile's structure and stripped of unsupported content before
// it is stored; no repair round-trips, the conformance pass is
// deterministic.
func (e *Engine) Tailor(ctx context.Context, profile model.CandidateProfile, job model.CanonicalJob, fields *model.ExtractedFields, company *model.Company) (model.TailoredResume, error) {
	baseJSON, err := json.MarshalIndent(profile.Document, "", "  ")
	if err != nil {
		return model.TailoredResume{}, fmt.Errorf("marshal base profile: %w", err)
	}

	var prompt strings.Builder
	err = tailorTemplate.Execute(&prompt, struct {
		JobContext string
		BaseResume string
	}{
		JobContext: buildJobContext(job, fields, company),
		BaseResume: string(baseJSON),
	})
	if err != nil {
		return model.TailoredResume{}, fmt.Errorf("render tailor prompt: %w", err)
	}

	var raw string
	err = e.policy.Do(ctx, "tailor "+job.Key, func(ctx context.Context) error {
		var cerr error
		raw, cerr = e.client.Complete(ctx, llm.Request{
			System:    tailorSystemPrompt,
			Prompt:    prompt.String(),
			MaxTokens: 4096,
		})
		return cerr
	})
	if err != nil {
		return model.TailoredResume{}, fmt.Errorf("tailoring for %s: %w", job.Key, err)
	}

	var generated model.ResumeDocument
	if err := json.Unmarshal([]byte(raw), &generated); err != nil {
		return model.TailoredResume{}, &model.ValidationError{
			Attempts: 1,
			Problems: []string{fmt.Sprintf("tailored resume is not a JSON object: %v", err)},
		}
	}

	doc := applyFabricationGuard(profile.Document, conformDocument(profile.Document, generated))

	r := model.TailoredResume{
		UserID:    profile.UserID,
		JobKey:    job.Key,
		VersionID: uuid.NewString(),
		Document:  doc,
	}
	if err := e.store.SaveTailoredResume(ctx, r); err != nil {
		return model.TailoredResume{}, err
	}

	e.logger.Info("tailored resume generated", "user", profile.UserID, "job", job.Key, "version", r.VersionID)
	r.ArtifactStatus = model.ArtifactNotGenerated
	return r, nil
}

// Edit persists a manual document edit. The stored artifact, if any, is
// marked stale by the same write.
func (e *Engine) Edit(ctx context.Context, userID, jobKey string, doc model.ResumeDocument) error {
	return e.store.UpdateResumeDocument(ctx, userID, jobKey, doc)
}

// Render renders the current document to PDF and records the artifact.
func (e *Engine) Render(ctx context.Context, userID, jobKey string) (string, error) {
	r, err := e.store.GetTailoredResume(ctx, userID, jobKey)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("no tailored resume for user %s and job %s", userID, jobKey)
	}
	return e.render(ctx, r)
}

// Artifact returns the path of a rendered PDF matching the current
// document, rendering first when there is none or the stored one is stale.
func (e *Engine) Artifact(ctx context.Context, userID, jobKey string) (string, error) {
	r, err := e.store.GetTailoredResume(ctx, userID, jobKey)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("no tailored resume for user %s and job %s", userID, jobKey)
	}
	if r.ArtifactStatus == model.ArtifactGenerated {
		return r.ArtifactPath, nil
	}
	return e.render(ctx, r)
}

func (e *Engine) render(ctx context.Context, r *model.TailoredResume) (string, error) {
	html, err := RenderHTML(r.Document)
	if err != nil {
		return "", err
	}

	pdf, err := e.renderer.RenderPDF(ctx, html)
	if err != nil {
		return "", fmt.Errorf("render pdf for %s/%s: %w", r.UserID, r.JobKey, err)
	}

	if err := os.MkdirAll(e.artifactDir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(e.artifactDir, fmt.Sprintf("%s_%s.pdf", r.UserID, r.VersionID))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	if err := e.store.SetArtifact(ctx, r.UserID, r.JobKey, path); err != nil {
		return "", err
	}
	return path, nil
}

// buildJobContext assembles the job block the tailoring prompt sees:
// posting facts first, extracted requirements and company background when
// available.
func buildJobContext(job model.CanonicalJob, fields *model.ExtractedFields, company *model.Company) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", job.Title)
	fmt.Fprintf(&b, "Employer: %s\n", job.Employer)
	if loc := job.Location(); loc != "" {
		fmt.Fprintf(&b, "Location: %s\n", loc)
	}

	if fields != nil && fields.Valid {
		if len(fields.RequiredSkills) > 0 {
			fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(fields.RequiredSkills, ", "))
		}
		if len(fields.PreferredSkills) > 0 {
			fmt.Fprintf(&b, "Preferred skills: %s\n", strings.Join(fields.PreferredSkills, ", "))
		}
		if len(fields.Responsibilities) > 0 {
			fmt.Fprintf(&b, "Responsibilities: %s\n", strings.Join(fields.Responsibilities, "; "))
		}
		if fields.Seniority != nil {
			fmt.Fprintf(&b, "Seniority: %s\n", *fields.Seniority)
		}
	}

	if company != nil && company.EnrichmentStatus == model.EnrichmentDone {
		fmt.Fprintf(&b, "About the company: %s", company.Name)
		if company.Industry != "" {
			fmt.Fprintf(&b, ", %s", company.Industry)
		}
		if company.SizeMin != nil {
			fmt.Fprintf(&b, ", %d+ employees", *company.SizeMin)
		}
		b.WriteString("\n")
		if company.Tagline != "" {
			fmt.Fprintf(&b, "Company tagline: %s\n", company.Tagline)
		}
	}

	if job.Description != "" {
		desc := job.Description
		if len(desc) > 4000 {
			desc = desc[:4000]
		}
		fmt.Fprintf(&b, "\nPosting:\n%s\n", desc)
	}
	return b.String()
}
