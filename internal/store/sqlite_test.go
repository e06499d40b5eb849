package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jobforge/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleJob(key string) model.CanonicalJob {
	min := 150000.0
	return model.CanonicalJob{
		Key:          key,
		Source:       "greenhouse",
		JobURL:       "https://example.com/jobs/1",
		Title:        "Backend Engineer",
		Employer:     "Acme",
		Description:  "Build services in Go.",
		LocationCity: "Berlin",
		CompMin:      &min,
		CompCurrency: "EUR",
		CompInterval: "yearly",
	}
}

func TestUpsertJobInsertThenUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := sampleJob("url:https://example.com/jobs/1")

	out, err := s.UpsertJob(ctx, job)
	if err != nil {
		t.Fatalf("first UpsertJob: %v", err)
	}
	if out != Inserted {
		t.Errorf("first upsert = %q, want %q", out, Inserted)
	}

	out, err = s.UpsertJob(ctx, job)
	if err != nil {
		t.Fatalf("second UpsertJob: %v", err)
	}
	if out != Unchanged {
		t.Errorf("identical re-upsert = %q, want %q", out, Unchanged)
	}
}

func TestUpsertJobUpdatesMutableFieldsOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := sampleJob("url:https://example.com/jobs/1")

	if _, err := s.UpsertJob(ctx, job); err != nil {
		t.Fatalf("insert: %v", err)
	}

	changed := job
	changed.Description = "Build and operate services in Go."
	changed.Title = "Senior Backend Engineer" // immutable after insert
	out, err := s.UpsertJob(ctx, changed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out != Updated {
		t.Errorf("upsert with changed description = %q, want %q", out, Updated)
	}

	got, err := s.GetJob(ctx, job.Key)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Description != changed.Description {
		t.Errorf("description = %q, want %q", got.Description, changed.Description)
	}
	if got.Title != job.Title {
		t.Errorf("title = %q; title must not change after insert", got.Title)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Error("expected updated_at > created_at after an update")
	}
}

func TestUpsertJobPreservesExtractionStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := sampleJob("url:https://example.com/jobs/1")

	if _, err := s.UpsertJob(ctx, job); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.SetExtractionStatus(ctx, job.Key, model.ExtractionDone); err != nil {
		t.Fatalf("SetExtractionStatus: %v", err)
	}

	changed := job
	changed.Description = "updated"
	if _, err := s.UpsertJob(ctx, changed); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := s.GetJob(ctx, job.Key)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ExtractionStatus != model.ExtractionDone {
		t.Errorf("extraction status = %q, want %q after re-upsert", got.ExtractionStatus, model.ExtractionDone)
	}
}

func TestGetJobUnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetJob(context.Background(), "url:https://nope.example.com")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown key, got %+v", got)
	}
}

func TestEnsureCompanyIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url := "https://linkedin.com/company/acme"

	if err := s.EnsureCompany(ctx, url, "Acme"); err != nil {
		t.Fatalf("first EnsureCompany: %v", err)
	}
	if err := s.EnsureCompany(ctx, url, "Acme Inc"); err != nil {
		t.Fatalf("second EnsureCompany: %v", err)
	}

	got, err := s.GetCompany(ctx, url)
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if got == nil {
		t.Fatal("expected company row")
	}
	if got.Name != "Acme" {
		t.Errorf("name = %q; second EnsureCompany must not overwrite", got.Name)
	}
	if got.EnrichmentStatus != model.EnrichmentNone {
		t.Errorf("status = %q, want %q", got.EnrichmentStatus, model.EnrichmentNone)
	}
}

func TestApplyEnrichmentOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url := "https://linkedin.com/company/acme"

	if err := s.EnsureCompany(ctx, url, "Acme"); err != nil {
		t.Fatalf("EnsureCompany: %v", err)
	}

	sizeMin, sizeMax := 51, 200
	profile := model.CompanyProfile{
		Name:         "Acme GmbH",
		Industry:     "Software",
		SizeMin:      &sizeMin,
		SizeMax:      &sizeMax,
		HQCity:       "Berlin",
		Specialities: []string{"logistics", "apis"},
	}
	enrichedAt := time.Now().UTC()
	if err := s.ApplyEnrichment(ctx, url, profile, enrichedAt); err != nil {
		t.Fatalf("ApplyEnrichment: %v", err)
	}

	got, err := s.GetCompany(ctx, url)
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if got.Name != "Acme GmbH" {
		t.Errorf("name = %q, want %q", got.Name, "Acme GmbH")
	}
	if got.EnrichmentStatus != model.EnrichmentDone {
		t.Errorf("status = %q, want %q", got.EnrichmentStatus, model.EnrichmentDone)
	}
	if got.SizeMin == nil || *got.SizeMin != 51 {
		t.Errorf("size_min = %v, want 51", got.SizeMin)
	}
	if len(got.Specialities) != 2 || got.Specialities[0] != "logistics" {
		t.Errorf("specialities = %v", got.Specialities)
	}
	if got.LastEnrichedAt == nil {
		t.Error("expected last_enriched_at to be set")
	}

	// Re-enriching replaces, never appends.
	profile.Specialities = []string{"robotics"}
	if err := s.ApplyEnrichment(ctx, url, profile, time.Now().UTC()); err != nil {
		t.Fatalf("second ApplyEnrichment: %v", err)
	}
	got, _ = s.GetCompany(ctx, url)
	if len(got.Specialities) != 1 || got.Specialities[0] != "robotics" {
		t.Errorf("specialities after re-enrich = %v, want [robotics]", got.Specialities)
	}
}

func TestMarkEnrichmentFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url := "https://linkedin.com/company/ghost"

	if err := s.EnsureCompany(ctx, url, "Ghost"); err != nil {
		t.Fatalf("EnsureCompany: %v", err)
	}
	if err := s.MarkEnrichmentFailed(ctx, url); err != nil {
		t.Fatalf("MarkEnrichmentFailed: %v", err)
	}

	got, _ := s.GetCompany(ctx, url)
	if got.EnrichmentStatus != model.EnrichmentFailed {
		t.Errorf("status = %q, want %q", got.EnrichmentStatus, model.EnrichmentFailed)
	}
}

func TestCacheEntryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := model.EnrichmentCacheEntry{
		Key:       "https://linkedin.com/company/acme",
		Profile:   &model.CompanyProfile{Name: "Acme", Industry: "Software"},
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	if err := s.PutCacheEntry(ctx, entry); err != nil {
		t.Fatalf("PutCacheEntry: %v", err)
	}

	got, err := s.GetCacheEntry(ctx, entry.Key)
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if got == nil {
		t.Fatal("expected cache entry")
	}
	if got.Profile == nil || got.Profile.Name != "Acme" {
		t.Errorf("profile = %+v", got.Profile)
	}
	if got.NotFound {
		t.Error("expected positive entry")
	}
	if got.Expired(time.Now()) {
		t.Error("entry should not be expired yet")
	}
}

func TestCacheEntryNegative(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := model.EnrichmentCacheEntry{
		Key:       "https://linkedin.com/company/gone",
		NotFound:  true,
		ExpiresAt: time.Now().Add(24 * time.Hour).UTC(),
	}
	if err := s.PutCacheEntry(ctx, entry); err != nil {
		t.Fatalf("PutCacheEntry: %v", err)
	}

	got, err := s.GetCacheEntry(ctx, entry.Key)
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if !got.NotFound {
		t.Error("expected NotFound entry")
	}
	if got.Profile != nil {
		t.Errorf("expected nil profile, got %+v", got.Profile)
	}
}

func TestGetCacheEntryUnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetCacheEntry(context.Background(), "https://linkedin.com/company/none")
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSaveExtractedFieldsOverwritesAndClearsFit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	years := 5

	first := model.ExtractedFields{
		JobKey:          "url:https://example.com/jobs/1",
		Version:         "v1",
		RequiredSkills:  []string{"go", "sql"},
		YearsExperience: &years,
		Valid:           true,
		ExtractedAt:     time.Now().UTC(),
	}
	if err := s.SaveExtractedFields(ctx, first); err != nil {
		t.Fatalf("SaveExtractedFields: %v", err)
	}
	if err := s.SaveFitCategory(ctx, first.JobKey, "strong"); err != nil {
		t.Fatalf("SaveFitCategory: %v", err)
	}

	got, err := s.GetExtractedFields(ctx, first.JobKey)
	if err != nil {
		t.Fatalf("GetExtractedFields: %v", err)
	}
	if got.FitCategory != "strong" {
		t.Errorf("fit category = %q, want %q", got.FitCategory, "strong")
	}
	if got.YearsExperience == nil || *got.YearsExperience != 5 {
		t.Errorf("years = %v, want 5", got.YearsExperience)
	}

	second := first
	second.Version = "v2"
	second.RequiredSkills = []string{"go"}
	if err := s.SaveExtractedFields(ctx, second); err != nil {
		t.Fatalf("second SaveExtractedFields: %v", err)
	}

	got, _ = s.GetExtractedFields(ctx, first.JobKey)
	if got.Version != "v2" {
		t.Errorf("version = %q, want v2", got.Version)
	}
	if got.FitCategory != "" {
		t.Errorf("fit category = %q; re-extraction must invalidate it", got.FitCategory)
	}
	if len(got.RequiredSkills) != 1 {
		t.Errorf("required skills = %v", got.RequiredSkills)
	}
}

func TestFilterDecisionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := model.FilterDecision{
		JobKey:          "url:https://example.com/jobs/1",
		Visible:         false,
		FailedPredicate: "relocation",
		Outcomes: []model.PredicateOutcome{
			{Name: "relocation", Result: model.PredicateFail, Reason: "relocation required"},
			{Name: "screening", Result: model.PredicateAbstain},
		},
		DecidedAt: time.Now().UTC(),
	}
	if err := s.SaveFilterDecision(ctx, d); err != nil {
		t.Fatalf("SaveFilterDecision: %v", err)
	}

	got, err := s.GetFilterDecision(ctx, d.JobKey)
	if err != nil {
		t.Fatalf("GetFilterDecision: %v", err)
	}
	if got.Visible {
		t.Error("expected hidden")
	}
	if got.FailedPredicate != "relocation" {
		t.Errorf("failed predicate = %q", got.FailedPredicate)
	}
	if len(got.Outcomes) != 2 || got.Outcomes[1].Result != model.PredicateAbstain {
		t.Errorf("outcomes = %+v", got.Outcomes)
	}
}

func TestTailoredResumeLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := model.TailoredResume{
		UserID:    "user-1",
		JobKey:    "url:https://example.com/jobs/1",
		VersionID: "v-abc",
		Document:  model.ResumeDocument{"basics": map[string]any{"name": "Jane"}},
	}
	if err := s.SaveTailoredResume(ctx, r); err != nil {
		t.Fatalf("SaveTailoredResume: %v", err)
	}

	got, err := s.GetTailoredResume(ctx, r.UserID, r.JobKey)
	if err != nil {
		t.Fatalf("GetTailoredResume: %v", err)
	}
	if got.ArtifactStatus != model.ArtifactNotGenerated {
		t.Errorf("status = %q, want %q", got.ArtifactStatus, model.ArtifactNotGenerated)
	}

	if err := s.SetArtifact(ctx, r.UserID, r.JobKey, "/tmp/out.pdf"); err != nil {
		t.Fatalf("SetArtifact: %v", err)
	}
	got, _ = s.GetTailoredResume(ctx, r.UserID, r.JobKey)
	if got.ArtifactStatus != model.ArtifactGenerated || got.ArtifactPath != "/tmp/out.pdf" {
		t.Errorf("after render: status=%q path=%q", got.ArtifactStatus, got.ArtifactPath)
	}

	// A manual edit marks the artifact stale in the same write.
	edited := model.ResumeDocument{"basics": map[string]any{"name": "Jane Doe"}}
	if err := s.UpdateResumeDocument(ctx, r.UserID, r.JobKey, edited); err != nil {
		t.Fatalf("UpdateResumeDocument: %v", err)
	}
	got, _ = s.GetTailoredResume(ctx, r.UserID, r.JobKey)
	if got.ArtifactStatus != model.ArtifactStale {
		t.Errorf("after edit: status = %q, want %q", got.ArtifactStatus, model.ArtifactStale)
	}
	basics, ok := got.Document["basics"].(map[string]any)
	if !ok || basics["name"] != "Jane Doe" {
		t.Errorf("document = %+v", got.Document)
	}

	// Regeneration replaces the document and resets the artifact.
	r.VersionID = "v-def"
	if err := s.SaveTailoredResume(ctx, r); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	got, _ = s.GetTailoredResume(ctx, r.UserID, r.JobKey)
	if got.VersionID != "v-def" {
		t.Errorf("version = %q, want v-def", got.VersionID)
	}
	if got.ArtifactStatus != model.ArtifactNotGenerated || got.ArtifactPath != "" {
		t.Errorf("after regenerate: status=%q path=%q", got.ArtifactStatus, got.ArtifactPath)
	}
}

func TestUpdateResumeDocumentMissingRow(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateResumeDocument(context.Background(), "user-1", "url:missing", model.ResumeDocument{})
	if err == nil {
		t.Fatal("expected error for missing row")
	}
	if !model.IsStorageError(err) {
		t.Errorf("expected StorageError, got %T", err)
	}
}
