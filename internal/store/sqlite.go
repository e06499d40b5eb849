// Package store is the persistence gateway: a SQLite-backed single source of
// truth for jobs, companies, the enrichment cache, extraction results,
// filter decisions, and tailored resumes. Every write that could race is a
// single conditional upsert guarded by the row's identity key, so concurrent
// workers can never duplicate a row.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"jobforge/internal/model"
)

// UpsertOutcome reports what an upsert did to the row.
type UpsertOutcome string

const (
	Inserted  UpsertOutcome = "inserted"
	Updated   UpsertOutcome = "updated"
	Unchanged UpsertOutcome = "unchanged"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	key                  TEXT PRIMARY KEY,
	source               TEXT NOT NULL,
	job_url              TEXT,
	title                TEXT NOT NULL,
	employer             TEXT,
	employer_profile_url TEXT,
	description          TEXT,
	location_city        TEXT,
	location_state       TEXT,
	location_country     TEXT,
	comp_min             REAL,
	comp_max             REAL,
	comp_currency        TEXT,
	comp_interval        TEXT,
	is_remote            INTEGER,
	job_type             TEXT,
	posted_at            TEXT,
	extraction_status    TEXT NOT NULL DEFAULT 'pending',
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS companies (
	profile_url       TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	description       TEXT,
	website           TEXT,
	industry          TEXT,
	size_min          INTEGER,
	size_max          INTEGER,
	hq_city           TEXT,
	hq_state          TEXT,
	hq_country        TEXT,
	company_type      TEXT,
	founded_year      INTEGER,
	tagline           TEXT,
	specialities      TEXT,
	enrichment_status TEXT NOT NULL DEFAULT 'unenriched',
	last_enriched_at  TEXT,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrichment_cache (
	key        TEXT PRIMARY KEY,
	payload    TEXT,
	not_found  INTEGER NOT NULL DEFAULT 0,
	expires_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_fields (
	job_key      TEXT PRIMARY KEY,
	version      TEXT NOT NULL,
	payload      TEXT NOT NULL,
	valid        INTEGER NOT NULL,
	fit_category TEXT,
	extracted_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS filter_decisions (
	job_key          TEXT PRIMARY KEY,
	visible          INTEGER NOT NULL,
	failed_predicate TEXT,
	outcomes         TEXT NOT NULL,
	decided_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tailored_resumes (
	user_id         TEXT NOT NULL,
	job_key         TEXT NOT NULL,
	version_id      TEXT NOT NULL,
	document        TEXT NOT NULL,
	artifact_status TEXT NOT NULL DEFAULT 'not_generated',
	artifact_path   TEXT,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	PRIMARY KEY (user_id, job_key)
);
`

// Store is the SQLite persistence gateway.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and bootstraps the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite allows one writer; serializing through a single connection
	// turns would-be SQLITE_BUSY errors into queueing.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func storageErr(op string, err error) error {
	return &model.StorageError{Op: op, Err: err}
}

// --- Jobs ---

// UpsertJob inserts the job on first sighting of its identity key and
// updates only the mutable fields (description, compensation, posted date)
// on later sightings. The whole operation is one conditional statement:
// there is no check-then-insert window for concurrent workers to race
// through. Returns Unchanged when the incoming mutable fields match the
// stored row, leaving updated_at untouched.
func (s *Store) UpsertJob(ctx context.Context, job model.CanonicalJob) (UpsertOutcome, error) {
	now := time.Now().UTC()
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO jobs (
			key, source, job_url, title, employer, employer_profile_url,
			description, location_city, location_state, location_country,
			comp_min, comp_max, comp_currency, comp_interval,
			is_remote, job_type, posted_at, extraction_status, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET
			description   = excluded.description,
			comp_min      = excluded.comp_min,
			comp_max      = excluded.comp_max,
			comp_currency = excluded.comp_currency,
			comp_interval = excluded.comp_interval,
			posted_at     = excluded.posted_at,
			updated_at    = excluded.updated_at
		WHERE jobs.description   IS NOT excluded.description
		   OR jobs.comp_min      IS NOT excluded.comp_min
		   OR jobs.comp_max      IS NOT excluded.comp_max
		   OR jobs.comp_currency IS NOT excluded.comp_currency
		   OR jobs.comp_interval IS NOT excluded.comp_interval
		   OR jobs.posted_at     IS NOT excluded.posted_at
		RETURNING created_at, updated_at`,
		job.Key, job.Source, nullStr(job.JobURL), job.Title, nullStr(job.Employer),
		nullStr(job.EmployerProfileURL), nullStr(job.Description),
		nullStr(job.LocationCity), nullStr(job.LocationState), nullStr(job.LocationCountry),
		nullFloat(job.CompMin), nullFloat(job.CompMax),
		nullStr(job.CompCurrency), nullStr(job.CompInterval),
		nullBool(job.IsRemote), nullStr(job.JobType), nullTime(job.PostedAt),
		string(model.ExtractionPending), fmtTime(now), fmtTime(now),
	).Scan(&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict row matched and nothing differed: the DO UPDATE WHERE
		// clause suppressed the write, so RETURNING produced no row.
		return Unchanged, nil
	}
	if err != nil {
		return "", storageErr("upsert job "+job.Key, err)
	}
	if createdAt == updatedAt {
		return Inserted, nil
	}
	return Updated, nil
}

// GetJob fetches a job by identity key. Returns (nil, nil) when absent.
func (s *Store) GetJob(ctx context.Context, key string) (*model.CanonicalJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, source, job_url, title, employer, employer_profile_url,
		       description, location_city, location_state, location_country,
		       comp_min, comp_max, comp_currency, comp_interval,
		       is_remote, job_type, posted_at, extraction_status, created_at, updated_at
		FROM jobs WHERE key = ?`, key)

	var j model.CanonicalJob
	var jobURL, employer, profileURL, desc, city, state, country sql.NullString
	var currency, interval, jobType, postedAt sql.NullString
	var compMin, compMax sql.NullFloat64
	var isRemote sql.NullInt64
	var status, createdAt, updatedAt string

	err := row.Scan(&j.Key, &j.Source, &jobURL, &j.Title, &employer, &profileURL,
		&desc, &city, &state, &country,
		&compMin, &compMax, &currency, &interval,
		&isRemote, &jobType, &postedAt, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get job "+key, err)
	}

	j.JobURL = jobURL.String
	j.Employer = employer.String
	j.EmployerProfileURL = profileURL.String
	j.Description = desc.String
	j.LocationCity, j.LocationState, j.LocationCountry = city.String, state.String, country.String
	j.CompMin = floatPtr(compMin)
	j.CompMax = floatPtr(compMax)
	j.CompCurrency = currency.String
	j.CompInterval = interval.String
	j.IsRemote = boolPtr(isRemote)
	j.JobType = jobType.String
	j.PostedAt = timePtr(postedAt)
	j.ExtractionStatus = model.ExtractionStatus(status)
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

// SetExtractionStatus records the extraction lifecycle state for a job.
func (s *Store) SetExtractionStatus(ctx context.Context, key string, status model.ExtractionStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET extraction_status = ? WHERE key = ?`, string(status), key)
	if err != nil {
		return storageErr("set extraction status for "+key, err)
	}
	return nil
}

// --- Companies ---

// EnsureCompany creates the company row as unenriched on first sighting of
// its profile URL. A no-op if the row already exists, so concurrent workers
// discovering the same employer cannot duplicate it.
func (s *Store) EnsureCompany(ctx context.Context, profileURL, name string) error {
	now := fmtTime(time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (profile_url, name, enrichment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(profile_url) DO NOTHING`,
		profileURL, name, string(model.EnrichmentNone), now, now)
	if err != nil {
		return storageErr("ensure company "+profileURL, err)
	}
	return nil
}

// GetCompany fetches a company by profile URL. Returns (nil, nil) when absent.
func (s *Store) GetCompany(ctx context.Context, profileURL string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT profile_url, name, description, website, industry,
		       size_min, size_max, hq_city, hq_state, hq_country,
		       company_type, founded_year, tagline, specialities,
		       enrichment_status, last_enriched_at, created_at, updated_at
		FROM companies WHERE profile_url = ?`, profileURL)

	var c model.Company
	var desc, website, industry, hqCity, hqState, hqCountry sql.NullString
	var companyType, tagline, specialities, lastEnriched sql.NullString
	var sizeMin, sizeMax, founded sql.NullInt64
	var status, createdAt, updatedAt string

	err := row.Scan(&c.ProfileURL, &c.Name, &desc, &website, &industry,
		&sizeMin, &sizeMax, &hqCity, &hqState, &hqCountry,
		&companyType, &founded, &tagline, &specialities,
		&status, &lastEnriched, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get company "+profileURL, err)
	}

	c.Description = desc.String
	c.Website = website.String
	c.Industry = industry.String
	c.HQCity, c.HQState, c.HQCountry = hqCity.String, hqState.String, hqCountry.String
	c.CompanyType = companyType.String
	c.Tagline = tagline.String
	c.SizeMin = intPtr(sizeMin)
	c.SizeMax = intPtr(sizeMax)
	c.FoundedYear = intPtr(founded)
	if specialities.Valid && specialities.String != "" {
		if err := json.Unmarshal([]byte(specialities.String), &c.Specialities); err != nil {
			return nil, storageErr("decode specialities for "+profileURL, err)
		}
	}
	c.EnrichmentStatus = model.EnrichmentStatus(status)
	c.LastEnrichedAt = timePtr(lastEnriched)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// ApplyEnrichment overwrites the company's profile fields with fresh data
// and marks it enriched. Idempotent: re-running replaces, never appends.
func (s *Store) ApplyEnrichment(ctx context.Context, profileURL string, p model.CompanyProfile, enrichedAt time.Time) error {
	var specialities any
	if len(p.Specialities) > 0 {
		b, err := json.Marshal(p.Specialities)
		if err != nil {
			return storageErr("encode specialities for "+profileURL, err)
		}
		specialities = string(b)
	}
	name := p.Name
	if name == "" {
		name = "Unknown"
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE companies SET
			name = ?, description = ?, website = ?, industry = ?,
			size_min = ?, size_max = ?, hq_city = ?, hq_state = ?, hq_country = ?,
			company_type = ?, founded_year = ?, tagline = ?, specialities = ?,
			enrichment_status = ?, last_enriched_at = ?, updated_at = ?
		WHERE profile_url = ?`,
		name, nullStr(p.Description), nullStr(p.Website), nullStr(p.Industry),
		nullInt(p.SizeMin), nullInt(p.SizeMax),
		nullStr(p.HQCity), nullStr(p.HQState), nullStr(p.HQCountry),
		nullStr(p.CompanyType), nullInt(p.FoundedYear), nullStr(p.Tagline), specialities,
		string(model.EnrichmentDone), fmtTime(enrichedAt.UTC()), fmtTime(time.Now().UTC()),
		profileURL)
	if err != nil {
		return storageErr("apply enrichment for "+profileURL, err)
	}
	return nil
}

// MarkEnrichmentFailed flags the company without blocking later re-attempts.
func (s *Store) MarkEnrichmentFailed(ctx context.Context, profileURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE companies SET enrichment_status = ?, updated_at = ?
		WHERE profile_url = ?`,
		string(model.EnrichmentFailed), fmtTime(time.Now().UTC()), profileURL)
	if err != nil {
		return storageErr("mark enrichment failed for "+profileURL, err)
	}
	return nil
}

// --- Enrichment cache ---

// GetCacheEntry fetches the cached profile-service result for a company
// key. Returns (nil, nil) when absent. Expiry is the caller's concern.
func (s *Store) GetCacheEntry(ctx context.Context, key string) (*model.EnrichmentCacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, payload, not_found, expires_at, updated_at
		FROM enrichment_cache WHERE key = ?`, key)

	var e model.EnrichmentCacheEntry
	var payload sql.NullString
	var notFound int
	var expiresAt, updatedAt string
	err := row.Scan(&e.Key, &payload, &notFound, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get cache entry "+key, err)
	}
	e.NotFound = notFound == 1
	e.ExpiresAt = parseTime(expiresAt)
	e.UpdatedAt = parseTime(updatedAt)
	if payload.Valid && payload.String != "" {
		var p model.CompanyProfile
		if err := json.Unmarshal([]byte(payload.String), &p); err != nil {
			return nil, storageErr("decode cache entry "+key, err)
		}
		e.Profile = &p
	}
	return &e, nil
}

// PutCacheEntry replaces the cached result for a company key.
func (s *Store) PutCacheEntry(ctx context.Context, e model.EnrichmentCacheEntry) error {
	var payload any
	if e.Profile != nil {
		b, err := json.Marshal(e.Profile)
		if err != nil {
			return storageErr("encode cache entry "+e.Key, err)
		}
		payload = string(b)
	}
	notFound := 0
	if e.NotFound {
		notFound = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrichment_cache (key, payload, not_found, expires_at, updated_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			not_found = excluded.not_found,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		e.Key, payload, notFound, fmtTime(e.ExpiresAt.UTC()), fmtTime(time.Now().UTC()))
	if err != nil {
		return storageErr("put cache entry "+e.Key, err)
	}
	return nil
}

// --- Extraction results ---

// SaveExtractedFields overwrites the single current extraction row for a
// job. A fresh extraction invalidates any cached model-predicate result.
func (s *Store) SaveExtractedFields(ctx context.Context, f model.ExtractedFields) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return storageErr("encode extracted fields for "+f.JobKey, err)
	}
	valid := 0
	if f.Valid {
		valid = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO extracted_fields (job_key, version, payload, valid, fit_category, extracted_at)
		VALUES (?,?,?,?,NULL,?)
		ON CONFLICT(job_key) DO UPDATE SET
			version = excluded.version,
			payload = excluded.payload,
			valid = excluded.valid,
			fit_category = NULL,
			extracted_at = excluded.extracted_at`,
		f.JobKey, f.Version, string(payload), valid, fmtTime(f.ExtractedAt.UTC()))
	if err != nil {
		return storageErr("save extracted fields for "+f.JobKey, err)
	}
	return nil
}

// GetExtractedFields fetches the current extraction for a job.
// Returns (nil, nil) when the job has never been extracted.
func (s *Store) GetExtractedFields(ctx context.Context, jobKey string) (*model.ExtractedFields, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version, payload, valid, fit_category, extracted_at
		FROM extracted_fields WHERE job_key = ?`, jobKey)

	var version, payload, extractedAt string
	var valid int
	var fit sql.NullString
	err := row.Scan(&version, &payload, &valid, &fit, &extractedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get extracted fields for "+jobKey, err)
	}

	var f model.ExtractedFields
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return nil, storageErr("decode extracted fields for "+jobKey, err)
	}
	f.JobKey = jobKey
	f.Version = version
	f.Valid = valid == 1
	f.FitCategory = fit.String
	f.ExtractedAt = parseTime(extractedAt)
	return &f, nil
}

// SaveFitCategory caches the model-assisted predicate's verdict alongside
// the extraction it was computed from, so re-filtering skips the model call.
func (s *Store) SaveFitCategory(ctx context.Context, jobKey, category string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE extracted_fields SET fit_category = ? WHERE job_key = ?`, category, jobKey)
	if err != nil {
		return storageErr("save fit category for "+jobKey, err)
	}
	return nil
}

// --- Filter decisions ---

// SaveFilterDecision overwrites the decision for a job.
func (s *Store) SaveFilterDecision(ctx context.Context, d model.FilterDecision) error {
	outcomes, err := json.Marshal(d.Outcomes)
	if err != nil {
		return storageErr("encode filter decision for "+d.JobKey, err)
	}
	visible := 0
	if d.Visible {
		visible = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO filter_decisions (job_key, visible, failed_predicate, outcomes, decided_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(job_key) DO UPDATE SET
			visible = excluded.visible,
			failed_predicate = excluded.failed_predicate,
			outcomes = excluded.outcomes,
			decided_at = excluded.decided_at`,
		d.JobKey, visible, nullStr(d.FailedPredicate), string(outcomes), fmtTime(d.DecidedAt.UTC()))
	if err != nil {
		return storageErr("save filter decision for "+d.JobKey, err)
	}
	return nil
}

// GetFilterDecision fetches the stored decision. Returns (nil, nil) when the
// job has not been filtered yet.
func (s *Store) GetFilterDecision(ctx context.Context, jobKey string) (*model.FilterDecision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT visible, failed_predicate, outcomes, decided_at
		FROM filter_decisions WHERE job_key = ?`, jobKey)

	var visible int
	var failed sql.NullString
	var outcomes, decidedAt string
	err := row.Scan(&visible, &failed, &outcomes, &decidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get filter decision for "+jobKey, err)
	}

	d := model.FilterDecision{
		JobKey:          jobKey,
		Visible:         visible == 1,
		FailedPredicate: failed.String,
		DecidedAt:       parseTime(decidedAt),
	}
	if err := json.Unmarshal([]byte(outcomes), &d.Outcomes); err != nil {
		return nil, storageErr("decode filter decision for "+jobKey, err)
	}
	return &d, nil
}

// --- Tailored resumes ---

// SaveTailoredResume overwrites the (user, job) row with a freshly generated
// document. Any previously rendered artifact no longer matches, so the
// artifact status resets to not_generated and the path is cleared.
func (s *Store) SaveTailoredResume(ctx context.Context, r model.TailoredResume) error {
	doc, err := json.Marshal(r.Document)
	if err != nil {
		return storageErr("encode tailored resume for "+r.UserID+"/"+r.JobKey, err)
	}
	now := fmtTime(time.Now().UTC())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tailored_resumes (user_id, job_key, version_id, document, artifact_status, artifact_path, created_at, updated_at)
		VALUES (?,?,?,?,?,NULL,?,?)
		ON CONFLICT(user_id, job_key) DO UPDATE SET
			version_id = excluded.version_id,
			document = excluded.document,
			artifact_status = excluded.artifact_status,
			artifact_path = NULL,
			updated_at = excluded.updated_at`,
		r.UserID, r.JobKey, r.VersionID, string(doc),
		string(model.ArtifactNotGenerated), now, now)
	if err != nil {
		return storageErr("save tailored resume for "+r.UserID+"/"+r.JobKey, err)
	}
	return nil
}

// UpdateResumeDocument persists a manual edit to the structured document and
// marks the rendered artifact stale in the same statement, so the invariant
// "edited document ⇒ stale artifact" cannot be lost between two writes.
func (s *Store) UpdateResumeDocument(ctx context.Context, userID, jobKey string, doc model.ResumeDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return storageErr("encode tailored resume for "+userID+"/"+jobKey, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tailored_resumes
		SET document = ?, artifact_status = ?, updated_at = ?
		WHERE user_id = ? AND job_key = ?`,
		string(b), string(model.ArtifactStale), fmtTime(time.Now().UTC()), userID, jobKey)
	if err != nil {
		return storageErr("update tailored resume for "+userID+"/"+jobKey, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storageErr("update tailored resume for "+userID+"/"+jobKey, sql.ErrNoRows)
	}
	return nil
}

// SetArtifact records a freshly rendered artifact for the (user, job) pair.
func (s *Store) SetArtifact(ctx context.Context, userID, jobKey, path string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tailored_resumes
		SET artifact_status = ?, artifact_path = ?, updated_at = ?
		WHERE user_id = ? AND job_key = ?`,
		string(model.ArtifactGenerated), path, fmtTime(time.Now().UTC()), userID, jobKey)
	if err != nil {
		return storageErr("set artifact for "+userID+"/"+jobKey, err)
	}
	return nil
}

// GetTailoredResume fetches the (user, job) resume. Returns (nil, nil) when
// none has been generated.
func (s *Store) GetTailoredResume(ctx context.Context, userID, jobKey string) (*model.TailoredResume, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version_id, document, artifact_status, artifact_path, created_at, updated_at
		FROM tailored_resumes WHERE user_id = ? AND job_key = ?`, userID, jobKey)

	var r model.TailoredResume
	var doc, status, createdAt, updatedAt string
	var path sql.NullString
	err := row.Scan(&r.VersionID, &doc, &status, &path, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get tailored resume for "+userID+"/"+jobKey, err)
	}

	r.UserID = userID
	r.JobKey = jobKey
	r.ArtifactStatus = model.ArtifactStatus(status)
	r.ArtifactPath = path.String
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(doc), &r.Document); err != nil {
		return nil, storageErr("decode tailored resume for "+userID+"/"+jobKey, err)
	}
	return &r, nil
}

// --- scan/format helpers ---

func fmtTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(t.UTC())
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func boolPtr(v sql.NullInt64) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Int64 == 1
	return &b
}

func timePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseTime(v.String)
	return &t
}
