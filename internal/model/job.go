package model

import (
	"time"
)

// RawPosting is a job listing as delivered by a source adapter, before
// normalization. It is discarded once a CanonicalJob has been derived.
type RawPosting struct {
	Source             string // source adapter name
	ExternalID         string // source-native identifier
	JobURL             string // direct listing link, may be empty
	Title              string
	Employer           string
	EmployerProfileURL string // link to the employer's profile page, may be empty
	Description        string // free text, possibly HTML
	LocationCity       string
	LocationState      string
	LocationCountry    string
	CompMin            *float64
	CompMax            *float64
	CompCurrency       string
	CompInterval       string // "yearly", "hourly", ...
	IsRemote           *bool
	JobType            string // "fulltime", "contract", ...
	PostedAt           *time.Time
}

// ExtractionStatus tracks whether structured fields have been derived from a
// job's description.
type ExtractionStatus string

const (
	ExtractionPending ExtractionStatus = "pending"
	ExtractionDone    ExtractionStatus = "extracted"
	ExtractionFailed  ExtractionStatus = "extraction_failed"
)

// EnrichmentStatus tracks whether a company has been enriched from the
// external profile service.
type EnrichmentStatus string

const (
	EnrichmentNone   EnrichmentStatus = "unenriched"
	EnrichmentDone   EnrichmentStatus = "enriched"
	EnrichmentFailed EnrichmentStatus = "enrichment_failed"
)

// CanonicalJob is the deduplicated, normalized representation of a posting.
// Key is the identity key: the normalized job URL when the source provides
// one, otherwise a fingerprint hash over (source, title, employer, location).
type CanonicalJob struct {
	Key                string
	Source             string
	JobURL             string
	Title              string
	Employer           string
	EmployerProfileURL string // normalized; identity key of the Company, "" if unknown
	Description        string
	LocationCity       string
	LocationState      string
	LocationCountry    string
	CompMin            *float64
	CompMax            *float64
	CompCurrency       string
	CompInterval       string
	IsRemote           *bool
	JobType            string
	PostedAt           *time.Time
	ExtractionStatus   ExtractionStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Location renders the job's location fields as a single display string.
func (j CanonicalJob) Location() string {
	out := ""
	for _, p := range []string{j.LocationCity, j.LocationState, j.LocationCountry} {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}

// Company is an employer record, keyed by the normalized profile URL.
// At most one row exists per profile URL; enrichment overwrites in place.
type Company struct {
	ProfileURL       string // identity key
	Name             string
	Description      string
	Website          string
	Industry         string
	SizeMin          *int
	SizeMax          *int
	HQCity           string
	HQState          string
	HQCountry        string
	CompanyType      string
	FoundedYear      *int
	Tagline          string
	Specialities     []string
	EnrichmentStatus EnrichmentStatus
	LastEnrichedAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CompanyProfile is the payload returned by the external profile service.
type CompanyProfile struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Website      string   `json:"website,omitempty"`
	Industry     string   `json:"industry,omitempty"`
	SizeMin      *int     `json:"size_min,omitempty"`
	SizeMax      *int     `json:"size_max,omitempty"`
	HQCity       string   `json:"hq_city,omitempty"`
	HQState      string   `json:"hq_state,omitempty"`
	HQCountry    string   `json:"hq_country,omitempty"`
	CompanyType  string   `json:"company_type,omitempty"`
	FoundedYear  *int     `json:"founded_year,omitempty"`
	Tagline      string   `json:"tagline,omitempty"`
	Specialities []string `json:"specialities,omitempty"`
}

// EnrichmentCacheEntry is a cached profile-service result. Negative lookups
// (NotFound) are cached too, with a longer TTL, so repeated scrapes do not
// re-bill dead profile URLs.
type EnrichmentCacheEntry struct {
	Key       string // Company identity key
	Profile   *CompanyProfile
	NotFound  bool
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the entry's TTL has lapsed at the given instant.
func (e EnrichmentCacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// ExtractedFields is the structured field set derived from a job
// description. Exactly one current row exists per job; re-extraction
// overwrites it. Pointer fields are nil when the source text does not state
// the value; absent fields are never guessed.
type ExtractedFields struct {
	JobKey            string    `json:"-"`
	Version           string    `json:"-"` // regenerated on every extraction attempt
	RequiredSkills    []string  `json:"required_skills"`
	PreferredSkills   []string  `json:"preferred_skills"`
	Responsibilities  []string  `json:"responsibilities"`
	Technologies      []string  `json:"technologies"`
	Benefits          []string  `json:"benefits"`
	Seniority         *string   `json:"seniority"`
	YearsExperience   *int      `json:"years_experience"`
	Remote            *bool     `json:"remote"`
	ContractFeasible  *bool     `json:"contract_feasible"`
	RelocationNeeded  *bool     `json:"relocation_required"`
	ScreeningRequired *bool     `json:"screening_required"`
	CompanySize       *string   `json:"company_size"`
	SpecificLocations []string  `json:"specific_locations"`
	SalaryMin         *float64  `json:"salary_min"`
	SalaryMax         *float64  `json:"salary_max"`
	SalaryCurrency    *string   `json:"salary_currency"`
	Valid             bool      `json:"-"` // schema validation passed
	FitCategory       string    `json:"-"` // cached model-predicate result, "" if not evaluated
	ExtractedAt       time.Time `json:"-"`
}

// PredicateResult is a single predicate's verdict.
type PredicateResult string

const (
	PredicatePass    PredicateResult = "pass"
	PredicateFail    PredicateResult = "fail"
	PredicateAbstain PredicateResult = "abstain"
)

// PredicateOutcome records one predicate's verdict for explainability.
type PredicateOutcome struct {
	Name   string          `json:"name"`
	Result PredicateResult `json:"result"`
	Reason string          `json:"reason,omitempty"`
}

// FilterDecision classifies a job as visible or hidden. The decision is the
// AND over all non-abstaining predicates; the failing predicate is retained.
type FilterDecision struct {
	JobKey          string
	Visible         bool
	FailedPredicate string // "" when visible
	Outcomes        []PredicateOutcome
	DecidedAt       time.Time
}

// ArtifactStatus tracks the rendered document derived from a tailored
// resume's structured content.
type ArtifactStatus string

const (
	ArtifactNotGenerated ArtifactStatus = "not_generated"
	ArtifactGenerated    ArtifactStatus = "generated"
	ArtifactStale        ArtifactStatus = "stale"
)

// ResumeDocument is a JSON-Resume-shaped structured document. It stays
// schemaless here because tailoring must preserve whatever top-level
// structure the candidate's base profile carries.
type ResumeDocument map[string]any

// TailoredResume is a resume document tailored for one (user, job) pair.
// The pair is the identity key; regeneration overwrites the row.
type TailoredResume struct {
	UserID         string
	JobKey         string
	VersionID      string // fresh per generation
	Document       ResumeDocument
	ArtifactStatus ArtifactStatus
	ArtifactPath   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CandidateProfile is a candidate's base profile: identity plus the
// JSON-Resume document that tailoring is allowed to draw facts from.
type CandidateProfile struct {
	UserID   string
	Document ResumeDocument
}
