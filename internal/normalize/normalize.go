// Package normalize maps raw source postings into the canonical job schema.
// Normalize is a pure function: identical input always yields an identical
// CanonicalJob, which is what makes re-scrapes idempotent downstream.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"jobforge/internal/model"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// ExtractText converts an HTML or HTML-encoded string to plain text.
// It first unescapes entities (handles double-encoded board APIs; no-op on
// already-real HTML), strips all tags, then collapses whitespace.
func ExtractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, "")
	return strings.Join(strings.Fields(plain), " ")
}

// Normalize converts a RawPosting into a CanonicalJob with its identity key
// computed. It returns an error only for postings too incomplete to identify
// (no URL and no title/employer to fingerprint).
func Normalize(raw model.RawPosting) (model.CanonicalJob, error) {
	title := collapse(raw.Title)
	employer := collapse(raw.Employer)
	jobURL := CanonicalURL(raw.JobURL)

	job := model.CanonicalJob{
		Source:             raw.Source,
		JobURL:             jobURL,
		Title:              title,
		Employer:           employer,
		EmployerProfileURL: CanonicalURL(raw.EmployerProfileURL),
		Description:        ExtractText(raw.Description),
		LocationCity:       collapse(raw.LocationCity),
		LocationState:      collapse(raw.LocationState),
		LocationCountry:    collapse(raw.LocationCountry),
		CompMin:            raw.CompMin,
		CompMax:            raw.CompMax,
		CompCurrency:       strings.ToUpper(strings.TrimSpace(raw.CompCurrency)),
		CompInterval:       strings.ToLower(strings.TrimSpace(raw.CompInterval)),
		IsRemote:           raw.IsRemote,
		JobType:            strings.ToLower(strings.TrimSpace(raw.JobType)),
		PostedAt:           raw.PostedAt,
		ExtractionStatus:   model.ExtractionPending,
	}

	key, err := identityKey(job)
	if err != nil {
		return model.CanonicalJob{}, err
	}
	job.Key = key
	return job, nil
}

// identityKey computes the dedup key. The job URL alone identifies a posting
// when present: the same URL scraped through two different sources is one
// job. Without a URL, a fingerprint over source, title, employer and
// location stands in.
func identityKey(job model.CanonicalJob) (string, error) {
	if job.JobURL != "" {
		return "url:" + job.JobURL, nil
	}
	if job.Title == "" || job.Employer == "" {
		return "", fmt.Errorf("posting from %s has no URL and too few fields to fingerprint", job.Source)
	}
	h := sha256.Sum256([]byte(strings.Join([]string{
		job.Source,
		strings.ToLower(job.Title),
		strings.ToLower(job.Employer),
		strings.ToLower(job.Location()),
	}, "|")))
	return "fp:" + hex.EncodeToString(h[:]), nil
}

// trackingParams are query parameters stripped during URL normalization so
// that the same listing reached via different campaigns dedupes to one key.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"ref":          true,
	"refid":        true,
	"trk":          true,
}

// CanonicalURL normalizes a URL for use as an identity key: lowercases the
// scheme and host, drops fragments and tracking parameters, and trims the
// trailing slash. Returns "" for empty or unparseable input.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
