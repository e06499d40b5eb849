// Package source holds the listing-source adapters. Each adapter speaks one
// external board API and emits raw postings; normalization happens later, so
// adapters stay dumb about identity and dedup.
package source

import (
	"context"
	"strconv"
	"time"

	"jobforge/internal/model"
)

// Query is a single search request against a listing source.
type Query struct {
	Term          string // e.g. "backend engineer"
	Location      string // e.g. "Berlin", may be empty
	ResultsWanted int    // soft cap; 0 means the adapter's default
}

// Adapter fetches raw postings from one listing source.
type Adapter interface {
	// Name identifies the source, e.g. "greenhouse". Used as the
	// RawPosting.Source value and as the rate-limiter key.
	Name() string

	// Fetch runs the query against the source. Errors carry
	// *model.HTTPError where an HTTP status is known, so retry logic can
	// classify them.
	Fetch(ctx context.Context, q Query) ([]model.RawPosting, error)
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
