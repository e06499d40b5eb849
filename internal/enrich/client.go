// Package enrich resolves company profile URLs against an external profile
// service and applies the results to stored companies. Lookups are
// coordinated so each profile URL has at most one request in flight, and
// results (including not-found) are cached with TTLs because the service
// bills per call.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"jobforge/internal/model"
)

// ProfileClient looks up one company profile. Returns
// model.ErrProfileNotFound when the service has no record for the URL.
type ProfileClient interface {
	Lookup(ctx context.Context, profileURL string) (*model.CompanyProfile, error)
}

// HTTPProfileClient calls a Proxycurl-style company endpoint.
type HTTPProfileClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPProfileClient creates a client for the profile service.
func NewHTTPProfileClient(baseURL, apiKey string, httpClient *http.Client) *HTTPProfileClient {
	return &HTTPProfileClient{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

// profileResponse mirrors the service's company payload.
type profileResponse struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Website      string   `json:"website"`
	Industry     string   `json:"industry"`
	CompanySize  []*int   `json:"company_size"` // [min, max], either may be null
	HQ           *hq      `json:"hq"`
	CompanyType  string   `json:"company_type"`
	FoundedYear  *int     `json:"founded_year"`
	Tagline      string   `json:"tagline"`
	Specialities []string `json:"specialities"`
}

type hq struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Lookup fetches the profile for one company URL. A 404 means the service
// has no record: permanent, never retried.
func (c *HTTPProfileClient) Lookup(ctx context.Context, profileURL string) (*model.CompanyProfile, error) {
	endpoint := c.baseURL + "/api/linkedin/company?url=" + url.QueryEscape(profileURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("profile lookup for %s: %w", profileURL, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile lookup for %s: %w", profileURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("profile lookup for %s: %w", profileURL, model.ErrProfileNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("profile lookup for %s: unexpected status %d: %s", profileURL, resp.StatusCode, body),
		}
	}

	var pr profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("profile lookup for %s: %w", profileURL, err)
	}

	p := &model.CompanyProfile{
		Name:         pr.Name,
		Description:  pr.Description,
		Website:      pr.Website,
		Industry:     pr.Industry,
		CompanyType:  pr.CompanyType,
		FoundedYear:  pr.FoundedYear,
		Tagline:      pr.Tagline,
		Specialities: pr.Specialities,
	}
	if len(pr.CompanySize) > 0 {
		p.SizeMin = pr.CompanySize[0]
	}
	if len(pr.CompanySize) > 1 {
		p.SizeMax = pr.CompanySize[1]
	}
	if pr.HQ != nil {
		p.HQCity, p.HQState, p.HQCountry = pr.HQ.City, pr.HQ.State, pr.HQ.Country
	}
	return p, nil
}

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
