package source

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

const (
	defaultAdzunaBaseURL = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize       = 50
	adzunaMaxPages       = 3 // max 150 results per query
)

// AdzunaAdapter fetches postings from the Adzuna public search API.
type AdzunaAdapter struct {
	baseURL string
	appID   string
	appKey  string
	country string // "us", "gb", "de", ...
	client  *http.Client
}

// NewAdzunaAdapter constructs an adapter with a shared HTTP client.
func NewAdzunaAdapter(appID, appKey, country string, client *http.Client) *AdzunaAdapter {
	return &AdzunaAdapter{
		baseURL: defaultAdzunaBaseURL,
		appID:   appID,
		appKey:  appKey,
		country: country,
		client:  client,
	}
}

func (a *AdzunaAdapter) Name() string { return "adzuna" }

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaCompany  `json:"company"`
	Location     adzunaLocation `json:"location"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
	ContractType string         `json:"contract_type"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
	Area        []string `json:"area"` // country down to locality
}

// Fetch pages through search results until the query's cap, an empty page,
// or adzunaMaxPages is reached.
func (a *AdzunaAdapter) Fetch(ctx context.Context, q Query) ([]model.RawPosting, error) {
	if a.appID == "" || a.appKey == "" {
		return nil, fmt.Errorf("adzuna fetch: missing app_id/app_key credentials")
	}

	wanted := q.ResultsWanted
	if wanted <= 0 {
		wanted = adzunaPageSize * adzunaMaxPages
	}

	var postings []model.RawPosting
	for page := 1; page <= adzunaMaxPages; page++ {
		batch, err := a.fetchPage(ctx, q, page)
		if err != nil {
			return nil, fmt.Errorf("adzuna fetch page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		postings = append(postings, batch...)
		if len(postings) >= wanted {
			postings = postings[:wanted]
			break
		}
		if len(batch) < adzunaPageSize {
			break // last page
		}
	}

	return postings, nil
}

func (a *AdzunaAdapter) fetchPage(ctx context.Context, q Query, page int) ([]model.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", a.baseURL, a.country, page)

	params := url.Values{}
	params.Set("app_id", a.appID)
	params.Set("app_key", a.appKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	params.Set("what", q.Term)
	if q.Location != "" {
		params.Set("where", q.Location)
	}
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var apiResp adzunaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	postings := make([]model.RawPosting, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		p := model.RawPosting{
			Source:      a.Name(),
			ExternalID:  r.ID,
			JobURL:      r.RedirectURL,
			Title:       r.Title,
			Employer:    r.Company.DisplayName,
			Description: r.Description,
			JobType:     contractJobType(r.ContractTime, r.ContractType),
		}
		p.LocationCity, p.LocationState, p.LocationCountry = adzunaArea(r.Location)

		if r.SalaryMin > 0 {
			min := r.SalaryMin
			p.CompMin = &min
			p.CompInterval = "yearly"
		}
		if r.SalaryMax > 0 {
			max := r.SalaryMax
			p.CompMax = &max
			p.CompInterval = "yearly"
		}

		if r.Created != "" {
			if t, err := time.Parse(time.RFC3339, r.Created); err == nil {
				p.PostedAt = &t
			}
		}

		postings = append(postings, p)
	}

	return postings, nil
}

// adzunaArea maps Adzuna's hierarchical area list (country first, locality
// last) onto city/state/country fields, falling back to the display name.
func adzunaArea(loc adzunaLocation) (city, state, country string) {
	switch len(loc.Area) {
	case 0:
		return splitLocation(loc.DisplayName)
	case 1:
		return "", "", loc.Area[0]
	case 2:
		return loc.Area[1], "", loc.Area[0]
	default:
		return loc.Area[len(loc.Area)-1], loc.Area[1], loc.Area[0]
	}
}

// contractJobType folds Adzuna's contract_time/contract_type pair into one
// job-type string.
func contractJobType(contractTime, contractType string) string {
	switch {
	case contractType == "contract":
		return "contract"
	case contractTime == "full_time":
		return "fulltime"
	case contractTime == "part_time":
		return "parttime"
	default:
		return ""
	}
}
