package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jobforge/internal/model"
	"jobforge/internal/normalize"
)

const defaultGreenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
// Content is the HTML-escaped description returned when content=true.
type greenhouseJob struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	Content     string             `json:"content"`
	UpdatedAt   string             `json:"updated_at"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches postings from one company's Greenhouse public
// board. The query term filters titles client-side: the boards API has no
// search parameter.
type GreenhouseAdapter struct {
	baseURL     string
	boardToken  string
	companyName string
	client      *http.Client
}

// NewGreenhouseAdapter creates an adapter for a Greenhouse board.
func NewGreenhouseAdapter(boardToken, companyName string, client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{
		baseURL:     defaultGreenhouseBaseURL,
		boardToken:  boardToken,
		companyName: companyName,
		client:      client,
	}
}

func (a *GreenhouseAdapter) Name() string { return "greenhouse" }

// Fetch retrieves the board's open postings, with descriptions, and keeps
// the ones whose title matches the query term.
func (a *GreenhouseAdapter) Fetch(ctx context.Context, q Query) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", a.baseURL, a.boardToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", a.boardToken, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", a.boardToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("greenhouse fetch for %s: unexpected status %d", a.boardToken, resp.StatusCode),
		}
	}

	var ghResp greenhouseResponse
	if err := json.NewDecoder(resp.Body).Decode(&ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", a.boardToken, err)
	}

	term := strings.ToLower(q.Term)
	postings := make([]model.RawPosting, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		if term != "" && !strings.Contains(strings.ToLower(gj.Title), term) {
			continue
		}

		p := model.RawPosting{
			Source:      a.Name(),
			ExternalID:  fmt.Sprintf("%d", gj.ID),
			JobURL:      gj.AbsoluteURL,
			Title:       gj.Title,
			Employer:    a.companyName,
			Description: normalize.ExtractText(gj.Content),
		}
		p.LocationCity, p.LocationState, p.LocationCountry = splitLocation(gj.Location.Name)

		if gj.UpdatedAt != "" {
			if t, err := time.Parse(time.RFC3339, gj.UpdatedAt); err == nil {
				p.PostedAt = &t
			}
		}

		postings = append(postings, p)
		if q.ResultsWanted > 0 && len(postings) >= q.ResultsWanted {
			break
		}
	}

	return postings, nil
}

// splitLocation breaks a free-form "City, State, Country" display string
// into its parts. Boards are loose about this format; missing trailing parts
// stay empty.
func splitLocation(display string) (city, state, country string) {
	parts := strings.Split(display, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 0:
		return "", "", ""
	case 1:
		return parts[0], "", ""
	case 2:
		return parts[0], parts[1], ""
	default:
		return parts[0], parts[1], parts[len(parts)-1]
	}
}
