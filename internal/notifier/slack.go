package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jobforge/internal/model"
	"jobforge/internal/pipeline"
)

// Ensure SlackNotifier implements Notifier.
var _ Notifier = (*SlackNotifier)(nil)

// SlackNotifier posts the run summary and each newly visible job to a Slack
// channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify sends one summary message followed by one message per newly visible
// job, using Block Kit. Returns an error only if ALL messages fail.
// Individual failures are logged.
func (s *SlackNotifier) Notify(ctx context.Context, sum pipeline.RunSummary) error {
	payloads := []slackPayload{buildSummaryPayload(sum)}
	for _, j := range sum.NewlyVisible {
		payloads = append(payloads, buildJobPayload(j))
	}

	failures := 0
	for i, p := range payloads {
		if i > 0 {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := s.sendMessage(ctx, p); err != nil {
			s.logger.Error("slack notification failed", "error", err)
			failures++
		}
	}

	sent := len(payloads) - failures
	if failures == len(payloads) {
		return fmt.Errorf("all %d slack notifications failed", failures)
	}
	s.logger.Info("slack notifications complete", "sent", sent, "failed", failures)
	return nil
}

func (s *SlackNotifier) sendMessage(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.post(ctx, body)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		select {
		case <-time.After(time.Duration(secs) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}

		resp2, err := s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.httpClient.Do(req)
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func buildSummaryPayload(sum pipeline.RunSummary) slackPayload {
	counts := fmt.Sprintf("*Fetched:* %d   *New:* %d   *Updated:* %d   *Unchanged:* %d",
		sum.Fetched, sum.Inserted, sum.Updated, sum.Unchanged)
	outcome := fmt.Sprintf("*Visible:* %d   *Hidden:* %d   *Failures:* %d",
		sum.Visible, sum.Hidden, len(sum.Failures))

	return slackPayload{Blocks: []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("📋 Run complete: %d new visible jobs", len(sum.NewlyVisible))},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: counts + "\n" + outcome},
		},
		{Type: "divider"},
	}}
}

func buildJobPayload(j model.CanonicalJob) slackPayload {
	postedText := "Just detected"
	if j.PostedAt != nil {
		postedText = j.PostedAt.Format(time.RFC1123)
	}

	employer := capitalize(j.Employer)
	source := capitalize(j.Source)

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🚀 " + employer + ": " + j.Title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Company:*\n" + employer},
				{Type: "mrkdwn", Text: "*Location:*\n" + j.Location()},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Posted:*\n" + postedText},
				{Type: "mrkdwn", Text: "*Source:*\n" + source},
			},
		},
	}

	if j.CompMin != nil && j.CompMax != nil {
		interval := j.CompInterval
		if interval == "" {
			interval = "yearly"
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Compensation:* %.0f – %.0f (%s)", *j.CompMin, *j.CompMax, interval)},
		})
	}

	if j.JobURL != "" {
		blocks = append(blocks, slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "Apply Now"},
					URL:   j.JobURL,
					Style: "primary",
				},
			},
		})
	}
	blocks = append(blocks, slackBlock{Type: "divider"})

	return slackPayload{Blocks: blocks}
}

// SendTestMessage sends a dummy summary to verify the integration works.
func SendTestMessage(ctx context.Context, n Notifier) error {
	now := time.Now()
	job := model.CanonicalJob{
		Key:          "test-001",
		Source:       "test",
		Title:        "Test Notification: Integration Verified",
		Employer:     "Jobforge Test",
		LocationCity: "Everywhere",
		JobURL:       "https://example.com/jobs",
		PostedAt:     &now,
	}
	return n.Notify(ctx, pipeline.RunSummary{
		RunID:        "test",
		Fetched:      1,
		Inserted:     1,
		Visible:      1,
		NewlyVisible: []model.CanonicalJob{job},
	})
}
