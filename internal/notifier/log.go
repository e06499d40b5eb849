// Package notifier announces finished runs: a summary plus the jobs that
// just became visible.
package notifier

import (
	"context"
	"log/slog"

	"jobforge/internal/pipeline"
)

// Notifier receives the outcome of one pipeline run.
type Notifier interface {
	Notify(ctx context.Context, summary pipeline.RunSummary) error
}

// Ensure LogNotifier implements Notifier.
var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes the run outcome to the given logger as structured
// messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the summary and one line per newly visible job.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, s pipeline.RunSummary) error {
	n.logger.Info("run summary",
		"run_id", s.RunID,
		"fetched", s.Fetched,
		"inserted", s.Inserted,
		"updated", s.Updated,
		"unchanged", s.Unchanged,
		"enriched", s.Enriched,
		"extracted", s.Extracted,
		"visible", s.Visible,
		"hidden", s.Hidden,
		"failures", len(s.Failures),
	)
	for _, j := range s.NewlyVisible {
		args := []any{"employer", j.Employer, "title", j.Title, "location", j.Location(), "url", j.JobURL}
		if j.PostedAt != nil {
			args = append(args, "posted_at", *j.PostedAt)
		}
		n.logger.Info("new job", args...)
	}
	return nil
}
