package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"jobforge/internal/pipeline"
	"jobforge/internal/store"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape batch and exit",
	Long:  "Fetch all configured sources once, run the full pipeline, print a summary, and exit.",
	RunE:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var (
	summaryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(0, 1)

	summaryLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Width(22)

	summaryValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

func runScrape(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := buildPipeline(cfg, st, logger)
	summary, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	n := setupNotifier(cfg, &http.Client{Timeout: 30 * time.Second}, logger)
	if err := n.Notify(ctx, summary); err != nil {
		logger.Error("notification failed", "error", err)
	}

	fmt.Fprintln(os.Stdout, renderSummary(summary))
	return nil
}

func renderSummary(s pipeline.RunSummary) string {
	row := func(label string, value any) string {
		return summaryLabelStyle.Render(label) + summaryValueStyle.Render(fmt.Sprintf("%v", value))
	}

	lines := []string{
		row("Fetched", s.Fetched),
		row("Inserted", s.Inserted),
		row("Updated", s.Updated),
		row("Unchanged", s.Unchanged),
		row("Enriched", fmt.Sprintf("%d (%d failed)", s.Enriched, s.EnrichFailed)),
		row("Extracted", fmt.Sprintf("%d (%d failed, %d skipped)", s.Extracted, s.ExtractFailed, s.ExtractSkipped)),
		row("Visible", s.Visible),
		row("Hidden", s.Hidden),
		row("Newly visible", len(s.NewlyVisible)),
		row("Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)),
	}

	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	out := summaryTitleStyle.Render("Run "+s.RunID) + "\n" + summaryBoxStyle.Render(body)

	if len(s.Failures) > 0 {
		out += "\n" + failureStyle.Render(fmt.Sprintf("%d failures:", len(s.Failures)))
		for _, f := range s.Failures {
			out += "\n" + failureStyle.Render(fmt.Sprintf("  [%s] %s: %s", f.Stage, f.Key, f.Err))
		}
	}
	return out
}
