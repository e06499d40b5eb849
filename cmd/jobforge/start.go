package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jobforge/internal/scheduler"
	"jobforge/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scrape daemon",
	Long:  "Run the pipeline on the configured schedule; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("config loaded",
		"db", cfg.DBPath,
		"schedule", cfg.Pipeline.Schedule,
		"queries", len(cfg.Queries),
		"enrichment", cfg.Enrichment.Enabled,
		"llm", cfg.LLM.Enabled,
	)

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	p := buildPipeline(cfg, st, logger)
	n := setupNotifier(cfg, &http.Client{Timeout: 30 * time.Second}, logger)

	run := func(ctx context.Context) error {
		summary, err := p.Run(ctx)
		if err != nil {
			return err
		}
		return n.Notify(ctx, summary)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(cfg.Pipeline.Schedule, run, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler failed to start", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	sched.Stop()
	logger.Info("goodbye")
	return nil
}
