package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jobforge/internal/store"
)

var (
	renderUser string
	renderJob  string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the tailored resume PDF for one job",
	Long:  "Render the stored tailored resume to PDF. A current artifact is reused; a stale or missing one is regenerated.",
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderUser, "user", "", "user id owning the resume")
	renderCmd.Flags().StringVar(&renderJob, "job", "", "job key to render")
	renderCmd.MarkFlagRequired("user")
	renderCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
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

	engine, err := buildTailorEngine(cfg, st, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path, err := engine.Artifact(ctx, renderUser, renderJob)
	if err != nil {
		return fmt.Errorf("render artifact: %w", err)
	}
	fmt.Printf("pdf written to %s\n", path)
	return nil
}
