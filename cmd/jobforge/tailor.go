package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jobforge/internal/model"
	"jobforge/internal/store"
)

var (
	tailorUser       string
	tailorJob        string
	tailorRegenerate bool
)

var tailorCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Tailor the base resume to one job",
	Long:  "Generate a tailored resume document for a job and render it to PDF. Without --regenerate an existing tailored resume is kept.",
	RunE:  runTailor,
}

func init() {
	tailorCmd.Flags().StringVar(&tailorUser, "user", "", "user id owning the resume")
	tailorCmd.Flags().StringVar(&tailorJob, "job", "", "job key to tailor for")
	tailorCmd.Flags().BoolVar(&tailorRegenerate, "regenerate", false, "discard an existing tailored resume and generate a new one")
	tailorCmd.MarkFlagRequired("user")
	tailorCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(tailorCmd)
}

func runTailor(cmd *cobra.Command, args []string) error {
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

	if !tailorRegenerate {
		existing, err := st.GetTailoredResume(ctx, tailorUser, tailorJob)
		if err != nil {
			return err
		}
		if existing != nil {
			fmt.Printf("tailored resume already exists (version %s), use --regenerate to replace it\n", existing.VersionID)
			return nil
		}
	}

	job, err := st.GetJob(ctx, tailorJob)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("unknown job key %q", tailorJob)
	}

	fields, err := st.GetExtractedFields(ctx, tailorJob)
	if err != nil {
		return err
	}
	var company *model.Company
	if job.EmployerProfileURL != "" {
		company, err = st.GetCompany(ctx, job.EmployerProfileURL)
		if err != nil {
			return err
		}
	}

	profile, err := loadProfile(cfg, tailorUser)
	if err != nil {
		return err
	}

	engine, err := buildTailorEngine(cfg, st, logger)
	if err != nil {
		return err
	}

	resume, err := engine.Tailor(ctx, profile, *job, fields, company)
	if err != nil {
		return fmt.Errorf("tailor resume: %w", err)
	}
	fmt.Printf("tailored resume generated (version %s)\n", resume.VersionID)

	path, err := engine.Artifact(ctx, tailorUser, tailorJob)
	if err != nil {
		return fmt.Errorf("render artifact: %w", err)
	}
	fmt.Printf("pdf written to %s\n", path)
	return nil
}
