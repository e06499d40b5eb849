package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"jobforge/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a test notification",
	Long:  "Send a dummy run summary through the configured notifier to verify the integration.",
	RunE:  runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	n := setupNotifier(cfg, &http.Client{Timeout: 30 * time.Second}, logger)
	if err := notifier.SendTestMessage(context.Background(), n); err != nil {
		return fmt.Errorf("test notification failed: %w", err)
	}
	fmt.Println("test notification sent")
	return nil
}
