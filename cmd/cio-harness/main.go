package main

import (
	"fmt"
	"log"
	"os"

	"github.com/AtRiskMedia/cio-harness/internal/application/startup"
	"github.com/AtRiskMedia/cio-harness/pkg/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cio-harness",
		Short:         "Customer.io Pipelines test harness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newPageCmd())
	root.AddCommand(newIdentifyCmd())
	root.AddCommand(newTrackCmd())
	root.AddCommand(newWebhookCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the harness web server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := startup.Initialize(cfg); err != nil {
				return fmt.Errorf("application startup failed: %w", err)
			}
			log.Println("Application has shut down gracefully.")
			return nil
		},
	}
}
