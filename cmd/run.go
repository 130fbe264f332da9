package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kubeop/internal/app"
)

// runCmd starts every enabled operator and blocks until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured operators until interrupted",
	Long: `Starts every enabled operator against the current cluster and keeps
them running until SIGINT or SIGTERM is received or one of them fails.

Configuration:
  kubeop loads config.yaml from ~/.config/kubeop, or from the directory
  given with --config-path. A missing file means defaults: the Worker
  operator watching all namespaces, no metrics endpoint.

  Example config.yaml:

    namespace: jobs
    metricsAddr: ":8080"
    operators:
      worker:
        parentSelector: self.metadata.labels["tier"] == "batch"
        labels:
          team: platform`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(rootDebug, rootConfigPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(runCmd)
}
