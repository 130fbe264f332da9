package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"kubeop/internal/app"
	"kubeop/internal/formatting"
)

var (
	statusNamespace     string
	statusAllNamespaces bool
	statusOutputFormat  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Workers and the state of their pods",
	Long: `Lists Workers with the phase, readiness and pod IP that the worker
operator mirrored from their pods.`,
	Example: `  kubeop status -n jobs
  kubeop status -A -o table`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(statusOutputFormat)
	if err != nil {
		return err
	}

	cfg := newClientConfig()
	if err := app.Connect(cfg); err != nil {
		return err
	}

	namespace := statusNamespace
	if statusAllNamespaces {
		namespace = ""
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	list, err := app.ListWorkerStatus(ctx, cfg.Client, namespace)
	if err != nil {
		return err
	}

	return formatting.NewFormatter(formatting.Options{
		Format: format,
		Out:    cmd.OutOrStdout(),
		Color:  format == formatting.FormatTable,
	}).FormatData(list)
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusNamespace, "namespace", "n", "default", "Namespace to list")
	statusCmd.Flags().BoolVarP(&statusAllNamespaces, "all-namespaces", "A", false, "List Workers in all namespaces")
	statusCmd.Flags().StringVarP(&statusOutputFormat, "output", "o", "text", "Output format (text, json, yaml, table)")
}
