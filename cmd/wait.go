package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kubeop/internal/app"
)

var (
	waitNamespace string
	waitTimeout   time.Duration
)

// newClientConfig builds the configuration of commands that only need a
// cluster client. Tests replace it to inject a fake.
var newClientConfig = func() *app.Config {
	return app.NewConfig(rootDebug, rootConfigPath)
}

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for a resource to reach a state",
	Long: `Blocks until a resource reaches the requested state, the timeout
expires or the API server closes the watch.

Exit codes:
  0  the state was reached
  1  the command failed
  2  the timeout expired
  3  the API server disconnected

Supported kinds: pod (po), worker (wk).`,
}

var waitDeletedCmd = &cobra.Command{
	Use:   "deleted KIND NAME",
	Short: "Wait until a resource no longer exists",
	Example: `  kubeop wait deleted pod web-0 -n default
  kubeop wait deleted worker batch --timeout 30s`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWait(cmd, func(ctx context.Context, cfg *app.Config, timeout time.Duration) error {
			return app.WaitDeleted(ctx, cfg.Client, args[0], waitNamespace, args[1], timeout)
		}, "%s %s deleted\n", args[0], args[1])
	},
}

var waitReadyCmd = &cobra.Command{
	Use:   "ready KIND NAME",
	Short: "Wait until a pod is ready or a worker reports Ready=True",
	Example: `  kubeop wait ready pod web-0 -n default
  kubeop wait ready worker batch --timeout 5m`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWait(cmd, func(ctx context.Context, cfg *app.Config, timeout time.Duration) error {
			return app.WaitReady(ctx, cfg.Client, args[0], waitNamespace, args[1], timeout)
		}, "%s %s ready\n", args[0], args[1])
	},
}

var waitEstablishedCmd = &cobra.Command{
	Use:     "established NAME",
	Short:   "Wait until a CustomResourceDefinition is established",
	Example: `  kubeop wait established workers.kubeop.io`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWait(cmd, func(ctx context.Context, cfg *app.Config, timeout time.Duration) error {
			return app.WaitEstablished(ctx, cfg.Client, args[0], timeout)
		}, "customresourcedefinition %s established\n", args[0])
	},
}

func runWait(cmd *cobra.Command, wait func(context.Context, *app.Config, time.Duration) error, doneFormat string, doneArgs ...any) error {
	cfg := newClientConfig()
	if err := app.Connect(cfg); err != nil {
		return err
	}

	timeout := waitTimeout
	if timeout <= 0 {
		timeout = cfg.KubeopConfig.WaitTimeout
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := wait(ctx, cfg, timeout); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), doneFormat, doneArgs...)
	return nil
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.AddCommand(waitDeletedCmd, waitReadyCmd, waitEstablishedCmd)

	waitCmd.PersistentFlags().StringVarP(&waitNamespace, "namespace", "n", "default", "Namespace of the resource")
	waitCmd.PersistentFlags().DurationVar(&waitTimeout, "timeout", 0, "Maximum time to wait (default: waitTimeout from config.yaml)")
}
