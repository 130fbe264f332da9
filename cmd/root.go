package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"kubeop/internal/watch"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeTimeout indicates a wait did not finish within its timeout.
	ExitCodeTimeout = 2
	// ExitCodeDisconnected indicates the API server closed a watch unexpectedly.
	ExitCodeDisconnected = 3
)

// Persistent flags shared by every subcommand.
var (
	rootDebug      bool
	rootConfigPath string
)

// rootCmd represents the base command for the kubeop application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kubeop",
	Short: "Declarative operators and watch helpers for Kubernetes",
	Long: `kubeop runs declarative parent/child operators against a Kubernetes
cluster and provides commands to wait on resource state and to inspect
how predicates compile to field and label selectors.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kubeop version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, watch.ErrTimeout):
		return ExitCodeTimeout
	case errors.Is(err, watch.ErrServerDisconnected):
		return ExitCodeDisconnected
	default:
		return ExitCodeError
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", "", "Configuration directory (default: ~/.config/kubeop)")
}
