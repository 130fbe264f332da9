package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"

	"kubeop/internal/watch"
)

func TestSetVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion("1.2.3-test")

	if GetVersion() != "1.2.3-test" {
		t.Errorf("Expected version to be 1.2.3-test, got %s", GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "kubeop" {
		t.Errorf("Expected Use to be 'kubeop', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	for _, flag := range []string{"debug", "config-path"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("Expected persistent flag --%s", flag)
		}
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "kubeop version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	if buf.String() != "kubeop version 1.0.0\n" {
		t.Errorf("Expected version output %q, got %q", "kubeop version 1.0.0\n", buf.String())
	}
}

func TestSubcommands(t *testing.T) {
	foundCommands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range []string{"version", "run", "wait", "selector", "status"} {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"generic", errors.New("boom"), ExitCodeError},
		{"timeout", &watch.TimeoutError{Resource: "Pod default/web"}, ExitCodeTimeout},
		{"wrapped timeout", fmt.Errorf("wait: %w", &watch.TimeoutError{Resource: "Pod default/web"}), ExitCodeTimeout},
		{"disconnect", &watch.DisconnectError{Resource: "Pod default/web"}, ExitCodeDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
