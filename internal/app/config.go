package app

import (
	"io"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of logLevel
	Debug bool

	// Custom configuration path (optional)
	// When empty, ~/.config/kubeop is used
	ConfigPath string

	// LogOutput receives log lines (default: stderr)
	LogOutput io.Writer

	// Loaded configuration. Set it to skip loading config.yaml.
	KubeopConfig *config.KubeopConfig

	// Client to use instead of one built from the kubeconfig.
	Client client.WithWatch
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
