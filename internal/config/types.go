package config

import "time"

// KubeopConfig is the top-level configuration structure for kubeop.
type KubeopConfig struct {
	Namespace   string          `yaml:"namespace,omitempty"`   // Namespace to operate in (default: all namespaces)
	LogLevel    string          `yaml:"logLevel,omitempty"`    // debug, info, warn or error (default: info)
	LogFormat   string          `yaml:"logFormat,omitempty"`   // text or json (default: text)
	MetricsAddr string          `yaml:"metricsAddr,omitempty"` // Address for the Prometheus endpoint, empty disables it
	WaitTimeout time.Duration   `yaml:"waitTimeout,omitempty"` // Default timeout of the wait commands
	Operators   OperatorsConfig `yaml:"operators,omitempty"`
}

// OperatorsConfig holds the configuration of the built-in operators.
type OperatorsConfig struct {
	Worker WorkerConfig `yaml:"worker,omitempty"`
}

// WorkerConfig configures the Worker -> Pod operator.
type WorkerConfig struct {
	Disabled       bool              `yaml:"disabled,omitempty"`
	Name           string            `yaml:"name,omitempty"`           // Operator name, used as managed-by label value
	ParentSelector string            `yaml:"parentSelector,omitempty"` // CEL predicate restricting the Workers handled
	Labels         map[string]string `yaml:"labels,omitempty"`         // Extra labels for every pod
	DisableEvents  bool              `yaml:"disableEvents,omitempty"`  // Do not record Kubernetes Events on Workers
}
