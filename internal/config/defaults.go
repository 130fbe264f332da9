package config

import "time"

const (
	// DefaultLogLevel is used when logLevel is not set.
	DefaultLogLevel = "info"

	// DefaultLogFormat is used when logFormat is not set.
	DefaultLogFormat = "text"

	// DefaultWaitTimeout bounds the wait commands when no timeout is given.
	DefaultWaitTimeout = 2 * time.Minute

	// DefaultWorkerOperatorName is the managed-by value of worker pods.
	DefaultWorkerOperatorName = "kubeop-worker"
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() KubeopConfig {
	return KubeopConfig{
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		WaitTimeout: DefaultWaitTimeout,
		Operators: OperatorsConfig{
			Worker: WorkerConfig{
				Name: DefaultWorkerOperatorName,
			},
		},
	}
}
