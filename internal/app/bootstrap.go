package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"kubeop/internal/config"
	"kubeop/internal/kube"
	"kubeop/pkg/logging"
)

// Application represents the main application structure that bootstraps and runs kubeop.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initialises logging and creates the
// services. It fails if the configuration is invalid, the cluster cannot be
// reached or an operator cannot be built.
func NewApplication(cfg *Config) (*Application, error) {
	if err := Connect(cfg); err != nil {
		return nil, err
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Connect loads the configuration, initialises logging and creates a
// cluster client unless cfg already carries one. Commands that only need a
// client call it directly instead of NewApplication.
func Connect(cfg *Config) error {
	if err := loadConfig(cfg); err != nil {
		return err
	}
	initLogging(cfg)

	if cfg.Client != nil {
		return nil
	}

	restConfig, err := kube.GetRestConfig()
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load Kubernetes configuration")
		return fmt.Errorf("failed to load Kubernetes configuration: %w", err)
	}
	c, err := kube.NewClient(restConfig, kube.NewScheme())
	if err != nil {
		return err
	}
	cfg.Client = c
	logging.Debug("Bootstrap", "Connected to %s", restConfig.Host)
	return nil
}

// Services returns the initialised services.
func (a *Application) Services() *Services {
	return a.services
}

// Run executes the application until ctx is done, a signal arrives or an
// operator fails.
func (a *Application) Run(ctx context.Context) error {
	return run(ctx, a.config, a.services)
}

func loadConfig(cfg *Config) error {
	if cfg.KubeopConfig != nil {
		return nil
	}

	path := cfg.ConfigPath
	if path == "" {
		path = config.GetDefaultConfigPathOrPanic()
	}

	kubeopCfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load kubeop configuration from %s: %w", path, err)
	}
	cfg.KubeopConfig = &kubeopCfg
	return nil
}

func initLogging(cfg *Config) {
	level, err := logging.ParseLevel(cfg.KubeopConfig.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}

	var output io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		output = cfg.LogOutput
	}

	logging.Init(level, logging.Format(cfg.KubeopConfig.LogFormat), output)
}
