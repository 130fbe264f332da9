package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"kubeop/pkg/logging"
)

const (
	userConfigDir  = ".config/kubeop"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath on top of the defaults and
// validates the result.
func LoadConfig(configPath string) (KubeopConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return KubeopConfig{}, NewConfigurationError(configFilePath, ErrorTypeIO, "failed to read configuration file", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		cfgErr := NewConfigurationError(configFilePath, ErrorTypeParse, "malformed YAML", err)
		cfgErr.Suggestions = []string{
			"Check indentation; YAML does not allow tabs",
			"Quote CEL predicates that contain ':' or '#'",
		}
		return KubeopConfig{}, cfgErr
	}

	if err := config.Validate(); err != nil {
		return KubeopConfig{}, fmt.Errorf("invalid configuration in %s: %w", configFilePath, err)
	}

	logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}
