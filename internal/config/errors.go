package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Configuration error types.
const (
	ErrorTypeIO    = "io"
	ErrorTypeParse = "parse"
)

// ConfigurationError represents a structured error that occurs during configuration loading
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`    // Full path to the file that caused the error
	FileName    string   `json:"fileName"`    // Base name of the file
	ErrorType   string   `json:"errorType"`   // Type of error (parse, io)
	Message     string   `json:"message"`     // Human-readable error message
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error

	Err error `json:"-"`
}

// NewConfigurationError creates a configuration error for filePath.
func NewConfigurationError(filePath, errorType, message string, err error) *ConfigurationError {
	return &ConfigurationError{
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		ErrorType: errorType,
		Message:   message,
		Err:       err,
	}
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	if ce.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ce.FileName, ce.Message, ce.Err)
	}
	return fmt.Sprintf("%s: %s", ce.FileName, ce.Message)
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.Err
}

// DetailedError returns a detailed error message with all context
func (ce *ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error in %s", ce.FileName))
	parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Err != nil {
		parts = append(parts, fmt.Sprintf("  Details: %v", ce.Err))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}
