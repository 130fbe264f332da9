package config

import (
	"fmt"
	"net"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"kubeop/internal/selector"
	"kubeop/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks the configuration and returns all problems found as
// ValidationErrors.
func (c KubeopConfig) Validate() error {
	var errs ValidationErrors

	if c.Namespace != "" {
		if msgs := validation.IsDNS1123Label(c.Namespace); len(msgs) > 0 {
			errs.Add("namespace", strings.Join(msgs, ", "), c.Namespace)
		}
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("logLevel", err.Error(), c.LogLevel)
	}

	if err := ValidateOneOf("logFormat", c.LogFormat, []string{"text", "json"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs.Add("metricsAddr", fmt.Sprintf("must be host:port: %v", err), c.MetricsAddr)
		}
	}

	if c.WaitTimeout < 0 {
		errs.Add("waitTimeout", "must not be negative", c.WaitTimeout)
	}

	c.Operators.Worker.validate("operators.worker", &errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func (w WorkerConfig) validate(prefix string, errs *ValidationErrors) {
	if w.Disabled {
		return
	}

	if msgs := validation.IsValidLabelValue(w.Name); w.Name == "" || len(msgs) > 0 {
		errs.Add(prefix+".name", "must be a non-empty label value", w.Name)
	}

	if w.ParentSelector != "" {
		pred, err := selector.ParseCEL(w.ParentSelector)
		if err == nil {
			_, err = selector.CompileLabels(pred)
		}
		if err != nil {
			errs.Add(prefix+".parentSelector", err.Error(), w.ParentSelector)
		}
	}

	for k, v := range w.Labels {
		if msgs := validation.IsQualifiedName(k); len(msgs) > 0 {
			errs.Add(prefix+".labels", fmt.Sprintf("invalid key %q: %s", k, strings.Join(msgs, ", ")), k)
		}
		if msgs := validation.IsValidLabelValue(v); len(msgs) > 0 {
			errs.Add(prefix+".labels", fmt.Sprintf("invalid value for %q: %s", k, strings.Join(msgs, ", ")), v)
		}
	}
}
