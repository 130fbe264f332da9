// Package formatting renders command output as plain text, JSON, YAML or a
// table, so every command supports the same -o values.
package formatting

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatText  OutputFormat = "text"  // Plain text, one line per item
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
	FormatTable OutputFormat = "table" // Rich table output
)

// Formats lists the supported output formats in flag help order.
var Formats = []OutputFormat{FormatText, FormatJSON, FormatYAML, FormatTable}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (OutputFormat, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unsupported output format %q (supported: %s)", s, strings.Join(names, ", "))
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Out    io.Writer // default: stdout
	Color  bool      // Enable colored table headers
}

// Tabular is implemented by values that can be rendered as rows.
type Tabular interface {
	Headers() []string
	Rows() [][]string
}

// Formatter writes a value in one output format.
type Formatter interface {
	FormatData(data any) error
}

// NewFormatter creates the formatter for options.Format.
func NewFormatter(options Options) Formatter {
	if options.Out == nil {
		options.Out = os.Stdout
	}

	switch options.Format {
	case FormatJSON:
		return &jsonFormatter{options: options}
	case FormatYAML:
		return &yamlFormatter{options: options}
	case FormatTable:
		return &tableFormatter{options: options}
	default:
		return &textFormatter{options: options}
	}
}
