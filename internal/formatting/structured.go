package formatting

import (
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"
)

type jsonFormatter struct {
	options Options
}

// FormatData writes data as indented JSON.
func (f *jsonFormatter) FormatData(data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output as JSON: %w", err)
	}
	_, err = fmt.Fprintln(f.options.Out, string(b))
	return err
}

type yamlFormatter struct {
	options Options
}

// FormatData writes data as YAML. JSON field tags are honoured.
func (f *yamlFormatter) FormatData(data any) error {
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode output as YAML: %w", err)
	}
	_, err = f.options.Out.Write(b)
	return err
}
