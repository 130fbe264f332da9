package selector

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
)

// ToFields converts a compiled field selector into the apimachinery form
// sent to the API server. Compiled paths are rooted with a leading dot,
// which the server does not accept, so it is stripped here.
func ToFields(s Selector) (fields.Selector, error) {
	if s.IsEverything() {
		return fields.Everything(), nil
	}

	parsed, err := fields.ParseSelector(string(s))
	if err != nil {
		return nil, fmt.Errorf("invalid field selector %q: %w", s, err)
	}

	return parsed.Transform(func(field, value string) (string, string, error) {
		return strings.TrimPrefix(field, "."), value, nil
	})
}

// ToLabels converts a compiled label selector into the apimachinery form.
func ToLabels(s Selector) (labels.Selector, error) {
	if s.IsEverything() {
		return labels.Everything(), nil
	}

	parsed, err := labels.Parse(string(s))
	if err != nil {
		return nil, fmt.Errorf("invalid label selector %q: %w", s, err)
	}
	return parsed, nil
}

// FromLabelSet builds a label selector from a label map, ordered by key so
// that the result is reproducible.
func FromLabelSet(set map[string]string) Selector {
	return Selector(labels.SelectorFromSet(set).String())
}
