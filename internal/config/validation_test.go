package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *KubeopConfig)
		fields []string
	}{
		{
			name:   "defaults",
			mutate: func(c *KubeopConfig) {},
		},
		{
			name:   "invalid namespace",
			mutate: func(c *KubeopConfig) { c.Namespace = "Not_Valid" },
			fields: []string{"namespace"},
		},
		{
			name:   "unknown log format",
			mutate: func(c *KubeopConfig) { c.LogFormat = "xml" },
			fields: []string{"logFormat"},
		},
		{
			name:   "metrics address without port",
			mutate: func(c *KubeopConfig) { c.MetricsAddr = "localhost" },
			fields: []string{"metricsAddr"},
		},
		{
			name:   "negative wait timeout",
			mutate: func(c *KubeopConfig) { c.WaitTimeout = -1 },
			fields: []string{"waitTimeout"},
		},
		{
			name: "worker name and labels",
			mutate: func(c *KubeopConfig) {
				c.Operators.Worker.Name = ""
				c.Operators.Worker.Labels = map[string]string{"bad key": "v"}
			},
			fields: []string{"operators.worker.name", "operators.worker.labels"},
		},
		{
			name: "CEL syntax error",
			mutate: func(c *KubeopConfig) {
				c.Operators.Worker.ParentSelector = `self.metadata.labels[`
			},
			fields: []string{"operators.worker.parentSelector"},
		},
		{
			name: "disabled worker is not validated",
			mutate: func(c *KubeopConfig) {
				c.Operators.Worker.Disabled = true
				c.Operators.Worker.Name = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			verrs, ok := err.(ValidationErrors)
			if !assert.True(t, ok, "expected ValidationErrors, got %T", err) {
				return
			}
			var fields []string
			for _, e := range verrs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is wrong")
	assert.Equal(t, "field 'a': is wrong", errs.Error())

	errs.Add("", "global problem")
	assert.Equal(t, "validation failed: field 'a': is wrong; global problem", errs.Error())
}
