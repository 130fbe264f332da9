package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"kubeop/internal/selector"
	"kubeop/pkg/apis/kubeop/v1alpha1"
)

func TestBuilder_Build(t *testing.T) {
	f := newFixture(t)

	op, err := f.builder().
		Namespace("default").
		ParentSelector(selector.AllOf(selector.Label("tier").Eq("backend"), selector.Label("env").Eq("prod"))).
		WithLabel("team", "infra").
		Build()
	require.NoError(t, err)

	cfg := op.Config()
	assert.Equal(t, f.name, cfg.Name)
	assert.Equal(t, "default", cfg.Namespace)
	assert.Equal(t, selector.Selector("tier=backend,env=prod"), cfg.ParentSelector)
	assert.Equal(t, map[string]string{"team": "infra"}, cfg.Labels)
	assert.Equal(t, selector.Selector(ManagedByLabel+"="+f.name), cfg.ManagedBy())
	assert.Equal(t, StateIdle, op.State())
}

func TestBuilder_NoParentSelectorMatchesEverything(t *testing.T) {
	op, err := newFixture(t).builder().Build()
	require.NoError(t, err)
	assert.True(t, op.Config().ParentSelector.IsEverything())
}

func TestBuilder_UnsupportedParentSelector(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder[*v1alpha1.Worker, *corev1.Pod]) *Builder[*v1alpha1.Worker, *corev1.Pod]
	}{
		{
			name: "disjunction",
			build: func(b *Builder[*v1alpha1.Worker, *corev1.Pod]) *Builder[*v1alpha1.Worker, *corev1.Pod] {
				return b.ParentSelector(selector.AnyOf(selector.Label("a").Eq("1"), selector.Label("b").Eq("2")))
			},
		},
		{
			name: "field predicate",
			build: func(b *Builder[*v1alpha1.Worker, *corev1.Pod]) *Builder[*v1alpha1.Worker, *corev1.Pod] {
				return b.ParentSelectorCEL(`self.status.phase == "Running"`)
			},
		},
		{
			name: "negation in CEL",
			build: func(b *Builder[*v1alpha1.Worker, *corev1.Pod]) *Builder[*v1alpha1.Worker, *corev1.Pod] {
				return b.ParentSelectorCEL(`!(self.metadata.labels["a"] == "1")`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := tt.build(newFixture(t).builder()).Build()
			assert.Nil(t, op)
			assert.ErrorIs(t, err, selector.ErrUnsupportedPredicate)
		})
	}
}

func TestBuilder_InvalidConfiguration(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		builder *Builder[*v1alpha1.Worker, *corev1.Pod]
		want    string
	}{
		{
			name:    "missing clients",
			builder: NewBuilder[*v1alpha1.Worker, *corev1.Pod]("worker").NewChild(newPod),
			want:    "parent client is required",
		},
		{
			name:    "missing constructor",
			builder: NewBuilder[*v1alpha1.Worker, *corev1.Pod]("worker").Parents(f.workers).Children(f.pods),
			want:    "child constructor is required",
		},
		{
			name:    "empty name",
			builder: NewBuilder[*v1alpha1.Worker, *corev1.Pod]("").Parents(f.workers).Children(f.pods).NewChild(newPod),
			want:    "invalid operator name",
		},
		{
			name:    "name is not a label value",
			builder: NewBuilder[*v1alpha1.Worker, *corev1.Pod]("my operator").Parents(f.workers).Children(f.pods).NewChild(newPod),
			want:    "invalid operator name",
		},
		{
			name:    "reserved label",
			builder: f.builder().WithLabel(ManagedByLabel, "someone-else"),
			want:    "is reserved",
		},
		{
			name:    "invalid label key",
			builder: f.builder().WithLabel("not a key", "v"),
			want:    "invalid label key",
		},
		{
			name:    "CEL syntax error",
			builder: f.builder().ParentSelectorCEL(`self.metadata.labels[`),
			want:    "failed to parse predicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := tt.builder.Build()
			assert.Nil(t, op)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
