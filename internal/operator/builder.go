package operator

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/internal/events"
	"kubeop/internal/kube"
	"kubeop/internal/selector"
	"kubeop/pkg/logging"
)

// Builder assembles an Operator. Errors are collected and reported by Build.
type Builder[P, C client.Object] struct {
	name      string
	namespace string
	labels    map[string]string

	parents  kube.Client[P]
	children kube.Client[C]
	newChild func() C
	scheme   *runtime.Scheme

	parentSelector selector.Expr
	filter         func(P) bool
	construct      func(P, C)
	feedback       []FeedbackLoop[P, C]
	events         events.Emitter

	errs []error
}

// NewBuilder starts an operator called name. The name becomes the value of
// the managed-by label on every child.
func NewBuilder[P, C client.Object](name string) *Builder[P, C] {
	return &Builder[P, C]{
		name:   name,
		labels: make(map[string]string),
	}
}

// Parents sets the transport for the parent kind.
func (b *Builder[P, C]) Parents(c kube.Client[P]) *Builder[P, C] {
	b.parents = c
	return b
}

// Children sets the transport for the child kind.
func (b *Builder[P, C]) Children(c kube.Client[C]) *Builder[P, C] {
	b.children = c
	return b
}

// NewChild sets the constructor for empty children.
func (b *Builder[P, C]) NewChild(fn func() C) *Builder[P, C] {
	b.newChild = fn
	return b
}

// Scheme sets the scheme used to resolve the parent's kind for owner
// references. Defaults to kube.NewScheme().
func (b *Builder[P, C]) Scheme(s *runtime.Scheme) *Builder[P, C] {
	b.scheme = s
	return b
}

// Namespace restricts the operator to one namespace.
func (b *Builder[P, C]) Namespace(ns string) *Builder[P, C] {
	b.namespace = ns
	return b
}

// ParentSelector restricts parents to those matching pred. The predicate is
// compiled to a label selector by Build.
func (b *Builder[P, C]) ParentSelector(pred selector.Expr) *Builder[P, C] {
	b.parentSelector = pred
	return b
}

// ParentSelectorCEL is ParentSelector for a CEL expression over self.
func (b *Builder[P, C]) ParentSelectorCEL(src string) *Builder[P, C] {
	pred, err := selector.ParseCEL(src)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	return b.ParentSelector(pred)
}

// FilterParents sets a predicate evaluated on every parent. Parents for
// which it returns false are ignored.
func (b *Builder[P, C]) FilterParents(fn func(P) bool) *Builder[P, C] {
	b.filter = fn
	return b
}

// ConstructChild sets the function populating a new child from its parent.
// Name, namespace, owner reference and operator labels are set afterwards.
func (b *Builder[P, C]) ConstructChild(fn func(P, C)) *Builder[P, C] {
	b.construct = fn
	return b
}

// WithLabel adds a label stamped on every child.
func (b *Builder[P, C]) WithLabel(key, value string) *Builder[P, C] {
	b.labels[key] = value
	return b
}

// WithFeedback appends a feedback loop. Loops run in the order added.
func (b *Builder[P, C]) WithFeedback(loop FeedbackLoop[P, C]) *Builder[P, C] {
	b.feedback = append(b.feedback, loop)
	return b
}

// WithEvents records Kubernetes Events on parents for created children,
// status updates and failures.
func (b *Builder[P, C]) WithEvents(e events.Emitter) *Builder[P, C] {
	b.events = e
	return b
}

// Build validates the configuration and returns an idle Operator.
// An unrepresentable parent selector fails here with
// selector.ErrUnsupportedPredicate.
func (b *Builder[P, C]) Build() (*Operator[P, C], error) {
	errs := append([]error(nil), b.errs...)

	if msgs := validation.IsValidLabelValue(b.name); b.name == "" || len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("invalid operator name %q: must be a non-empty label value", b.name))
	}
	if b.parents == nil {
		errs = append(errs, errors.New("parent client is required"))
	}
	if b.children == nil {
		errs = append(errs, errors.New("child client is required"))
	}
	if b.newChild == nil {
		errs = append(errs, errors.New("child constructor is required"))
	}
	if _, ok := b.labels[ManagedByLabel]; ok {
		errs = append(errs, fmt.Errorf("label %s is reserved", ManagedByLabel))
	}
	for k, v := range b.labels {
		if msgs := validation.IsQualifiedName(k); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("invalid label key %q: %v", k, msgs))
		}
		if msgs := validation.IsValidLabelValue(v); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("invalid label value %q for %s: %v", v, k, msgs))
		}
	}

	parentSel := selector.Everything
	if b.parentSelector != nil {
		sel, err := selector.CompileLabels(b.parentSelector)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid parent selector: %w", err))
		}
		parentSel = sel
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to build operator %q: %w", b.name, err)
	}

	scheme := b.scheme
	if scheme == nil {
		scheme = kube.NewScheme()
	}
	filter := b.filter
	if filter == nil {
		filter = func(P) bool { return true }
	}
	construct := b.construct
	if construct == nil {
		construct = func(P, C) {}
	}

	labels := make(map[string]string, len(b.labels))
	for k, v := range b.labels {
		labels[k] = v
	}

	cfg := Config{
		Name:           b.name,
		Namespace:      b.namespace,
		ParentSelector: parentSel,
		Labels:         labels,
	}

	op := &Operator[P, C]{
		config:    cfg,
		parents:   b.parents,
		children:  b.children,
		newChild:  b.newChild,
		scheme:    scheme,
		filter:    filter,
		construct: construct,
		feedback:  append([]FeedbackLoop[P, C](nil), b.feedback...),
		events:    b.events,
		queue:     newWorkQueue(itemKey[P, C]),
		log:       logging.With(subsystem, "operator", b.name),
	}
	return op, nil
}
