package watch

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/internal/selector"
)

// Predicate reports whether the awaited state has been reached.
type Predicate[T client.Object] func(eventType watch.EventType, obj T) bool

// Until observes src until pred holds for an event and returns that event's
// object. A timeout of zero waits until ctx is done.
//
// It fails with a *TimeoutError when the deadline passes and with a
// *DisconnectError when the server ends the stream first. Transport errors
// are returned unchanged.
func Until[T client.Object](ctx context.Context, src Source[T], opts Options, timeout time.Duration, pred Predicate[T]) (T, error) {
	return until(ctx, src, opts, timeout, describe(src.Kind(), opts), pred)
}

// deadline bounds a wait started now by timeout, if any.
type deadline struct {
	ctx     context.Context
	start   time.Time
	timeout time.Duration
}

func newDeadline(ctx context.Context, timeout time.Duration) (deadline, context.CancelFunc) {
	d := deadline{ctx: ctx, start: time.Now(), timeout: timeout}
	if timeout <= 0 {
		return d, func() {}
	}
	var cancel context.CancelFunc
	d.ctx, cancel = context.WithTimeout(ctx, timeout)
	return d, cancel
}

// expired reports whether the deadline, and not the caller, ended the wait.
func (d deadline) expired(parent context.Context) bool {
	return parent.Err() == nil && d.ctx.Err() == context.DeadlineExceeded
}

func (d deadline) timeoutError(resource string) error {
	return &TimeoutError{Resource: resource, Timeout: d.timeout, Elapsed: time.Since(d.start)}
}

func until[T client.Object](ctx context.Context, src Source[T], opts Options, timeout time.Duration, resource string, pred Predicate[T]) (T, error) {
	d, cancel := newDeadline(ctx, timeout)
	defer cancel()
	return observe(ctx, d, src, opts, resource, pred)
}

func observe[T client.Object](ctx context.Context, d deadline, src Source[T], opts Options, resource string, pred Predicate[T]) (T, error) {
	var zero T
	var matched T
	res, err := Run(d.ctx, src, opts, func(eventType watch.EventType, obj T) Action {
		if pred(eventType, obj) {
			matched = obj
			return Stop
		}
		return Continue
	})

	switch {
	case err == nil && res.Reason == ClientRequested:
		return matched, nil
	case d.expired(ctx):
		return zero, d.timeoutError(resource)
	case err != nil:
		return zero, err
	default:
		return zero, &DisconnectError{Resource: resource}
	}
}

// UntilDeleted waits until the named object no longer exists. An object
// that is already absent satisfies the wait immediately.
func UntilDeleted[T client.Object](ctx context.Context, src Source[T], namespace, name string, timeout time.Duration) error {
	opts := byName(namespace, name)
	resource := objectName(src.Kind(), namespace, name)

	// The initial list counts against the timeout as well.
	d, cancel := newDeadline(ctx, timeout)
	defer cancel()

	items, rv, err := src.List(d.ctx, opts.Namespace, opts.FieldSelector, opts.LabelSelector)
	if err != nil {
		if d.expired(ctx) {
			return d.timeoutError(resource)
		}
		return err
	}
	if len(items) == 0 {
		return nil
	}

	// Resume from the list so a deletion between List and Watch is not missed.
	opts.ResourceVersion = rv
	_, err = observe(ctx, d, src, opts, resource, func(eventType watch.EventType, _ T) bool {
		return eventType == watch.Deleted
	})
	return err
}

// UntilConditionTrue waits until the named object reports condType as True
// in the conditions returned by conditionsOf.
func UntilConditionTrue[T client.Object](ctx context.Context, src Source[T], namespace, name string, timeout time.Duration,
	condType string, conditionsOf func(T) []metav1.Condition) (T, error) {
	return until(ctx, src, byName(namespace, name), timeout, objectName(src.Kind(), namespace, name),
		func(eventType watch.EventType, obj T) bool {
			return eventType != watch.Deleted && meta.IsStatusConditionTrue(conditionsOf(obj), condType)
		})
}

// UntilPodReady waits until the named pod has its Ready condition set.
func UntilPodReady(ctx context.Context, src Source[*corev1.Pod], namespace, name string, timeout time.Duration) (*corev1.Pod, error) {
	return until(ctx, src, byName(namespace, name), timeout, objectName(src.Kind(), namespace, name),
		func(eventType watch.EventType, pod *corev1.Pod) bool {
			return eventType != watch.Deleted && IsPodReady(pod)
		})
}

// UntilEstablished waits until the named CustomResourceDefinition is
// served by the API server.
func UntilEstablished(ctx context.Context, src Source[*apiextensionsv1.CustomResourceDefinition], name string, timeout time.Duration) (*apiextensionsv1.CustomResourceDefinition, error) {
	return until(ctx, src, byName("", name), timeout, objectName(src.Kind(), "", name),
		func(eventType watch.EventType, crd *apiextensionsv1.CustomResourceDefinition) bool {
			return eventType != watch.Deleted && IsEstablished(crd)
		})
}

// IsPodReady reports whether pod has condition Ready=True.
func IsPodReady(pod *corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

// IsEstablished reports whether crd has condition Established=True.
func IsEstablished(crd *apiextensionsv1.CustomResourceDefinition) bool {
	for _, c := range crd.Status.Conditions {
		if c.Type == apiextensionsv1.Established {
			return c.Status == apiextensionsv1.ConditionTrue
		}
	}
	return false
}

func byName(namespace, name string) Options {
	return Options{
		Namespace:     namespace,
		FieldSelector: selector.MustCompileFields(selector.Field("metadata.name").Eq(name)),
	}
}

func objectName(kind, namespace, name string) string {
	if namespace == "" {
		return fmt.Sprintf("%s %s", kind, name)
	}
	return fmt.Sprintf("%s %s/%s", kind, namespace, name)
}

func describe(kind string, opts Options) string {
	s := kind
	if opts.Namespace != "" {
		s += fmt.Sprintf(" in namespace %q", opts.Namespace)
	}
	if !opts.FieldSelector.IsEverything() {
		s += fmt.Sprintf(" with fields %q", opts.FieldSelector)
	}
	if !opts.LabelSelector.IsEverything() {
		s += fmt.Sprintf(" with labels %q", opts.LabelSelector)
	}
	return s
}
