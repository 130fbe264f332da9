package operator

import (
	"context"
	"errors"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/internal/selector"
	"kubeop/internal/watch"
)

// ManagedByLabel marks children with the name of the operator managing them.
const ManagedByLabel = "app.kubernetes.io/managed-by"

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("operator already started")

// Config is the immutable configuration of an Operator.
type Config struct {
	// Name identifies the operator in labels, logs and metrics.
	Name string

	// Namespace restricts the parents watched. Empty means all namespaces.
	Namespace string

	// ParentSelector is a compiled label selector restricting parents.
	ParentSelector selector.Selector

	// Labels are stamped on every child in addition to ManagedByLabel.
	Labels map[string]string
}

// ManagedBy returns the label selector matching children of this operator.
func (c Config) ManagedBy() selector.Selector {
	return selector.FromLabelSet(map[string]string{ManagedByLabel: c.Name})
}

// State is the lifecycle state of an Operator.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateInitializing:
		return "Initializing"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Context is passed to feedback loops. Parent and Child are private copies
// that loops may modify and return as Feedback.
type Context[P, C client.Object] struct {
	Operator    string
	ReconcileID string
	Parent      P
	Child       C
}

// Feedback carries the objects a feedback loop wants written back. A nil
// field leaves that object untouched. Non-nil objects are merge-patched
// against the state the loop was given.
type Feedback[P, C client.Object] struct {
	Parent P
	Child  C
}

// FeedbackLoop inspects a parent and its child and optionally returns
// modified copies to be patched.
type FeedbackLoop[P, C client.Object] func(ctx context.Context, rc Context[P, C]) (Feedback[P, C], error)

// DisconnectError is returned by Run when the server ended one of the
// operator's watches.
type DisconnectError struct {
	Kind string
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("%s while watching %s", watch.ErrServerDisconnected, e.Kind)
}

func (e *DisconnectError) Unwrap() error {
	return watch.ErrServerDisconnected
}

// item is one unit of work: a parent and its child, if one exists.
type item[P, C client.Object] struct {
	parent P
	child  C
}

func itemKey[P, C client.Object](it item[P, C]) string {
	return client.ObjectKeyFromObject(it.parent).String()
}

func isNil[T client.Object](obj T) bool {
	var zero T
	return any(obj) == any(zero)
}

func deepCopy[T client.Object](obj T) T {
	return obj.DeepCopyObject().(T)
}
