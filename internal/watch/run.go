package watch

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/internal/selector"
)

// Source is the part of the transport the watch primitives need.
// kube.Client satisfies it.
type Source[T client.Object] interface {
	Kind() string
	List(ctx context.Context, namespace string, fieldSel, labelSel selector.Selector) ([]T, string, error)
	Watch(ctx context.Context, namespace string, fieldSel, labelSel selector.Selector, resourceVersion string) (watch.Interface, error)
}

// Action tells Run whether to keep delivering events.
type Action int

const (
	Continue Action = iota
	Stop
)

// Handler receives every non-bookmark event.
type Handler[T client.Object] func(eventType watch.EventType, obj T) Action

// ExitReason explains why Run returned without error.
type ExitReason int

const (
	// ClientRequested means the handler returned Stop.
	ClientRequested ExitReason = iota + 1

	// ServerDisconnected means the server closed the stream.
	ServerDisconnected
)

func (r ExitReason) String() string {
	switch r {
	case ClientRequested:
		return "ClientRequested"
	case ServerDisconnected:
		return "ServerDisconnected"
	default:
		return "Unknown"
	}
}

// Options select what Run observes.
type Options struct {
	Namespace     string
	FieldSelector selector.Selector
	LabelSelector selector.Selector

	// ResourceVersion resumes a previous Run from its cursor. When set the
	// list phase is skipped.
	ResourceVersion string
}

// Result is what Run reports when it exits.
type Result struct {
	Reason ExitReason

	// ResourceVersion is the cursor to resume from.
	ResourceVersion string
}

// Run lists matching objects, delivers them as Added events, then watches
// for changes until the handler stops, the server disconnects, the
// transport fails or ctx is cancelled.
//
// Transport errors, including watch.Error events, are returned unchanged.
// Cancellation returns ctx.Err().
func Run[T client.Object](ctx context.Context, src Source[T], opts Options, fn Handler[T]) (Result, error) {
	cursor := opts.ResourceVersion

	if cursor == "" {
		items, rv, err := src.List(ctx, opts.Namespace, opts.FieldSelector, opts.LabelSelector)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			return Result{}, err
		}

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return Result{ResourceVersion: cursor}, err
			}
			if fn(watch.Added, item) == Stop {
				return Result{Reason: ClientRequested, ResourceVersion: rv}, nil
			}
		}
		cursor = rv
	}

	w, err := src.Watch(ctx, opts.Namespace, opts.FieldSelector, opts.LabelSelector, cursor)
	if err != nil {
		if ctx.Err() != nil {
			return Result{ResourceVersion: cursor}, ctx.Err()
		}
		return Result{ResourceVersion: cursor}, err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{ResourceVersion: cursor}, ctx.Err()

		case ev, ok := <-w.ResultChan():
			if !ok {
				// A closed channel after cancellation is our own doing.
				if err := ctx.Err(); err != nil {
					return Result{ResourceVersion: cursor}, err
				}
				return Result{Reason: ServerDisconnected, ResourceVersion: cursor}, nil
			}

			switch ev.Type {
			case watch.Bookmark:
				accessor, err := meta.Accessor(ev.Object)
				if err != nil {
					return Result{ResourceVersion: cursor}, fmt.Errorf("invalid bookmark for %s: %w", src.Kind(), err)
				}
				cursor = accessor.GetResourceVersion()
				continue

			case watch.Error:
				return Result{ResourceVersion: cursor}, apierrors.FromObject(ev.Object)
			}

			obj, ok := ev.Object.(T)
			if !ok {
				return Result{ResourceVersion: cursor}, fmt.Errorf("unexpected object %T in %s watch", ev.Object, src.Kind())
			}
			if fn(ev.Type, obj) == Stop {
				return Result{Reason: ClientRequested, ResourceVersion: cursor}, nil
			}
		}
	}
}
