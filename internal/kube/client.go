package kube

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/internal/selector"
)

// Client is the typed transport for one resource kind.
type Client[T client.Object] interface {
	// Kind returns the resource kind this client serves, e.g. "Pod".
	Kind() string

	// List returns the matching objects and the resource version of the list.
	List(ctx context.Context, namespace string, fieldSel, labelSel selector.Selector) ([]T, string, error)

	// Watch opens a watch starting after resourceVersion. Bookmarks are requested.
	Watch(ctx context.Context, namespace string, fieldSel, labelSel selector.Selector, resourceVersion string) (watch.Interface, error)

	Get(ctx context.Context, namespace, name string) (T, error)
	Create(ctx context.Context, obj T) (T, error)
	Patch(ctx context.Context, obj T, patch client.Patch) (T, error)

	// PatchStatus patches the status subresource.
	PatchStatus(ctx context.Context, obj T, patch client.Patch) (T, error)

	Delete(ctx context.Context, obj T) error
}

// typedClient implements Client on top of controller-runtime.
type typedClient[T client.Object, L client.ObjectList] struct {
	c       client.WithWatch
	kind    string
	newObj  func() T
	newList func() L
}

// New creates a Client for the kind of the objects produced by newObj.
// The kind is resolved through the client's scheme.
//
// Args:
//   - c: controller-runtime client with watch support
//   - newObj: constructor for an empty object of the kind
//   - newList: constructor for an empty list of the kind
func New[T client.Object, L client.ObjectList](c client.WithWatch, newObj func() T, newList func() L) (Client[T], error) {
	gvk, err := c.GroupVersionKindFor(newObj())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve kind: %w", err)
	}

	return &typedClient[T, L]{
		c:       c,
		kind:    gvk.Kind,
		newObj:  newObj,
		newList: newList,
	}, nil
}

func (k *typedClient[T, L]) Kind() string {
	return k.kind
}

func (k *typedClient[T, L]) List(ctx context.Context, namespace string, fieldSel, labelSel selector.Selector) ([]T, string, error) {
	opts, err := listOptions(namespace, fieldSel, labelSel)
	if err != nil {
		return nil, "", err
	}

	list := k.newList()
	if err := k.c.List(ctx, list, opts); err != nil {
		return nil, "", fmt.Errorf("failed to list %s in namespace %q: %w", k.kind, namespace, err)
	}

	objs, err := meta.ExtractList(list)
	if err != nil {
		return nil, "", fmt.Errorf("failed to extract %s list: %w", k.kind, err)
	}

	items := make([]T, 0, len(objs))
	for _, o := range objs {
		item, ok := o.(T)
		if !ok {
			return nil, "", fmt.Errorf("unexpected item type %T in %s list", o, k.kind)
		}
		items = append(items, item)
	}

	return items, list.GetResourceVersion(), nil
}

func (k *typedClient[T, L]) Watch(ctx context.Context, namespace string, fieldSel, labelSel selector.Selector, resourceVersion string) (watch.Interface, error) {
	opts, err := listOptions(namespace, fieldSel, labelSel)
	if err != nil {
		return nil, err
	}
	opts.Raw = &metav1.ListOptions{
		Watch:               true,
		ResourceVersion:     resourceVersion,
		AllowWatchBookmarks: true,
	}

	w, err := k.c.Watch(ctx, k.newList(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s in namespace %q: %w", k.kind, namespace, err)
	}
	return w, nil
}

func (k *typedClient[T, L]) Get(ctx context.Context, namespace, name string) (T, error) {
	obj := k.newObj()
	if err := k.c.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, obj); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to get %s %s/%s: %w", k.kind, namespace, name, err)
	}
	return obj, nil
}

func (k *typedClient[T, L]) Create(ctx context.Context, obj T) (T, error) {
	if err := k.c.Create(ctx, obj); err != nil {
		return obj, fmt.Errorf("failed to create %s %s: %w", k.kind, Key(obj), err)
	}
	return obj, nil
}

func (k *typedClient[T, L]) Patch(ctx context.Context, obj T, patch client.Patch) (T, error) {
	if err := k.c.Patch(ctx, obj, patch); err != nil {
		return obj, fmt.Errorf("failed to patch %s %s: %w", k.kind, Key(obj), err)
	}
	return obj, nil
}

func (k *typedClient[T, L]) PatchStatus(ctx context.Context, obj T, patch client.Patch) (T, error) {
	if err := k.c.Status().Patch(ctx, obj, patch); err != nil {
		return obj, fmt.Errorf("failed to patch status of %s %s: %w", k.kind, Key(obj), err)
	}
	return obj, nil
}

func (k *typedClient[T, L]) Delete(ctx context.Context, obj T) error {
	if err := k.c.Delete(ctx, obj); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", k.kind, Key(obj), err)
	}
	return nil
}

func listOptions(namespace string, fieldSel, labelSel selector.Selector) (*client.ListOptions, error) {
	fs, err := selector.ToFields(fieldSel)
	if err != nil {
		return nil, err
	}
	ls, err := selector.ToLabels(labelSel)
	if err != nil {
		return nil, err
	}

	return &client.ListOptions{
		Namespace:     namespace,
		FieldSelector: fs,
		LabelSelector: ls,
	}, nil
}

// Key returns the namespace/name identity of an object.
func Key(obj client.Object) string {
	return client.ObjectKeyFromObject(obj).String()
}
