// Package kubefake provides an in-memory kube.Client for tests.
//
// The fake keeps objects per namespace/name, assigns monotonically
// increasing resource versions, fans out watch events to every open watch
// whose selectors match and replays events newer than the resource version
// a watch starts from. Patches that change nothing are ignored. Calls are
// recorded so tests can assert on side effects. Field selectors are
// evaluated against metadata.name and metadata.namespace plus any fields
// returned by the optional FieldsFunc.
package kubefake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/internal/kube"
	"kubeop/internal/selector"
)

// PatchRecord describes a patch received by the fake.
type PatchRecord struct {
	Key    string
	Status bool
	Data   []byte
}

// WatchRecord describes a watch opened against the fake.
type WatchRecord struct {
	Namespace       string
	FieldSelector   selector.Selector
	LabelSelector   selector.Selector
	ResourceVersion string
}

type event[T client.Object] struct {
	rv        int64
	eventType watch.EventType
	obj       T
}

type watcher struct {
	namespace string
	fields    fields.Selector
	labels    labels.Selector
	w         *watch.RaceFreeFakeWatcher
}

// Client is an in-memory kube.Client.
type Client[T client.Object] struct {
	mu sync.Mutex

	kind    string
	newObj  func() T
	objects map[types.NamespacedName]T
	rv      int64

	watchers []*watcher
	history  []event[T]

	// FieldsFunc returns additional selectable fields of an object.
	FieldsFunc func(T) fields.Set

	// BeforeCreate, when set, runs before every Create. A non-nil error
	// fails the call.
	BeforeCreate func(T) error

	listErr  error
	watchErr error
	patchErr error

	creates []T
	patches []PatchRecord
	lists   int
	watches []WatchRecord
}

var _ kube.Client[client.Object] = &Client[client.Object]{}

// NewClient returns an empty fake serving kind, seeded with objs.
func NewClient[T client.Object](kind string, newObj func() T, objs ...T) *Client[T] {
	c := &Client[T]{
		kind:    kind,
		newObj:  newObj,
		objects: make(map[types.NamespacedName]T),
	}
	for _, o := range objs {
		c.store(o)
	}
	return c
}

func (c *Client[T]) Kind() string {
	return c.kind
}

// SetListError makes subsequent List calls fail with err (nil clears it).
func (c *Client[T]) SetListError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErr = err
}

// SetWatchError makes subsequent Watch calls fail with err.
func (c *Client[T]) SetWatchError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchErr = err
}

// SetPatchError makes subsequent Patch and PatchStatus calls fail with err.
func (c *Client[T]) SetPatchError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patchErr = err
}

func (c *Client[T]) List(ctx context.Context, namespace string, fieldSel, labelSel selector.Selector) ([]T, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	fs, ls, err := convert(fieldSel, labelSel)
	if err != nil {
		return nil, "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lists++
	if c.listErr != nil {
		return nil, "", c.listErr
	}

	keys := make([]types.NamespacedName, 0, len(c.objects))
	for k := range c.objects {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	items := make([]T, 0, len(keys))
	for _, k := range keys {
		obj := c.objects[k]
		if c.matches(obj, namespace, fs, ls) {
			items = append(items, c.copy(obj))
		}
	}
	return items, c.currentRV(), nil
}

func (c *Client[T]) Watch(ctx context.Context, namespace string, fieldSel, labelSel selector.Selector, resourceVersion string) (watch.Interface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs, ls, err := convert(fieldSel, labelSel)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.watches = append(c.watches, WatchRecord{
		Namespace:       namespace,
		FieldSelector:   fieldSel,
		LabelSelector:   labelSel,
		ResourceVersion: resourceVersion,
	})
	if c.watchErr != nil {
		return nil, c.watchErr
	}

	w := &watcher{namespace: namespace, fields: fs, labels: ls, w: watch.NewRaceFreeFake()}
	c.watchers = append(c.watchers, w)

	// Like the API server, replay what happened after the requested version.
	if since, err := strconv.ParseInt(resourceVersion, 10, 64); err == nil {
		for _, ev := range c.history {
			if ev.rv > since && c.matches(ev.obj, namespace, fs, ls) {
				w.w.Action(ev.eventType, c.copy(ev.obj))
			}
		}
	}

	go func() {
		<-ctx.Done()
		c.removeWatcher(w)
	}()

	return w.w, nil
}

func (c *Client[T]) Get(ctx context.Context, namespace, name string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj, ok := c.objects[types.NamespacedName{Namespace: namespace, Name: name}]
	if !ok {
		var zero T
		return zero, apierrors.NewNotFound(c.resource(), name)
	}
	return c.copy(obj), nil
}

func (c *Client[T]) Create(ctx context.Context, obj T) (T, error) {
	if err := ctx.Err(); err != nil {
		return obj, err
	}
	if c.BeforeCreate != nil {
		if err := c.BeforeCreate(obj); err != nil {
			return obj, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.creates = append(c.creates, c.copy(obj))

	key := client.ObjectKeyFromObject(obj)
	if _, exists := c.objects[key]; exists {
		return obj, apierrors.NewAlreadyExists(c.resource(), obj.GetName())
	}

	obj.SetUID(types.UID(uuid.NewString()))
	obj.SetCreationTimestamp(metav1.Now())
	stored := c.storeLocked(obj)
	c.broadcast(watch.Added, stored)
	return c.copy(stored), nil
}

func (c *Client[T]) Patch(ctx context.Context, obj T, patch client.Patch) (T, error) {
	return c.patch(ctx, obj, patch, false)
}

func (c *Client[T]) PatchStatus(ctx context.Context, obj T, patch client.Patch) (T, error) {
	return c.patch(ctx, obj, patch, true)
}

func (c *Client[T]) patch(ctx context.Context, obj T, patch client.Patch, status bool) (T, error) {
	if err := ctx.Err(); err != nil {
		return obj, err
	}

	data, err := patch.Data(obj)
	if err != nil {
		return obj, fmt.Errorf("failed to compute patch: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := client.ObjectKeyFromObject(obj)
	c.patches = append(c.patches, PatchRecord{Key: key.String(), Status: status, Data: data})
	if c.patchErr != nil {
		return obj, c.patchErr
	}

	current, ok := c.objects[key]
	if !ok {
		return obj, apierrors.NewNotFound(c.resource(), obj.GetName())
	}
	if patch.Type() != types.MergePatchType {
		return obj, fmt.Errorf("patch type %s is not supported by the fake", patch.Type())
	}

	original, err := json.Marshal(current)
	if err != nil {
		return obj, err
	}
	merged, err := jsonpatch.MergePatch(original, data)
	if err != nil {
		return obj, fmt.Errorf("failed to apply merge patch: %w", err)
	}

	updated := c.newObj()
	if err := json.Unmarshal(merged, updated); err != nil {
		return obj, err
	}

	// A patch that changes nothing keeps the resource version and emits
	// no event.
	if after, err := json.Marshal(updated); err == nil && bytes.Equal(after, original) {
		return c.copy(current), nil
	}

	stored := c.storeLocked(updated)
	c.broadcast(watch.Modified, stored)
	return c.copy(stored), nil
}

func (c *Client[T]) Delete(ctx context.Context, obj T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := client.ObjectKeyFromObject(obj)
	current, ok := c.objects[key]
	if !ok {
		return apierrors.NewNotFound(c.resource(), obj.GetName())
	}
	delete(c.objects, key)

	c.rv++
	current.SetResourceVersion(c.currentRV())
	c.broadcast(watch.Deleted, current)
	return nil
}

// Put stores obj as if it had been written by another actor (creating or
// replacing it) and emits the matching watch event.
func (c *Client[T]) Put(obj T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.objects[client.ObjectKeyFromObject(obj)]
	stored := c.storeLocked(obj)
	if exists {
		c.broadcast(watch.Modified, stored)
	} else {
		c.broadcast(watch.Added, stored)
	}
	return c.copy(stored)
}

// Bookmark sends a bookmark carrying the current resource version to every
// open watch and returns that version.
func (c *Client[T]) Bookmark() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rv++
	rv := c.currentRV()
	for _, w := range c.watchers {
		obj := c.newObj()
		obj.SetResourceVersion(rv)
		w.w.Action(watch.Bookmark, obj)
	}
	return rv
}

// SendError delivers a watch.Error event carrying status to every open watch.
func (c *Client[T]) SendError(status *metav1.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, w := range c.watchers {
		w.w.Error(status)
	}
}

// Disconnect closes every open watch as if the server had dropped the
// connections.
func (c *Client[T]) Disconnect() {
	c.mu.Lock()
	watchers := c.watchers
	c.watchers = nil
	c.mu.Unlock()

	for _, w := range watchers {
		w.w.Stop()
	}
}

// OpenWatches returns the number of watches currently open.
func (c *Client[T]) OpenWatches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watchers)
}

// Creates returns copies of the objects passed to Create, in call order.
func (c *Client[T]) Creates() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.creates...)
}

// Patches returns the patches received, in call order.
func (c *Client[T]) Patches() []PatchRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]PatchRecord(nil), c.patches...)
}

// Watches returns the watches opened, in call order.
func (c *Client[T]) Watches() []WatchRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WatchRecord(nil), c.watches...)
}

// Lists returns the number of List calls.
func (c *Client[T]) Lists() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lists
}

// Objects returns copies of the stored objects ordered by namespace/name.
func (c *Client[T]) Objects() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]T, 0, len(c.objects))
	for _, obj := range c.objects {
		items = append(items, c.copy(obj))
	}
	sort.Slice(items, func(i, j int) bool {
		return client.ObjectKeyFromObject(items[i]).String() < client.ObjectKeyFromObject(items[j]).String()
	})
	return items
}

func (c *Client[T]) store(obj T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeLocked(obj)
}

func (c *Client[T]) storeLocked(obj T) T {
	c.rv++
	stored := c.copy(obj)
	stored.SetResourceVersion(c.currentRV())
	c.objects[client.ObjectKeyFromObject(stored)] = stored
	return stored
}

func (c *Client[T]) broadcast(eventType watch.EventType, obj T) {
	c.history = append(c.history, event[T]{rv: c.rv, eventType: eventType, obj: c.copy(obj)})
	for _, w := range c.watchers {
		if c.matches(obj, w.namespace, w.fields, w.labels) {
			w.w.Action(eventType, c.copy(obj))
		}
	}
}

func (c *Client[T]) removeWatcher(target *watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, w := range c.watchers {
		if w == target {
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			break
		}
	}
	target.w.Stop()
}

func (c *Client[T]) matches(obj T, namespace string, fs fields.Selector, ls labels.Selector) bool {
	if namespace != "" && obj.GetNamespace() != namespace {
		return false
	}
	if !ls.Matches(labels.Set(obj.GetLabels())) {
		return false
	}

	set := fields.Set{
		"metadata.name":      obj.GetName(),
		"metadata.namespace": obj.GetNamespace(),
	}
	if c.FieldsFunc != nil {
		for k, v := range c.FieldsFunc(obj) {
			set[k] = v
		}
	}
	return fs.Matches(set)
}

func (c *Client[T]) copy(obj T) T {
	return obj.DeepCopyObject().(T)
}

func (c *Client[T]) currentRV() string {
	return strconv.FormatInt(c.rv, 10)
}

func (c *Client[T]) resource() schema.GroupResource {
	return schema.GroupResource{Resource: strings.ToLower(c.kind) + "s"}
}

func convert(fieldSel, labelSel selector.Selector) (fields.Selector, labels.Selector, error) {
	fs, err := selector.ToFields(fieldSel)
	if err != nil {
		return nil, nil, err
	}
	ls, err := selector.ToLabels(labelSel)
	if err != nil {
		return nil, nil, err
	}
	return fs, ls, nil
}
