package operator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	kwatch "k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"kubeop/internal/events"
	"kubeop/internal/kube"
	"kubeop/internal/selector"
	"kubeop/internal/watch"
	"kubeop/pkg/logging"
)

const subsystem = "Operator"

// Operator keeps one child of kind C for every matching parent of kind P.
type Operator[P, C client.Object] struct {
	config Config

	parents  kube.Client[P]
	children kube.Client[C]
	newChild func() C
	scheme   *runtime.Scheme

	filter    func(P) bool
	construct func(P, C)
	feedback  []FeedbackLoop[P, C]
	events    events.Emitter

	queue *workQueue[item[P, C]]
	state atomic.Int32
	log   *logging.Logger
}

// Config returns the operator's configuration.
func (o *Operator[P, C]) Config() Config {
	return o.config
}

// State returns the current lifecycle state.
func (o *Operator[P, C]) State() State {
	return State(o.state.Load())
}

func (o *Operator[P, C]) setState(s State) {
	old := State(o.state.Swap(int32(s)))
	o.log.Debug("State %s -> %s", old, s)
}

// Run initialises the queue from the current cluster state, then watches
// parents and children until ctx is cancelled or a watch fails.
//
// Cancellation returns nil. A watch dropped by the server returns a
// *DisconnectError naming the kind; the other watch is stopped and queued
// items are drained before Run returns.
func (o *Operator[P, C]) Run(ctx context.Context) error {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateInitializing)) {
		return ErrAlreadyStarted
	}
	o.log.Info("Starting operator for %s -> %s", o.parents.Kind(), o.children.Kind())

	parentRV, childRV, err := o.initialize(ctx)
	if err != nil {
		o.queue.Shutdown()
		o.setState(StateStopped)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to initialize operator %s: %w", o.config.Name, err)
	}
	o.setState(StateRunning)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		o.consume(ctx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.watchParents(gctx, parentRV)
	})
	g.Go(func() error {
		return o.watchChildren(gctx, childRV)
	})
	err = g.Wait()

	o.setState(StateStopping)
	o.queue.Shutdown()
	<-consumerDone
	o.setState(StateStopped)

	if err != nil {
		o.log.Error(err, "Operator stopped")
		return err
	}
	o.log.Info("Operator stopped")
	return nil
}

// initialize enqueues every matching parent with its child and returns
// the resource versions the watches resume from.
func (o *Operator[P, C]) initialize(ctx context.Context) (string, string, error) {
	// Children are listed first so that changes made while parents are
	// resolved below are still delivered by the child watch.
	_, childRV, err := o.children.List(ctx, o.config.Namespace, selector.Everything, o.config.ManagedBy())
	if err != nil {
		return "", "", fmt.Errorf("failed to list %s: %w", o.children.Kind(), err)
	}

	parents, parentRV, err := o.parents.List(ctx, o.config.Namespace, selector.Everything, o.config.ParentSelector)
	if err != nil {
		return "", "", fmt.Errorf("failed to list %s: %w", o.parents.Kind(), err)
	}

	for _, p := range parents {
		o.scheduleParent(ctx, p, "initial")
	}
	o.log.Info("Initial backlog of %d items from %d %s", o.queue.Len(), len(parents), o.parents.Kind())

	return parentRV, childRV, nil
}

func (o *Operator[P, C]) watchParents(ctx context.Context, rv string) error {
	opts := watch.Options{
		Namespace:       o.config.Namespace,
		LabelSelector:   o.config.ParentSelector,
		ResourceVersion: rv,
	}
	res, err := watch.Run(ctx, o.parents, opts, func(eventType kwatch.EventType, p P) watch.Action {
		// Children of deleted parents are garbage collected through their
		// owner reference.
		if eventType != kwatch.Deleted {
			o.scheduleParent(ctx, p, "parent")
		}
		return watch.Continue
	})
	return o.watchExit(ctx, o.parents.Kind(), res, err)
}

func (o *Operator[P, C]) watchChildren(ctx context.Context, rv string) error {
	opts := watch.Options{
		Namespace:       o.config.Namespace,
		LabelSelector:   o.config.ManagedBy(),
		ResourceVersion: rv,
	}
	res, err := watch.Run(ctx, o.children, opts, func(eventType kwatch.EventType, c C) watch.Action {
		o.scheduleChild(ctx, eventType, c)
		return watch.Continue
	})
	return o.watchExit(ctx, o.children.Kind(), res, err)
}

func (o *Operator[P, C]) watchExit(ctx context.Context, kind string, res watch.Result, err error) error {
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("watch on %s failed: %w", kind, err)
	}
	if res.Reason == watch.ServerDisconnected {
		return &DisconnectError{Kind: kind}
	}
	return nil
}

func (o *Operator[P, C]) scheduleParent(ctx context.Context, p P, source string) {
	log := o.log.With("namespace", p.GetNamespace(), "name", p.GetName())
	defer o.recoverScheduling(log, o.parents.Kind())

	if !o.filter(p) {
		log.Debug("%s filtered out", o.parents.Kind())
		droppedTotal.WithLabelValues(o.config.Name, reasonFiltered).Inc()
		return
	}

	child, err := o.resolveChild(ctx, p)
	if err != nil {
		if ctx.Err() == nil {
			log.Error(err, "Failed to schedule %s", o.parents.Kind())
		}
		droppedTotal.WithLabelValues(o.config.Name, reasonScheduling).Inc()
		return
	}

	log.Debug("Scheduling %s (child present: %t)", o.parents.Kind(), !isNil(child))
	scheduledTotal.WithLabelValues(o.config.Name, source).Inc()
	o.queue.Add(item[P, C]{parent: p, child: child})
}

func (o *Operator[P, C]) scheduleChild(ctx context.Context, eventType kwatch.EventType, c C) {
	log := o.log.With("namespace", c.GetNamespace(), "name", c.GetName())
	defer o.recoverScheduling(log, o.children.Kind())

	parent, found, err := o.resolveParent(ctx, c)
	if err != nil {
		if ctx.Err() == nil {
			log.Error(err, "Failed to schedule %s event", o.children.Kind())
		}
		droppedTotal.WithLabelValues(o.config.Name, reasonScheduling).Inc()
		return
	}
	if !found {
		log.Debug("No %s for %s, dropping %s event", o.parents.Kind(), o.children.Kind(), eventType)
		droppedTotal.WithLabelValues(o.config.Name, reasonNoParent).Inc()
		return
	}
	if !o.filter(parent) {
		log.Debug("%s filtered out, dropping %s event", o.parents.Kind(), eventType)
		droppedTotal.WithLabelValues(o.config.Name, reasonFiltered).Inc()
		return
	}

	if eventType == kwatch.Deleted {
		var none C
		c = none
	}
	scheduledTotal.WithLabelValues(o.config.Name, "child").Inc()
	o.queue.Add(item[P, C]{parent: parent, child: c})
}

// recoverScheduling turns a panic in a user callback on a watch goroutine
// into a dropped event. Must be deferred directly.
func (o *Operator[P, C]) recoverScheduling(log *logging.Logger, kind string) {
	if r := recover(); r != nil {
		log.Error(fmt.Errorf("panic: %v", r), "Scheduling %s panicked, dropping event", kind)
		droppedTotal.WithLabelValues(o.config.Name, reasonScheduling).Inc()
	}
}

// resolveChild returns the managed child of p, or a nil C when none exists.
func (o *Operator[P, C]) resolveChild(ctx context.Context, p P) (C, error) {
	var none C
	byName := selector.MustCompileFields(selector.Field("metadata.name").Eq(p.GetName()))

	children, _, err := o.children.List(ctx, p.GetNamespace(), byName, o.config.ManagedBy())
	if err != nil {
		return none, fmt.Errorf("failed to look up %s %s: %w", o.children.Kind(), client.ObjectKeyFromObject(p), err)
	}
	if len(children) == 0 {
		return none, nil
	}
	return children[0], nil
}

func (o *Operator[P, C]) resolveParent(ctx context.Context, c C) (P, bool, error) {
	var none P
	byName := selector.MustCompileFields(selector.Field("metadata.name").Eq(c.GetName()))

	parents, _, err := o.parents.List(ctx, c.GetNamespace(), byName, o.config.ParentSelector)
	if err != nil {
		return none, false, fmt.Errorf("failed to look up %s %s: %w", o.parents.Kind(), client.ObjectKeyFromObject(c), err)
	}
	if len(parents) == 0 {
		return none, false, nil
	}
	return parents[0], true, nil
}

func (o *Operator[P, C]) consume(ctx context.Context) {
	// The queue is shut down by Run; waiting on it with a background
	// context lets remaining items drain.
	for {
		it, ok := o.queue.Get(context.Background())
		if !ok {
			return
		}
		if ctx.Err() != nil {
			o.log.Debug("Dropping %s while stopping", itemKey(it))
			droppedTotal.WithLabelValues(o.config.Name, reasonStopping).Inc()
		} else {
			o.reconcile(ctx, it)
		}
		o.queue.Done(it)
	}
}

// reconcile runs one reconciliation step. Errors and panics are logged and
// the item is dropped.
func (o *Operator[P, C]) reconcile(ctx context.Context, it item[P, C]) {
	id := uuid.NewString()
	log := o.log.With(
		"reconcileID", id,
		"namespace", it.parent.GetNamespace(),
		"name", it.parent.GetName(),
	)

	start := time.Now()
	defer func() {
		reconcileDuration.WithLabelValues(o.config.Name).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			reconcileErrorsTotal.WithLabelValues(o.config.Name).Inc()
			err := fmt.Errorf("panic: %v", r)
			log.Error(err, "Reconciliation panicked, dropping item")
			o.record(ctx, log, it.parent, events.ReasonReconcilePanicked, events.EventData{Error: err.Error()})
		}
	}()

	var err error
	if isNil(it.child) {
		err = o.ensureChild(ctx, log, id, it.parent)
	} else {
		err = o.runFeedback(ctx, log, id, it.parent, it.child)
	}
	if err != nil {
		reconcileErrorsTotal.WithLabelValues(o.config.Name).Inc()
		log.Error(err, "Reconciliation failed, dropping item")
	}
}

func (o *Operator[P, C]) ensureChild(ctx context.Context, log *logging.Logger, id string, parent P) error {
	// A queued pair may predate a child created by an earlier step.
	existing, err := o.resolveChild(ctx, parent)
	if err != nil {
		return err
	}
	if !isNil(existing) {
		log.Debug("%s already exists", o.children.Kind())
		return o.runFeedback(ctx, log, id, parent, existing)
	}

	child, err := o.buildChild(parent)
	if err != nil {
		return err
	}

	if _, err := o.children.Create(ctx, child); err != nil {
		if apierrors.IsAlreadyExists(err) {
			log.Info("%s %s was created concurrently", o.children.Kind(), client.ObjectKeyFromObject(child))
			return nil
		}
		o.record(ctx, log, parent, events.ReasonChildCreateFailed, events.EventData{
			ChildName: client.ObjectKeyFromObject(child).String(),
			Error:     err.Error(),
		})
		return fmt.Errorf("failed to create %s %s: %w", o.children.Kind(), client.ObjectKeyFromObject(child), err)
	}

	childrenCreatedTotal.WithLabelValues(o.config.Name).Inc()
	log.Info("Created %s %s", o.children.Kind(), client.ObjectKeyFromObject(child))
	o.record(ctx, log, parent, events.ReasonChildCreated, events.EventData{
		ChildName: client.ObjectKeyFromObject(child).String(),
	})
	return nil
}

// buildChild constructs the child for parent: user fields first, then
// identity, owner reference and labels, which the factory cannot override.
func (o *Operator[P, C]) buildChild(parent P) (C, error) {
	child := o.newChild()
	o.construct(parent, child)

	child.SetName(parent.GetName())
	child.SetNamespace(parent.GetNamespace())

	if err := controllerutil.SetControllerReference(parent, child, o.scheme); err != nil {
		return child, fmt.Errorf("failed to set owner reference: %w", err)
	}

	labels := child.GetLabels()
	if labels == nil {
		labels = make(map[string]string, len(o.config.Labels)+1)
	}
	for k, v := range o.config.Labels {
		labels[k] = v
	}
	labels[ManagedByLabel] = o.config.Name
	child.SetLabels(labels)

	return child, nil
}

// runFeedback runs the feedback loops in order. Each returned object is
// patched before the next loop runs, and the next loop sees the result.
func (o *Operator[P, C]) runFeedback(ctx context.Context, log *logging.Logger, id string, parent P, child C) error {
	fail := func(err error) error {
		o.record(ctx, log, parent, events.ReasonFeedbackFailed, events.EventData{Error: err.Error()})
		return err
	}

	for i, loop := range o.feedback {
		fb, err := loop(ctx, Context[P, C]{
			Operator:    o.config.Name,
			ReconcileID: id,
			Parent:      deepCopy(parent),
			Child:       deepCopy(child),
		})
		if err != nil {
			return fail(fmt.Errorf("feedback loop %d failed: %w", i, err))
		}

		if !isNil(fb.Parent) {
			patched, err := o.parents.PatchStatus(ctx, fb.Parent, client.MergeFrom(parent))
			if err != nil {
				return fail(fmt.Errorf("failed to patch %s status: %w", o.parents.Kind(), err))
			}
			patchesTotal.WithLabelValues(o.config.Name, "parent").Inc()
			log.Debug("Patched %s status (loop %d)", o.parents.Kind(), i)
			parent = patched
			o.record(ctx, log, parent, events.ReasonStatusUpdated, events.EventData{Target: "parent"})
		}

		if !isNil(fb.Child) {
			patched, err := o.children.PatchStatus(ctx, fb.Child, client.MergeFrom(child))
			if err != nil {
				return fail(fmt.Errorf("failed to patch %s status: %w", o.children.Kind(), err))
			}
			patchesTotal.WithLabelValues(o.config.Name, "child").Inc()
			log.Debug("Patched %s status (loop %d)", o.children.Kind(), i)
			child = patched
			o.record(ctx, log, parent, events.ReasonStatusUpdated, events.EventData{Target: "child"})
		}
	}
	return nil
}

// record emits an event on parent when an emitter is configured. Failures
// are only logged.
func (o *Operator[P, C]) record(ctx context.Context, log *logging.Logger, parent P, reason events.EventReason, data events.EventData) {
	if o.events == nil {
		return
	}
	data.Operator = o.config.Name
	data.ChildKind = o.children.Kind()
	if err := o.events.Emit(ctx, parent, reason, data); err != nil {
		log.Debug("Failed to record %s event: %v", reason, err)
	}
}
