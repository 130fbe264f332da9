package operator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"kubeop/internal/kube/kubefake"
	"kubeop/internal/watch"
	"kubeop/pkg/apis/kubeop/v1alpha1"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newWorker() *v1alpha1.Worker { return &v1alpha1.Worker{} }
func newPod() *corev1.Pod         { return &corev1.Pod{} }

func worker(name string, labels map[string]string) *v1alpha1.Worker {
	return &v1alpha1.Worker{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: name, Labels: labels},
		Spec:       v1alpha1.WorkerSpec{Image: "x"},
	}
}

func managedPod(operator, name string) *corev1.Pod {
	return &corev1.Pod{ObjectMeta: metav1.ObjectMeta{
		Namespace: "default",
		Name:      name,
		Labels:    map[string]string{ManagedByLabel: operator},
	}}
}

type fixture struct {
	name    string
	workers *kubefake.Client[*v1alpha1.Worker]
	pods    *kubefake.Client[*corev1.Pod]
}

func newFixture(t *testing.T, workers ...*v1alpha1.Worker) *fixture {
	return &fixture{
		// Metrics are process-wide; a per-test operator name keeps counts apart.
		name:    "op-" + sanitize(t.Name()),
		workers: kubefake.NewClient("Worker", newWorker, workers...),
		pods:    kubefake.NewClient("Pod", newPod),
	}
}

func sanitize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s) && len(out) < 50; i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	return string(out) + "x"
}

func (f *fixture) builder() *Builder[*v1alpha1.Worker, *corev1.Pod] {
	return NewBuilder[*v1alpha1.Worker, *corev1.Pod](f.name).
		Parents(f.workers).
		Children(f.pods).
		NewChild(newPod).
		ConstructChild(func(w *v1alpha1.Worker, pod *corev1.Pod) {
			pod.Spec.Containers = []corev1.Container{{Name: "worker", Image: w.Spec.Image}}
		})
}

// start runs op in the background and waits until both watches are open.
func (f *fixture) start(t *testing.T, op *Operator[*v1alpha1.Worker, *corev1.Pod]) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- op.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.workers.OpenWatches() == 1 && f.pods.OpenWatches() == 1
	}, waitFor, tick)
	t.Cleanup(cancel)
	return cancel, done
}

func stop(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("operator did not stop")
	}
}

func TestOperator_CreatesChildForParent(t *testing.T) {
	f := newFixture(t, worker("p", nil))
	op, err := f.builder().WithLabel("team", "infra").Build()
	require.NoError(t, err)

	cancel, done := f.start(t, op)
	assert.Equal(t, StateRunning, op.State())

	require.Eventually(t, func() bool { return len(f.pods.Objects()) == 1 }, waitFor, tick)

	pod := f.pods.Objects()[0]
	assert.Equal(t, "p", pod.Name)
	assert.Equal(t, "default", pod.Namespace)
	require.Len(t, pod.Spec.Containers, 1)
	assert.Equal(t, "x", pod.Spec.Containers[0].Image)
	assert.Equal(t, f.name, pod.Labels[ManagedByLabel])
	assert.Equal(t, "infra", pod.Labels["team"])

	owner := metav1.GetControllerOf(pod)
	require.NotNil(t, owner)
	assert.Equal(t, "Worker", owner.Kind)
	assert.Equal(t, "p", owner.Name)
	assert.Equal(t, v1alpha1.GroupVersion.String(), owner.APIVersion)

	stop(t, cancel, done)
	assert.Equal(t, StateStopped, op.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(childrenCreatedTotal.WithLabelValues(f.name)))
}

func TestOperator_ParentWatchResumesFromInitialList(t *testing.T) {
	f := newFixture(t, worker("p", nil))
	_, rv, err := f.workers.List(context.Background(), "", "", "")
	require.NoError(t, err)

	op, err := f.builder().Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	watches := f.workers.Watches()
	require.Len(t, watches, 1)
	assert.Equal(t, rv, watches[0].ResourceVersion)

	childWatches := f.pods.Watches()
	require.Len(t, childWatches, 1)
	assert.Equal(t, "app.kubernetes.io/managed-by="+f.name, string(childWatches[0].LabelSelector))

	stop(t, cancel, done)
}

func TestOperator_AtMostOneCreate(t *testing.T) {
	f := newFixture(t, worker("p", nil))

	var calls atomic.Int32
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.pods.BeforeCreate = func(*corev1.Pod) error {
		calls.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}

	op, err := f.builder().Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("create was not attempted")
	}

	// Identical scheduling events while the first reconciliation is in flight.
	for i := 0; i < 3; i++ {
		w := worker("p", nil)
		w.Annotations = map[string]string{"rev": string(rune('a' + i))}
		f.workers.Put(w)
	}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(scheduledTotal.WithLabelValues(f.name, "parent")) == 3
	}, waitFor, tick)

	close(release)

	require.Eventually(t, func() bool { return len(f.pods.Objects()) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return op.queue.Len() == 0 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, f.pods.Creates(), 1)

	stop(t, cancel, done)
}

func TestOperator_FilteredParentsAreIgnored(t *testing.T) {
	f := newFixture(t, worker("keep", nil), worker("skip", nil))

	var mu sync.Mutex
	var seen []string
	op, err := f.builder().
		FilterParents(func(w *v1alpha1.Worker) bool { return w.Name != "skip" }).
		WithFeedback(func(_ context.Context, rc Context[*v1alpha1.Worker, *corev1.Pod]) (Feedback[*v1alpha1.Worker, *corev1.Pod], error) {
			mu.Lock()
			seen = append(seen, rc.Parent.Name)
			mu.Unlock()
			return Feedback[*v1alpha1.Worker, *corev1.Pod]{}, nil
		}).
		Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	require.Eventually(t, func() bool { return len(f.pods.Objects()) == 1 }, waitFor, tick)

	// A child for the filtered parent appears and the parent changes.
	f.pods.Put(managedPod(f.name, "skip"))
	skip := worker("skip", nil)
	skip.Spec.Image = "y"
	f.workers.Put(skip)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(droppedTotal.WithLabelValues(f.name, reasonFiltered)) >= 3
	}, waitFor, tick)
	require.Eventually(t, func() bool { return op.queue.Len() == 0 }, waitFor, tick)

	for _, pod := range f.pods.Creates() {
		assert.Equal(t, "keep", pod.Name)
	}
	mu.Lock()
	assert.NotContains(t, seen, "skip")
	mu.Unlock()

	stop(t, cancel, done)
}

func TestOperator_ParentSelector(t *testing.T) {
	f := newFixture(t,
		worker("backend", map[string]string{"tier": "backend"}),
		worker("frontend", map[string]string{"tier": "frontend"}),
	)
	op, err := f.builder().ParentSelectorCEL(`self.metadata.labels["tier"] == "backend"`).Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	require.Eventually(t, func() bool { return len(f.pods.Objects()) == 1 }, waitFor, tick)
	assert.Equal(t, "backend", f.pods.Objects()[0].Name)

	stop(t, cancel, done)
}

func TestOperator_OrphanChildEventIsDropped(t *testing.T) {
	f := newFixture(t)
	op, err := f.builder().Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	f.pods.Put(managedPod(f.name, "orphan"))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(droppedTotal.WithLabelValues(f.name, reasonNoParent)) == 1
	}, waitFor, tick)
	assert.Equal(t, 0, op.queue.Len())
	assert.Empty(t, f.pods.Creates())
	assert.Equal(t, StateRunning, op.State())

	stop(t, cancel, done)
}

func TestOperator_ChildDeletionRecreatesChild(t *testing.T) {
	f := newFixture(t, worker("p", nil))
	op, err := f.builder().Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	require.Eventually(t, func() bool { return len(f.pods.Objects()) == 1 }, waitFor, tick)
	require.NoError(t, f.pods.Delete(context.Background(), f.pods.Objects()[0]))

	require.Eventually(t, func() bool { return len(f.pods.Creates()) == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return len(f.pods.Objects()) == 1 }, waitFor, tick)

	stop(t, cancel, done)
}

func TestOperator_ServerDisconnectStopsOperator(t *testing.T) {
	f := newFixture(t, worker("p", nil))
	op, err := f.builder().Build()
	require.NoError(t, err)
	_, done := f.start(t, op)

	f.workers.Disconnect()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, watch.ErrServerDisconnected)

		var de *DisconnectError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "Worker", de.Kind)
		assert.Contains(t, err.Error(), "Worker")
	case <-time.After(waitFor):
		t.Fatal("operator did not stop after disconnect")
	}
	assert.Equal(t, StateStopped, op.State())
	assert.Eventually(t, func() bool { return f.pods.OpenWatches() == 0 }, waitFor, tick)
}

func TestOperator_FeedbackLoopsRunInOrder(t *testing.T) {
	f := newFixture(t, worker("p", nil))
	running := managedPod(f.name, "p")
	running.Status.Phase = corev1.PodRunning
	f.pods.Put(running)

	var phaseSeenBySecond atomic.Value
	op, err := f.builder().
		WithFeedback(func(_ context.Context, rc Context[*v1alpha1.Worker, *corev1.Pod]) (Feedback[*v1alpha1.Worker, *corev1.Pod], error) {
			if rc.Parent.Status.Phase == string(rc.Child.Status.Phase) {
				return Feedback[*v1alpha1.Worker, *corev1.Pod]{}, nil
			}
			rc.Parent.Status.Phase = string(rc.Child.Status.Phase)
			return Feedback[*v1alpha1.Worker, *corev1.Pod]{Parent: rc.Parent}, nil
		}).
		WithFeedback(func(_ context.Context, rc Context[*v1alpha1.Worker, *corev1.Pod]) (Feedback[*v1alpha1.Worker, *corev1.Pod], error) {
			phaseSeenBySecond.Store(rc.Parent.Status.Phase)
			if rc.Child.Annotations["kubeop/observed"] == "true" {
				return Feedback[*v1alpha1.Worker, *corev1.Pod]{}, nil
			}
			rc.Child.Annotations = map[string]string{"kubeop/observed": "true"}
			return Feedback[*v1alpha1.Worker, *corev1.Pod]{Child: rc.Child}, nil
		}).
		Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	require.Eventually(t, func() bool {
		w, err := f.workers.Get(context.Background(), "default", "p")
		return err == nil && w.Status.Phase == "Running"
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		p, err := f.pods.Get(context.Background(), "default", "p")
		return err == nil && p.Annotations["kubeop/observed"] == "true"
	}, waitFor, tick)

	assert.Equal(t, "Running", phaseSeenBySecond.Load())
	assert.Empty(t, f.pods.Creates())

	patches := f.workers.Patches()
	require.NotEmpty(t, patches)
	assert.True(t, patches[0].Status)
	assert.JSONEq(t, `{"status":{"phase":"Running"}}`, string(patches[0].Data))

	stop(t, cancel, done)
}

func TestOperator_CreateFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, worker("p", nil))

	var fail atomic.Bool
	fail.Store(true)
	f.pods.BeforeCreate = func(*corev1.Pod) error {
		if fail.Load() {
			return errors.New("quota exceeded")
		}
		return nil
	}

	op, err := f.builder().Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(reconcileErrorsTotal.WithLabelValues(f.name)) == 1
	}, waitFor, tick)
	assert.Equal(t, StateRunning, op.State())
	assert.Empty(t, f.pods.Objects())

	// A later change to the parent triggers another attempt.
	fail.Store(false)
	updated := worker("p", nil)
	updated.Spec.Image = "x2"
	f.workers.Put(updated)

	require.Eventually(t, func() bool { return len(f.pods.Objects()) == 1 }, waitFor, tick)
	assert.Equal(t, "x2", f.pods.Objects()[0].Spec.Containers[0].Image)

	stop(t, cancel, done)
}

func TestOperator_PanicInFeedbackIsRecovered(t *testing.T) {
	f := newFixture(t, worker("p", nil))
	f.pods.Put(managedPod(f.name, "p"))

	var calls atomic.Int32
	op, err := f.builder().
		WithFeedback(func(context.Context, Context[*v1alpha1.Worker, *corev1.Pod]) (Feedback[*v1alpha1.Worker, *corev1.Pod], error) {
			calls.Add(1)
			panic("boom")
		}).
		Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(reconcileErrorsTotal.WithLabelValues(f.name)) >= 1
	}, waitFor, tick)

	// The consumer keeps going after the panic.
	f.workers.Put(worker("p", map[string]string{"touched": "true"}))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, waitFor, tick)
	assert.Equal(t, StateRunning, op.State())

	stop(t, cancel, done)
}

func TestOperator_PanicInFilterDropsOnlyThatParent(t *testing.T) {
	f := newFixture(t)
	op, err := f.builder().FilterParents(func(w *v1alpha1.Worker) bool {
		if w.Name == "bad" {
			panic("filter blew up")
		}
		return true
	}).Build()
	require.NoError(t, err)

	cancel, done := f.start(t, op)

	f.workers.Put(worker("bad", nil))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(droppedTotal.WithLabelValues(f.name, reasonScheduling)) == 1
	}, waitFor, tick)

	f.workers.Put(worker("good", nil))
	require.Eventually(t, func() bool { return len(f.pods.Objects()) == 1 }, waitFor, tick)
	assert.Equal(t, "good", f.pods.Objects()[0].Name)
	assert.Equal(t, StateRunning, op.State())

	// Child events resolve their parent through the same filter.
	f.pods.Put(managedPod(f.name, "bad"))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(droppedTotal.WithLabelValues(f.name, reasonScheduling)) == 2
	}, waitFor, tick)

	stop(t, cancel, done)
}

func TestOperator_RunTwice(t *testing.T) {
	f := newFixture(t)
	op, err := f.builder().Build()
	require.NoError(t, err)
	cancel, done := f.start(t, op)

	assert.ErrorIs(t, op.Run(context.Background()), ErrAlreadyStarted)

	stop(t, cancel, done)
}

func TestOperator_InitialListFailure(t *testing.T) {
	f := newFixture(t)
	f.workers.SetListError(errors.New("forbidden"))

	op, err := f.builder().Build()
	require.NoError(t, err)

	err = op.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
	assert.Equal(t, StateStopped, op.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Stopped", StateStopped.String())
	assert.Equal(t, "State(9)", State(9).String())
}
