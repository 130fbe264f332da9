package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"kubeop/internal/kube/kubefake"
	"kubeop/internal/selector"
	"kubeop/pkg/apis/kubeop/v1alpha1"
)

func readyPod(namespace, name string) *corev1.Pod {
	p := pod(namespace, name, nil)
	p.Status.Conditions = []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}}
	return p
}

func TestUntilDeleted_AlreadyAbsent(t *testing.T) {
	pods := kubefake.NewClient("Pod", newPod)

	err := UntilDeleted(context.Background(), pods, "default", "gone", time.Second)
	require.NoError(t, err)
	assert.Empty(t, pods.Watches())
}

func TestUntilDeleted_WaitsForDeletion(t *testing.T) {
	pods := kubefake.NewClient("Pod", newPod, pod("default", "web", nil), pod("default", "other", nil))

	go func() {
		waitForWatch(t, pods, 1)
		_ = pods.Delete(context.Background(), pod("default", "other", nil))
		_ = pods.Delete(context.Background(), pod("default", "web", nil))
	}()

	err := UntilDeleted(context.Background(), pods, "default", "web", 2*time.Second)
	require.NoError(t, err)

	watches := pods.Watches()
	require.Len(t, watches, 1)
	assert.Equal(t, selector.Selector(".metadata.name=web"), watches[0].FieldSelector)
	assert.NotEmpty(t, watches[0].ResourceVersion)
}

// blockingList is a source whose List does not return before ctx is done.
type blockingList struct {
	*kubefake.Client[*corev1.Pod]
}

func (b blockingList) List(ctx context.Context, _ string, _, _ selector.Selector) ([]*corev1.Pod, string, error) {
	<-ctx.Done()
	return nil, "", ctx.Err()
}

func TestUntilDeleted_TimeoutCoversInitialList(t *testing.T) {
	pods := blockingList{kubefake.NewClient("Pod", newPod, pod("default", "web", nil))}

	start := time.Now()
	err := UntilDeleted(context.Background(), pods, "default", "web", 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "Pod default/web", te.Resource)
	assert.Empty(t, pods.Watches())
}

func TestUntil_Timeout(t *testing.T) {
	pods := kubefake.NewClient("Pod", newPod, pod("default", "web", nil))

	_, err := UntilPodReady(context.Background(), pods, "default", "web", 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "Pod default/web", te.Resource)
	assert.Equal(t, 50*time.Millisecond, te.Timeout)
	assert.GreaterOrEqual(t, te.Elapsed, 50*time.Millisecond)
}

func TestUntil_ParentCancellationIsNotATimeout(t *testing.T) {
	pods := kubefake.NewClient("Pod", newPod)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		waitForWatch(t, pods, 1)
		cancel()
	}()

	_, err := UntilPodReady(ctx, pods, "default", "web", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestUntil_ServerDisconnect(t *testing.T) {
	pods := kubefake.NewClient("Pod", newPod)

	go func() {
		waitForWatch(t, pods, 1)
		pods.Disconnect()
	}()

	_, err := UntilPodReady(context.Background(), pods, "default", "web", 2*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerDisconnected)

	var de *DisconnectError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Pod default/web", de.Resource)
}

func TestUntilPodReady(t *testing.T) {
	pods := kubefake.NewClient("Pod", newPod, pod("default", "web", nil))

	go func() {
		waitForWatch(t, pods, 1)
		pods.Put(readyPod("default", "other"))
		pods.Put(readyPod("default", "web"))
	}()

	got, err := UntilPodReady(context.Background(), pods, "default", "web", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "web", got.Name)
	assert.True(t, IsPodReady(got))
}

func TestUntilConditionTrue_SatisfiedByList(t *testing.T) {
	w := &v1alpha1.Worker{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "w"}}
	w.Status.Conditions = []metav1.Condition{{Type: v1alpha1.ConditionReady, Status: metav1.ConditionTrue, Reason: "PodReady"}}
	workers := kubefake.NewClient("Worker", func() *v1alpha1.Worker { return &v1alpha1.Worker{} }, w)

	got, err := UntilConditionTrue(context.Background(), workers, "default", "w", time.Second, v1alpha1.ConditionReady,
		func(w *v1alpha1.Worker) []metav1.Condition { return w.Status.Conditions })
	require.NoError(t, err)
	assert.Equal(t, "w", got.Name)
	assert.Empty(t, workers.Watches())
}

func TestUntilEstablished(t *testing.T) {
	crd := &apiextensionsv1.CustomResourceDefinition{ObjectMeta: metav1.ObjectMeta{Name: "workers.kubeop.giantswarm.io"}}
	crds := kubefake.NewClient("CustomResourceDefinition", func() *apiextensionsv1.CustomResourceDefinition {
		return &apiextensionsv1.CustomResourceDefinition{}
	}, crd)

	go func() {
		assert.Eventually(t, func() bool { return crds.OpenWatches() == 1 }, 2*time.Second, 5*time.Millisecond)
		established := crd.DeepCopy()
		established.Status.Conditions = []apiextensionsv1.CustomResourceDefinitionCondition{
			{Type: apiextensionsv1.NamesAccepted, Status: apiextensionsv1.ConditionTrue},
			{Type: apiextensionsv1.Established, Status: apiextensionsv1.ConditionTrue},
		}
		crds.Put(established)
	}()

	got, err := UntilEstablished(context.Background(), crds, crd.Name, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, IsEstablished(got))
}

func TestUntil_DescribesSelectors(t *testing.T) {
	pods := kubefake.NewClient("Pod", newPod)
	opts := Options{
		Namespace:     "default",
		LabelSelector: selector.MustCompileLabels(selector.Label("app").Eq("web")),
	}

	_, err := Until(context.Background(), pods, opts, 20*time.Millisecond, func(watch.EventType, *corev1.Pod) bool { return false })

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, `Pod in namespace "default" with labels "app=web"`, te.Resource)
}
