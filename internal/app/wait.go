package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/internal/kube"
	"kubeop/internal/watch"
	"kubeop/pkg/apis/kubeop/v1alpha1"
)

// Kinds accepted by the wait commands.
const (
	KindPod    = "Pod"
	KindWorker = "Worker"
)

// ResolveKind maps a user supplied kind or alias to a supported kind.
func ResolveKind(kind string) (string, error) {
	switch strings.ToLower(kind) {
	case "pod", "pods", "po":
		return KindPod, nil
	case "worker", "workers", "wk":
		return KindWorker, nil
	default:
		return "", fmt.Errorf("unsupported kind %q (supported: pod, worker)", kind)
	}
}

func podClient(c client.WithWatch) (kube.Client[*corev1.Pod], error) {
	return kube.New(c,
		func() *corev1.Pod { return &corev1.Pod{} },
		func() *corev1.PodList { return &corev1.PodList{} })
}

func workerClient(c client.WithWatch) (kube.Client[*v1alpha1.Worker], error) {
	return kube.New(c,
		func() *v1alpha1.Worker { return &v1alpha1.Worker{} },
		func() *v1alpha1.WorkerList { return &v1alpha1.WorkerList{} })
}

// WaitDeleted waits until the named object is gone.
func WaitDeleted(ctx context.Context, c client.WithWatch, kind, namespace, name string, timeout time.Duration) error {
	resolved, err := ResolveKind(kind)
	if err != nil {
		return err
	}

	switch resolved {
	case KindPod:
		pods, err := podClient(c)
		if err != nil {
			return err
		}
		return watch.UntilDeleted(ctx, pods, namespace, name, timeout)
	default:
		workers, err := workerClient(c)
		if err != nil {
			return err
		}
		return watch.UntilDeleted(ctx, workers, namespace, name, timeout)
	}
}

// WaitReady waits until a pod is Ready or a Worker has condition Ready=True.
func WaitReady(ctx context.Context, c client.WithWatch, kind, namespace, name string, timeout time.Duration) error {
	resolved, err := ResolveKind(kind)
	if err != nil {
		return err
	}

	switch resolved {
	case KindPod:
		pods, err := podClient(c)
		if err != nil {
			return err
		}
		_, err = watch.UntilPodReady(ctx, pods, namespace, name, timeout)
		return err
	default:
		workers, err := workerClient(c)
		if err != nil {
			return err
		}
		_, err = watch.UntilConditionTrue(ctx, workers, namespace, name, timeout, v1alpha1.ConditionReady,
			func(w *v1alpha1.Worker) []metav1.Condition { return w.Status.Conditions })
		return err
	}
}

// WaitEstablished waits until the named CustomResourceDefinition is established.
func WaitEstablished(ctx context.Context, c client.WithWatch, name string, timeout time.Duration) error {
	crds, err := kube.New(c,
		func() *apiextensionsv1.CustomResourceDefinition { return &apiextensionsv1.CustomResourceDefinition{} },
		func() *apiextensionsv1.CustomResourceDefinitionList {
			return &apiextensionsv1.CustomResourceDefinitionList{}
		})
	if err != nil {
		return err
	}
	_, err = watch.UntilEstablished(ctx, crds, name, timeout)
	return err
}
