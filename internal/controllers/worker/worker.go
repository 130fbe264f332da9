// Package worker runs one Pod for every Worker and reports the pod's
// progress back on the Worker status.
package worker

import (
	"context"
	"fmt"
	"maps"
	"slices"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"kubeop/internal/events"
	"kubeop/internal/kube"
	"kubeop/internal/operator"
	"kubeop/internal/watch"
	"kubeop/pkg/apis/kubeop/v1alpha1"
)

// DefaultName is the operator name used when Options.Name is empty.
const DefaultName = "kubeop-worker"

// ContainerName is the name of the container running the worker image.
const ContainerName = "worker"

// Condition reasons set on the Ready condition.
const (
	ReasonPodReady    = "PodReady"
	ReasonPodNotReady = "PodNotReady"
)

// Options configure the worker operator.
type Options struct {
	Name      string
	Namespace string

	// ParentSelector is a CEL predicate over self restricting the Workers
	// handled, e.g. self.metadata.labels["tier"] == "batch".
	ParentSelector string

	// Labels are added to every pod.
	Labels map[string]string

	// Events, when set, records Kubernetes Events on the Workers.
	Events events.Emitter
}

type (
	workerOperator = operator.Operator[*v1alpha1.Worker, *corev1.Pod]
	feedback       = operator.Feedback[*v1alpha1.Worker, *corev1.Pod]
	reconcileCtx   = operator.Context[*v1alpha1.Worker, *corev1.Pod]
)

// New builds the worker operator.
func New(workers kube.Client[*v1alpha1.Worker], pods kube.Client[*corev1.Pod], opts Options) (*workerOperator, error) {
	name := opts.Name
	if name == "" {
		name = DefaultName
	}

	b := operator.NewBuilder[*v1alpha1.Worker, *corev1.Pod](name).
		Parents(workers).
		Children(pods).
		NewChild(func() *corev1.Pod { return &corev1.Pod{} }).
		Namespace(opts.Namespace).
		FilterParents(IsActive).
		ConstructChild(ConstructPod).
		WithFeedback(MirrorPhase).
		WithFeedback(MirrorReadiness)

	if opts.ParentSelector != "" {
		b = b.ParentSelectorCEL(opts.ParentSelector)
	}
	for k, v := range opts.Labels {
		b = b.WithLabel(k, v)
	}
	if opts.Events != nil {
		b = b.WithEvents(opts.Events)
	}

	op, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build worker operator: %w", err)
	}
	return op, nil
}

// IsActive reports whether a pod should run for w.
func IsActive(w *v1alpha1.Worker) bool {
	return !w.Spec.Paused && w.DeletionTimestamp == nil
}

// ConstructPod fills pod from the worker spec.
func ConstructPod(w *v1alpha1.Worker, pod *corev1.Pod) {
	env := make([]corev1.EnvVar, 0, len(w.Spec.Env))
	for _, k := range slices.Sorted(maps.Keys(w.Spec.Env)) {
		env = append(env, corev1.EnvVar{Name: k, Value: w.Spec.Env[k]})
	}

	pod.Spec = corev1.PodSpec{
		RestartPolicy:                 corev1.RestartPolicyAlways,
		ServiceAccountName:            w.Spec.ServiceAccountName,
		AutomountServiceAccountToken:  ptr.To(w.Spec.ServiceAccountName != ""),
		TerminationGracePeriodSeconds: ptr.To[int64](30),
		Containers: []corev1.Container{{
			Name:    ContainerName,
			Image:   w.Spec.Image,
			Command: slices.Clone(w.Spec.Command),
			Env:     env,
			SecurityContext: &corev1.SecurityContext{
				AllowPrivilegeEscalation: ptr.To(false),
				RunAsNonRoot:             ptr.To(true),
			},
		}},
	}
}

// MirrorPhase copies the pod phase and IP to the worker status.
func MirrorPhase(_ context.Context, rc reconcileCtx) (feedback, error) {
	w, pod := rc.Parent, rc.Child

	phase := string(pod.Status.Phase)
	if w.Status.Phase == phase && w.Status.PodIP == pod.Status.PodIP {
		return feedback{}, nil
	}

	w.Status.Phase = phase
	w.Status.PodIP = pod.Status.PodIP
	return feedback{Parent: w}, nil
}

// MirrorReadiness maintains the worker's Ready condition from the pod's
// PodReady condition.
func MirrorReadiness(_ context.Context, rc reconcileCtx) (feedback, error) {
	w, pod := rc.Parent, rc.Child

	cond := metav1.Condition{
		Type:               v1alpha1.ConditionReady,
		Status:             metav1.ConditionFalse,
		Reason:             ReasonPodNotReady,
		Message:            fmt.Sprintf("Pod %s is not ready", pod.Name),
		ObservedGeneration: w.Generation,
	}
	if watch.IsPodReady(pod) {
		cond.Status = metav1.ConditionTrue
		cond.Reason = ReasonPodReady
		cond.Message = fmt.Sprintf("Pod %s is ready", pod.Name)
	}

	if !meta.SetStatusCondition(&w.Status.Conditions, cond) {
		return feedback{}, nil
	}
	return feedback{Parent: w}, nil
}
