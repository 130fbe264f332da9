package app

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"kubeop/internal/controllers/worker"
	"kubeop/internal/events"
	"kubeop/internal/kube"
	"kubeop/internal/operator"
	"kubeop/pkg/apis/kubeop/v1alpha1"
	"kubeop/pkg/logging"
)

// Operator is an operator managed by the application.
type Operator interface {
	Config() operator.Config
	State() operator.State
	Run(ctx context.Context) error
}

// EventComponent is the source component of recorded Kubernetes Events.
const EventComponent = "kubeop"

// Services holds the clients and operators used by the application.
type Services struct {
	Workers kube.Client[*v1alpha1.Worker]
	Pods    kube.Client[*corev1.Pod]
	Events  *events.Generator

	// Operators are run concurrently by Application.Run.
	Operators []Operator
}

// InitializeServices creates the typed clients and the enabled operators.
func InitializeServices(cfg *Config) (*Services, error) {
	workers, err := kube.New(cfg.Client,
		func() *v1alpha1.Worker { return &v1alpha1.Worker{} },
		func() *v1alpha1.WorkerList { return &v1alpha1.WorkerList{} })
	if err != nil {
		return nil, fmt.Errorf("failed to create Worker client: %w", err)
	}

	pods, err := kube.New(cfg.Client,
		func() *corev1.Pod { return &corev1.Pod{} },
		func() *corev1.PodList { return &corev1.PodList{} })
	if err != nil {
		return nil, fmt.Errorf("failed to create Pod client: %w", err)
	}

	services := &Services{
		Workers: workers,
		Pods:    pods,
		Events:  events.NewGenerator(cfg.Client, EventComponent),
	}

	wc := cfg.KubeopConfig.Operators.Worker
	if wc.Disabled {
		logging.Info("Services", "Worker operator is disabled")
		return services, nil
	}

	opts := worker.Options{
		Name:           wc.Name,
		Namespace:      cfg.KubeopConfig.Namespace,
		ParentSelector: wc.ParentSelector,
		Labels:         wc.Labels,
	}
	if !wc.DisableEvents {
		opts.Events = services.Events
	}

	op, err := worker.New(workers, pods, opts)
	if err != nil {
		return nil, err
	}
	services.Operators = append(services.Operators, op)
	logging.Info("Services", "Registered operator %s (parent selector %q)", op.Config().Name, op.Config().ParentSelector)

	return services, nil
}
