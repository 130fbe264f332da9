package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/util/duration"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/internal/selector"
	"kubeop/pkg/apis/kubeop/v1alpha1"
)

// WorkerStatus summarises one Worker and the pod reported on its status.
type WorkerStatus struct {
	Namespace string    `json:"namespace"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	Paused    bool      `json:"paused"`
	Phase     string    `json:"phase,omitempty"`
	Ready     string    `json:"ready"`
	PodIP     string    `json:"podIP,omitempty"`
	Created   time.Time `json:"created"`
}

// WorkerStatusList is the output of the status command.
type WorkerStatusList struct {
	Items []WorkerStatus `json:"items"`

	now time.Time
}

// Headers implements formatting.Tabular.
func (l *WorkerStatusList) Headers() []string {
	return []string{"Namespace", "Name", "Image", "Paused", "Phase", "Ready", "Pod IP", "Age"}
}

// Rows implements formatting.Tabular.
func (l *WorkerStatusList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Items))
	for _, w := range l.Items {
		age := "<unknown>"
		if !w.Created.IsZero() {
			age = duration.HumanDuration(l.now.Sub(w.Created))
		}
		rows = append(rows, []string{
			w.Namespace, w.Name, w.Image, strconv.FormatBool(w.Paused),
			w.Phase, w.Ready, w.PodIP, age,
		})
	}
	return rows
}

// ListWorkerStatus lists the Workers in namespace, or in all namespaces
// when namespace is empty, ordered by namespace and name.
func ListWorkerStatus(ctx context.Context, c client.WithWatch, namespace string) (*WorkerStatusList, error) {
	workers, err := workerClient(c)
	if err != nil {
		return nil, err
	}

	items, _, err := workers.List(ctx, namespace, selector.Everything, selector.Everything)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}

	list := &WorkerStatusList{Items: make([]WorkerStatus, 0, len(items)), now: time.Now()}
	for _, w := range items {
		ready := "Unknown"
		if cond := meta.FindStatusCondition(w.Status.Conditions, v1alpha1.ConditionReady); cond != nil {
			ready = string(cond.Status)
		}
		list.Items = append(list.Items, WorkerStatus{
			Namespace: w.Namespace,
			Name:      w.Name,
			Image:     w.Spec.Image,
			Paused:    w.Spec.Paused,
			Phase:     w.Status.Phase,
			Ready:     ready,
			PodIP:     w.Status.PodIP,
			Created:   w.CreationTimestamp.Time,
		})
	}

	slices.SortFunc(list.Items, func(a, b WorkerStatus) int {
		return cmp.Or(cmp.Compare(a.Namespace, b.Namespace), cmp.Compare(a.Name, b.Name))
	})
	return list, nil
}
