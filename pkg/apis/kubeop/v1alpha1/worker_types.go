package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// WorkerSpec defines the desired state of Worker
type WorkerSpec struct {
	// Image is the container image the worker pod runs.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	Image string `json:"image" yaml:"image"`

	// Command overrides the image entrypoint.
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`

	// Env contains environment variables passed to the container.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// ServiceAccountName is the service account the pod runs as.
	ServiceAccountName string `json:"serviceAccountName,omitempty" yaml:"serviceAccountName,omitempty"`

	// Paused stops the operator from creating a pod for this worker.
	// +kubebuilder:default=false
	Paused bool `json:"paused,omitempty" yaml:"paused,omitempty"`
}

// WorkerStatus defines the observed state of Worker
type WorkerStatus struct {
	// Phase mirrors the phase of the worker pod.
	// +kubebuilder:validation:Enum=Pending;Running;Succeeded;Failed;Unknown
	Phase string `json:"phase,omitempty" yaml:"phase,omitempty"`

	// PodIP is the IP address assigned to the worker pod.
	PodIP string `json:"podIP,omitempty" yaml:"podIP,omitempty"`

	// Conditions represent the latest available observations of the Worker's current state
	Conditions []metav1.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

const (
	// ConditionReady is True when the worker pod reports the PodReady condition.
	ConditionReady = "Ready"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=wk
// +kubebuilder:printcolumn:name="Image",type="string",JSONPath=".spec.image"
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".status.phase"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// Worker is the Schema for the workers API
type Worker struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   WorkerSpec   `json:"spec,omitempty"`
	Status WorkerStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// WorkerList contains a list of Worker
type WorkerList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Worker `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Worker{}, &WorkerList{})
}
