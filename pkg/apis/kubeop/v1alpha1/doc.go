// Package v1alpha1 contains API Schema definitions for the kubeop v1alpha1 API group.
//
// # API Group: kubeop.giantswarm.io/v1alpha1
//
// ## Worker
//
// Worker describes a single long-running container. The worker operator
// keeps exactly one Pod with the same name next to every Worker and mirrors
// the Pod's phase and readiness back into the Worker status.
//
// Example:
//
//	apiVersion: kubeop.giantswarm.io/v1alpha1
//	kind: Worker
//	metadata:
//	  name: indexer
//	  namespace: default
//	  labels:
//	    tier: backend
//	spec:
//	  image: ghcr.io/example/indexer:1.4.0
//	  command: ["/indexer", "--watch"]
//	  serviceAccountName: indexer
//
// +kubebuilder:object:generate=true
// +groupName=kubeop.giantswarm.io
package v1alpha1
