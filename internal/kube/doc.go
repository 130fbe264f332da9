// Package kube is the typed transport between kubeop and the Kubernetes API.
//
// Client is a per-kind, namespace-scoped contract (list, watch, get,
// create, patch, delete) that the watch primitives and the operator
// consume. New adapts a controller-runtime client.WithWatch to it; the
// kubefake subpackage provides an in-memory implementation for tests.
//
// Selectors are passed in their compiled form (selector.Selector) and
// converted to apimachinery selectors here, so callers never build raw
// selector strings by hand.
package kube
