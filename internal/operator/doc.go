// Package operator runs a parent/child reconciliation loop.
//
// An Operator watches a parent kind and the child kind it manages. For
// every parent that passes the configured filter it ensures one child
// with the parent's name and namespace exists, owned by the parent and
// labelled app.kubernetes.io/managed-by=<operator name>. Once the child
// exists, feedback loops copy state between the two objects.
//
// Events from both watches are fanned into one keyed queue with a single
// consumer, so reconciliation of a given parent never runs concurrently
// with itself and at most one Create is issued per missing child.
//
// Operators are assembled with NewBuilder:
//
//	op, err := operator.NewBuilder[*v1alpha1.Worker, *corev1.Pod]("worker").
//		Parents(workers).
//		Children(pods).
//		NewChild(func() *corev1.Pod { return &corev1.Pod{} }).
//		ConstructChild(func(w *v1alpha1.Worker, pod *corev1.Pod) { ... }).
//		WithFeedback(mirrorPhase).
//		Build()
//
// Run blocks until the context is cancelled or a watch is dropped by the
// server. It does not restart dropped watches.
package operator
