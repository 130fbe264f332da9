// Package events records Kubernetes Events for operator outcomes so that
// they show up in `kubectl describe` and `kubectl get events` next to the
// parent resource.
//
// A Generator renders a message from a per-reason template and creates a
// core/v1 Event whose involved object is the parent:
//
//	gen := events.NewGenerator(c, "kubeop")
//	err := gen.Emit(ctx, worker, events.ReasonChildCreated, events.EventData{
//	    Operator:  "kubeop-worker",
//	    ChildKind: "Pod",
//	})
//
// Event recording is best effort: callers log a failed Emit and carry on.
package events
