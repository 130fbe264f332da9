// Package selector compiles membership predicates into Kubernetes field and
// label selectors.
//
// A predicate is a small tagged AST (Expr) built either with the helpers in
// this package or parsed from CEL:
//
//	pred := selector.AllOf(
//	    selector.Field("status.phase").Eq("Running"),
//	    selector.Field("metadata.name").Eq("my-pod"),
//	)
//	sel, err := selector.CompileFields(pred) // ".status.phase=Running,.metadata.name=my-pod"
//
// Only conjunctions of equalities between an accessor on the object and a
// constant are representable. Disjunctions, negations, calls, constant
// false and non-constant right-hand sides fail with ErrUnsupportedPredicate
// rather than being approximated. Constant true compiles to Everything.
// A comparison on a value that is not reachable from the object (a
// Captured root) also yields Everything: nothing about the object can be
// derived from it.
//
// Terms are emitted in source order so compiled selectors are reproducible.
package selector
