package selector

import (
	"errors"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/util/validation"
)

// ErrUnsupportedPredicate is returned when a predicate cannot be represented
// faithfully as a selector.
var ErrUnsupportedPredicate = errors.New("unsupported predicate")

// Selector is a compiled server-side selector: comma-joined equality terms.
type Selector string

// Everything is the selector that matches all objects. It is what a
// predicate compiles to when it places no constraint on the object.
const Everything Selector = ""

// IsEverything reports whether s places no constraint.
func (s Selector) IsEverything() bool {
	return s == Everything
}

func (s Selector) String() string {
	return string(s)
}

// Intersect joins selectors of the same flavor, keeping the given order and
// skipping empty ones.
func Intersect(sels ...Selector) Selector {
	parts := make([]string, 0, len(sels))
	for _, s := range sels {
		if !s.IsEverything() {
			parts = append(parts, string(s))
		}
	}
	return Selector(strings.Join(parts, ","))
}

// fieldPaths lists the dotted paths the API server accepts in field
// selectors for the kinds kubeop manages.
var fieldPaths = map[string]bool{
	"metadata.name":            true,
	"metadata.namespace":       true,
	"spec.nodeName":            true,
	"spec.restartPolicy":       true,
	"spec.schedulerName":       true,
	"spec.serviceAccountName":  true,
	"status.phase":             true,
	"status.podIP":             true,
	"status.nominatedNodeName": true,
}

type flavor int

const (
	fieldFlavor flavor = iota
	labelFlavor
)

func (f flavor) String() string {
	if f == fieldFlavor {
		return "field selector"
	}
	return "label selector"
}

// CompileFields compiles a predicate into a field selector of the form
// ".status.phase=Running,.metadata.name=my-pod".
func CompileFields(e Expr) (Selector, error) {
	return compile(e, fieldFlavor)
}

// CompileLabels compiles a predicate into a label selector of the form
// "k1=v1,k2=v2".
func CompileLabels(e Expr) (Selector, error) {
	return compile(e, labelFlavor)
}

// MustCompileFields is like CompileFields but panics on error. It is meant
// for package-level selectors built from literals.
func MustCompileFields(e Expr) Selector {
	s, err := CompileFields(e)
	if err != nil {
		panic(err)
	}
	return s
}

// MustCompileLabels is like CompileLabels but panics on error.
func MustCompileLabels(e Expr) Selector {
	s, err := CompileLabels(e)
	if err != nil {
		panic(err)
	}
	return s
}

type compiler struct {
	flavor    flavor
	terms     []string
	unrelated bool
}

func compile(e Expr, f flavor) (Selector, error) {
	if e == nil {
		return "", unsupported(f, "nil predicate")
	}

	c := &compiler{flavor: f}
	if err := c.walk(e); err != nil {
		return "", err
	}

	// A term about a value outside the parameter constrains nothing we can
	// express, so the whole predicate yields no selector.
	if c.unrelated {
		return Everything, nil
	}
	return Selector(strings.Join(c.terms, ",")), nil
}

func (c *compiler) walk(e Expr) error {
	switch n := e.(type) {
	case Const:
		b, ok := n.Value.(bool)
		if !ok {
			return unsupported(c.flavor, "non-boolean constant %s", n)
		}
		if !b {
			return unsupported(c.flavor, "constant false matches nothing")
		}
		return nil
	case And:
		for _, t := range n.Terms {
			if err := c.walk(t); err != nil {
				return err
			}
		}
		return nil
	case Eq:
		return c.leaf(n)
	case Or:
		return unsupported(c.flavor, "disjunction %s", n)
	case Not:
		return unsupported(c.flavor, "negation %s", n)
	case Call:
		return unsupported(c.flavor, "call %s", n)
	default:
		return unsupported(c.flavor, "expression %s is not a boolean condition", e)
	}
}

func (c *compiler) leaf(eq Eq) error {
	value, ok := constString(eq.Right)
	if !ok {
		return unsupported(c.flavor, "right-hand side of %s is not a constant string", eq)
	}

	switch c.flavor {
	case fieldFlavor:
		return c.fieldLeaf(eq, value)
	default:
		return c.labelLeaf(eq, value)
	}
}

func (c *compiler) fieldLeaf(eq Eq, value string) error {
	if _, captured := rootOf(eq.Left).(Captured); captured {
		c.unrelated = true
		return nil
	}

	path, root, ok := memberPath(eq.Left)
	if !ok {
		return unsupported(c.flavor, "left-hand side of %s is not a field access", eq)
	}
	if _, param := root.(Param); !param {
		return unsupported(c.flavor, "field access %s is not rooted at the object", eq.Left)
	}

	dotted := strings.Join(path, ".")
	if !fieldPaths[dotted] {
		return unsupported(c.flavor, "field %q cannot be selected on", dotted)
	}

	c.terms = append(c.terms, "."+dotted+"="+fields.EscapeValue(value))
	return nil
}

func (c *compiler) labelLeaf(eq Eq, value string) error {
	if _, captured := rootOf(eq.Left).(Captured); captured {
		c.unrelated = true
		return nil
	}

	idx, ok := eq.Left.(Index)
	if !ok {
		return unsupported(c.flavor, "left-hand side of %s is not a label lookup", eq)
	}

	path, root, ok := memberPath(idx.X)
	if !ok {
		return unsupported(c.flavor, "label map in %s is not a field access", eq)
	}
	if _, param := root.(Param); !param {
		return unsupported(c.flavor, "label lookup %s is not rooted at the object", idx)
	}

	if strings.Join(path, ".") != "metadata.labels" {
		return unsupported(c.flavor, "%s does not index the label map", idx)
	}

	key, ok := constString(idx.Key)
	if !ok {
		return unsupported(c.flavor, "label key in %s is not a constant string", idx)
	}
	if errs := validation.IsQualifiedName(key); len(errs) > 0 {
		return unsupported(c.flavor, "label key %q: %s", key, strings.Join(errs, "; "))
	}
	if errs := validation.IsValidLabelValue(value); len(errs) > 0 {
		return unsupported(c.flavor, "label value %q: %s", value, strings.Join(errs, "; "))
	}

	c.terms = append(c.terms, key+"="+value)
	return nil
}

// rootOf follows member accesses and index operations down to the value
// they start from. Anything else is its own root.
func rootOf(e Expr) Expr {
	for {
		switch n := e.(type) {
		case Member:
			e = n.X
		case Index:
			e = n.X
		default:
			return e
		}
	}
}

// memberPath unwinds a chain of member accesses, returning the field names
// in source order and the root expression of the chain.
func memberPath(e Expr) ([]string, Expr, bool) {
	var path []string
	for {
		switch n := e.(type) {
		case Member:
			path = append([]string{n.Name}, path...)
			e = n.X
		case Param, Captured:
			if len(path) == 0 {
				return nil, nil, false
			}
			return path, n, true
		default:
			return nil, nil, false
		}
	}
}

func constString(e Expr) (string, bool) {
	c, ok := e.(Const)
	if !ok {
		return "", false
	}
	s, ok := c.Value.(string)
	return s, ok
}

func unsupported(f flavor, format string, args ...any) error {
	return fmt.Errorf("%w for %s: %s", ErrUnsupportedPredicate, f, fmt.Sprintf(format, args...))
}
