package selector

import (
	"fmt"
	"strings"
)

// Expr is a node of a membership predicate. The concrete node types form a
// closed set; the compiler matches on them and rejects anything it cannot
// represent as a selector.
type Expr interface {
	fmt.Stringer
	isExpr()
}

// Param is the object the predicate is evaluated against.
type Param struct{}

// Captured is a value that is not reachable from the parameter, e.g. a
// variable from the surrounding scope.
type Captured struct {
	Name string
}

// Member is a field access X.Name.
type Member struct {
	X    Expr
	Name string
}

// Index is an indexer access X[Key], used for label lookups.
type Index struct {
	X   Expr
	Key Expr
}

// Const is a literal. Only string and bool values are meaningful to the
// compiler.
type Const struct {
	Value any
}

// Eq is an equality comparison Left == Right.
type Eq struct {
	Left, Right Expr
}

// And is a conjunction of its terms, evaluated in order.
type And struct {
	Terms []Expr
}

// Or is a disjunction. It is never representable as a selector.
type Or struct {
	Terms []Expr
}

// Not is a negation. It is never representable as a selector.
type Not struct {
	X Expr
}

// Call is an arbitrary function or method call.
type Call struct {
	Name string
	Args []Expr
}

func (Param) isExpr()    {}
func (Captured) isExpr() {}
func (Member) isExpr()   {}
func (Index) isExpr()    {}
func (Const) isExpr()    {}
func (Eq) isExpr()       {}
func (And) isExpr()      {}
func (Or) isExpr()       {}
func (Not) isExpr()      {}
func (Call) isExpr()     {}

func (Param) String() string      { return "self" }
func (c Captured) String() string { return c.Name }
func (m Member) String() string   { return m.X.String() + "." + m.Name }
func (i Index) String() string    { return i.X.String() + "[" + i.Key.String() + "]" }
func (e Eq) String() string       { return e.Left.String() + " == " + e.Right.String() }
func (n Not) String() string      { return "!(" + n.X.String() + ")" }
func (a And) String() string      { return joinExprs(a.Terms, " && ") }
func (o Or) String() string       { return joinExprs(o.Terms, " || ") }

func (c Const) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", c.Value)
}

func (c Call) String() string {
	return c.Name + "(" + joinExprs(c.Args, ", ") + ")"
}

func joinExprs(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

var (
	// True matches every object.
	True Expr = Const{Value: true}

	// False matches no object; it cannot be expressed as a selector.
	False Expr = Const{Value: false}
)

// Path is an accessor on the parameter that can be compared to a constant.
type Path struct {
	Expr
}

// Eq compares the path to a constant string.
func (p Path) Eq(value string) Expr {
	return Eq{Left: p.Expr, Right: Const{Value: value}}
}

// Self returns the predicate parameter.
func Self() Expr {
	return Param{}
}

// Field builds a member chain on the parameter from a dotted path such as
// "status.phase".
func Field(path string) Path {
	var e Expr = Param{}
	for _, name := range strings.Split(path, ".") {
		e = Member{X: e, Name: name}
	}
	return Path{Expr: e}
}

// Label builds an indexer access into the parameter's label map.
func Label(key string) Path {
	labels := Member{X: Member{X: Param{}, Name: "metadata"}, Name: "labels"}
	return Path{Expr: Index{X: labels, Key: Const{Value: key}}}
}

// AllOf builds a conjunction. Nested conjunctions are flattened, keeping
// source order.
func AllOf(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if a, ok := t.(And); ok {
			flat = append(flat, a.Terms...)
			continue
		}
		flat = append(flat, t)
	}
	return And{Terms: flat}
}

// AnyOf builds a disjunction.
func AnyOf(terms ...Expr) Expr {
	return Or{Terms: terms}
}

// Negate builds a negation.
func Negate(x Expr) Expr {
	return Not{X: x}
}
