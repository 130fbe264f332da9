package selector

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
)

// ParamName is the identifier that refers to the object in CEL predicates.
const ParamName = "self"

var celEnvironment *cel.Env

func init() {
	// Macros are cleared: predicates are only analysed, never evaluated, and
	// macro expansion would hide has() and comprehensions behind synthetic nodes.
	var err error
	if celEnvironment, err = cel.NewEnv(cel.ClearMacros()); err != nil {
		panic(err)
	}
}

// ParseCEL parses a CEL boolean expression over the identifier "self" into
// an Expr, e.g.
//
//	self.status.phase == "Running" && self.metadata.labels["app"] == "web"
//
// Parsing only fails on syntax errors. Constructs that have no selector
// equivalent are kept as Call nodes so that compilation reports them.
func ParseCEL(src string) (Expr, error) {
	parsed, iss := celEnvironment.Parse(src)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("failed to parse predicate %q: %w", src, iss.Err())
	}
	return fromCEL(parsed.NativeRep().Expr()), nil
}

func fromCEL(e ast.Expr) Expr {
	switch e.Kind() {
	case ast.IdentKind:
		if name := e.AsIdent(); name != ParamName {
			return Captured{Name: name}
		}
		return Param{}

	case ast.SelectKind:
		sel := e.AsSelect()
		if sel.IsTestOnly() {
			return Call{Name: "has", Args: []Expr{fromCEL(sel.Operand())}}
		}
		return Member{X: fromCEL(sel.Operand()), Name: sel.FieldName()}

	case ast.LiteralKind:
		return Const{Value: e.AsLiteral().Value()}

	case ast.CallKind:
		call := e.AsCall()
		args := make([]Expr, 0, len(call.Args())+1)
		if call.IsMemberFunction() {
			args = append(args, fromCEL(call.Target()))
		}
		for _, a := range call.Args() {
			args = append(args, fromCEL(a))
		}

		switch call.FunctionName() {
		case operators.LogicalAnd:
			return AllOf(args...)
		case operators.LogicalOr:
			return Or{Terms: args}
		case operators.LogicalNot:
			if len(args) == 1 {
				return Not{X: args[0]}
			}
		case operators.Equals:
			if len(args) == 2 {
				return Eq{Left: args[0], Right: args[1]}
			}
		case operators.Index:
			if len(args) == 2 {
				return Index{X: args[0], Key: args[1]}
			}
		}
		return Call{Name: call.FunctionName(), Args: args}

	default:
		return Call{Name: fmt.Sprintf("<%v>", e.Kind())}
	}
}
