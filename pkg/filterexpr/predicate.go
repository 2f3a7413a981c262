package filterexpr

import (
	"errors"
	"fmt"

	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

type predicate struct {
	Field string
	Op    Op
	Value any
}

// conjuncts flattens nested && chains. Any other logical operator is rejected.
func conjuncts(expr *exprpb.Expr) ([]*exprpb.Expr, error) {
	if expr == nil {
		return nil, errors.New("empty expression")
	}
	call := expr.GetCallExpr()
	if call == nil {
		return []*exprpb.Expr{expr}, nil
	}
	switch call.Function {
	case "_&&_":
		if call.Target != nil || len(call.Args) < 2 {
			return nil, errors.New("logical AND must have at least two operands")
		}
		var out []*exprpb.Expr
		for _, arg := range call.Args {
			terms, err := conjuncts(arg)
			if err != nil {
				return nil, err
			}
			out = append(out, terms...)
		}
		return out, nil
	case "_||_", "_?_:_", "!_", "!":
		return nil, fmt.Errorf("logical operator %q is not supported; only AND is allowed", call.Function)
	default:
		return []*exprpb.Expr{expr}, nil
	}
}

func toPredicate(expr *exprpb.Expr) (predicate, error) {
	call := expr.GetCallExpr()
	if call == nil {
		return predicate{}, errors.New("unsupported expression; expected comparison or function call")
	}
	switch call.Function {
	case "_==_":
		return comparison(call, OpEQ)
	case "_>=_":
		return comparison(call, OpGTE)
	case "_<=_":
		return comparison(call, OpLTE)
	case "@in", "_in_":
		return membership(call)
	case "startsWith":
		return prefix(call)
	default:
		return predicate{}, fmt.Errorf("function %q is not supported", call.Function)
	}
}

func comparison(call *exprpb.Expr_Call, op Op) (predicate, error) {
	if call.Target != nil || len(call.Args) != 2 {
		return predicate{}, fmt.Errorf("operator %q expects two operands", op)
	}
	return operands(op, call.Args[0], call.Args[1])
}

func membership(call *exprpb.Expr_Call) (predicate, error) {
	if call.Target != nil {
		if len(call.Args) != 1 {
			return predicate{}, errors.New("in operator with receiver must have exactly one argument")
		}
		return operands(OpIN, call.Args[0], call.Target)
	}
	if len(call.Args) != 2 {
		return predicate{}, errors.New("in operator expects two operands")
	}
	return operands(OpIN, call.Args[0], call.Args[1])
}

func prefix(call *exprpb.Expr_Call) (predicate, error) {
	var field, arg *exprpb.Expr
	switch {
	case call.Target != nil && len(call.Args) == 1:
		field, arg = call.Target, call.Args[0]
	case call.Target == nil && len(call.Args) == 2:
		field, arg = call.Args[0], call.Args[1]
	default:
		return predicate{}, errors.New("startsWith expects a field and one string argument")
	}
	pred, err := operands(OpSW, field, arg)
	if err != nil {
		return predicate{}, err
	}
	if _, ok := pred.Value.(string); !ok {
		return predicate{}, errors.New("startsWith requires a string literal argument")
	}
	return pred, nil
}

func operands(op Op, lhs, rhs *exprpb.Expr) (predicate, error) {
	ident := lhs.GetIdentExpr()
	if ident == nil {
		return predicate{}, errors.New("left-hand side must be an identifier")
	}
	value, err := literal(rhs)
	if err != nil {
		return predicate{}, err
	}
	return predicate{Field: ident.GetName(), Op: op, Value: value}, nil
}
