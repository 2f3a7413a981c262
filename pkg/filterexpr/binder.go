// Package filterexpr binds a restricted CEL filter expression and an order_by clause
// onto a plain params struct. Only conjunctions of simple comparisons are accepted.
package filterexpr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
)

// Msg is any request that carries raw filter and order_by inputs.
type Msg interface {
	GetFilter() string
	GetOrderBy() string
}

// ValueKind describes the kind of literal value a field accepts.
type ValueKind string

const (
	KindString    ValueKind = "string"
	KindNumber    ValueKind = "number"
	KindTimestamp ValueKind = "timestamp"
)

// Op is a supported comparison.
type Op string

const (
	OpEQ  Op = "=="
	OpGTE Op = ">="
	OpLTE Op = "<="
	OpSW  Op = "startsWith"
	OpIN  Op = "in"
)

// SetterFunc assigns a literal to a params field when plain assignment does not fit.
type SetterFunc func(field reflect.Value, value any) error

// FilterField maps a filter identifier onto params struct fields, one per allowed operator.
type FilterField struct {
	Expr   string
	Kind   ValueKind
	Ops    map[Op]string
	Setter SetterFunc
	// Enum, when set, restricts string literals to these values.
	Enum []string
}

// OrderField maps an order key to a column expression.
type OrderField struct {
	Expr  string
	Nulls string
}

// OrderSchema describes ordering defaults and the whitelisted keys.
type OrderSchema struct {
	DefaultPrimary     string
	DefaultPrimaryDesc bool
	FallbackKey        string
	FallbackDesc       bool
	Fields             map[string]OrderField
}

// ResourceSchema aggregates filtering and ordering rules for a resource.
type ResourceSchema struct {
	Filter map[string]FilterField
	Order  OrderSchema
}

// Bind parses msg's filter and order_by and writes the result into binding.
// The order is written to PrimaryKey, PrimaryDesc, SecondaryKey and SecondaryDesc.
func Bind[M Msg, P any](msg M, binding *P, schema ResourceSchema) error {
	if binding == nil {
		return errors.New("binding must not be nil")
	}
	dest := reflect.ValueOf(binding).Elem()
	if dest.Kind() != reflect.Struct {
		return errors.New("binding must point to a struct")
	}

	if err := BindFilter(msg.GetFilter(), binding, schema.Filter); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	order, err := parseOrderBy(msg.GetOrderBy(), schema.Order)
	if err != nil {
		return fmt.Errorf("order_by: %w", err)
	}
	return order.writeTo(dest)
}

// BindFilter binds only a filter expression. An empty filter leaves binding untouched.
func BindFilter[P any](filter string, binding *P, fields map[string]FilterField) error {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil
	}
	if binding == nil {
		return errors.New("binding must not be nil")
	}
	if len(fields) == 0 {
		return errors.New("filter schema has no fields defined")
	}
	dest := reflect.ValueOf(binding).Elem()
	if dest.Kind() != reflect.Struct {
		return errors.New("binding must point to a struct")
	}

	preds, err := parse(filter, fields)
	if err != nil {
		return err
	}
	for _, pred := range preds {
		if err := apply(dest, pred, fields); err != nil {
			return err
		}
	}
	return nil
}

func parse(filter string, fields map[string]FilterField) ([]predicate, error) {
	env, err := newEnv(fields)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(filter)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid filter: %w", issues.Err())
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, fmt.Errorf("convert filter AST: %w", err)
	}
	terms, err := conjuncts(parsed.GetExpr())
	if err != nil {
		return nil, err
	}
	preds := make([]predicate, 0, len(terms))
	for _, term := range terms {
		pred, err := toPredicate(term)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

func apply(dest reflect.Value, pred predicate, fields map[string]FilterField) error {
	rule, ok := fields[pred.Field]
	if !ok {
		return fmt.Errorf("field %q is not allowed", pred.Field)
	}
	target, ok := rule.Ops[pred.Op]
	if !ok {
		return fmt.Errorf("operator %q is not allowed for field %q", pred.Op, pred.Field)
	}
	if err := checkLiteral(rule, pred.Op, pred.Value); err != nil {
		return fmt.Errorf("field %q: %w", pred.Field, err)
	}

	field := dest.FieldByName(target)
	if !field.IsValid() {
		return fmt.Errorf("params struct %s has no field named %q", dest.Type(), target)
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field %q on params struct", target)
	}
	if rule.Setter != nil {
		if field.Kind() == reflect.Ptr && field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		if err := rule.Setter(field, pred.Value); err != nil {
			return fmt.Errorf("setter for field %q failed: %w", target, err)
		}
		return nil
	}
	if err := assign(field, pred.Value); err != nil {
		return fmt.Errorf("assign field %q: %w", target, err)
	}
	return nil
}

func newEnv(fields map[string]FilterField) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(fields)+1)
	for name, rule := range fields {
		var t *cel.Type
		switch rule.Kind {
		case KindString:
			t = cel.StringType
		case KindNumber:
			t = cel.DoubleType
		case KindTimestamp:
			t = cel.TimestampType
		default:
			return nil, fmt.Errorf("field %q: unsupported kind %s", name, rule.Kind)
		}
		opts = append(opts, cel.Variable(name, t))
	}
	opts = append(opts, cel.CrossTypeNumericComparisons(true))
	return cel.NewEnv(opts...)
}
