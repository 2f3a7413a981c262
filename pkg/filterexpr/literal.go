package filterexpr

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"

	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

var timeType = reflect.TypeOf(time.Time{})

// literal decodes the right-hand side of a predicate. Numbers decode to float64,
// lists to []string and timestamp('...') calls to time.Time.
func literal(expr *exprpb.Expr) (any, error) {
	if c := expr.GetConstExpr(); c != nil {
		switch c.ConstantKind.(type) {
		case *exprpb.Constant_StringValue:
			return c.GetStringValue(), nil
		case *exprpb.Constant_Int64Value:
			return float64(c.GetInt64Value()), nil
		case *exprpb.Constant_Uint64Value:
			return float64(c.GetUint64Value()), nil
		case *exprpb.Constant_DoubleValue:
			return c.GetDoubleValue(), nil
		default:
			return nil, fmt.Errorf("literal type %T is not supported", c.ConstantKind)
		}
	}

	if list := expr.GetListExpr(); list != nil {
		out := make([]string, 0, len(list.GetElements()))
		for i, elem := range list.GetElements() {
			v, err := literal(elem)
			if err != nil {
				return nil, fmt.Errorf("list literal element %d: %w", i, err)
			}
			s, ok := v.(string)
			if !ok {
				return nil, errors.New("list literal elements must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	}

	if call := expr.GetCallExpr(); call != nil && call.Function == "timestamp" {
		if call.Target != nil || len(call.Args) != 1 || call.Args[0].GetConstExpr() == nil {
			return nil, errors.New("timestamp() expects a single string literal")
		}
		raw := call.Args[0].GetConstExpr().GetStringValue()
		if raw == "" {
			return nil, errors.New("timestamp() argument must not be empty")
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("timestamp literal %q is not RFC3339", raw)
		}
		return t, nil
	}

	return nil, errors.New("right-hand side must be a literal, list literal, or timestamp() call")
}

func checkLiteral(rule FilterField, op Op, value any) error {
	switch rule.Kind {
	case KindString:
		var items []string
		switch v := value.(type) {
		case []string:
			if op != OpIN {
				return fmt.Errorf("list literal only allowed with %q", OpIN)
			}
			if len(v) == 0 {
				return errors.New("list literal must not be empty")
			}
			items = v
		case string:
			if op == OpIN {
				return fmt.Errorf("expected list of %s literals", rule.Kind)
			}
			items = []string{v}
		default:
			return fmt.Errorf("expected %s literal", rule.Kind)
		}
		for _, item := range items {
			if item == "" {
				return errors.New("string literal must not be empty")
			}
			if len(rule.Enum) > 0 && op != OpSW && !slices.Contains(rule.Enum, item) {
				return fmt.Errorf("value %q is not one of %v", item, rule.Enum)
			}
		}
	case KindNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("expected %s literal", rule.Kind)
		}
	case KindTimestamp:
		if _, ok := value.(time.Time); !ok {
			return fmt.Errorf("expected %s literal", rule.Kind)
		}
	default:
		return fmt.Errorf("unsupported field kind %s", rule.Kind)
	}
	return nil
}

func assign(field reflect.Value, value any) error {
	switch field.Kind() {
	case reflect.Ptr:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return assign(field.Elem(), value)
	case reflect.Interface:
		field.Set(reflect.ValueOf(value))
		return nil
	}

	switch v := value.(type) {
	case string:
		if field.Kind() != reflect.String {
			return fmt.Errorf("expected string-compatible destination, got %s", field.Kind())
		}
		field.SetString(v)
	case []string:
		if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("expected string slice destination, got %s", field.Type())
		}
		field.Set(reflect.ValueOf(slices.Clone(v)).Convert(field.Type()))
	case float64:
		return assignNumber(field, v)
	case time.Time:
		if field.Type() != timeType {
			return fmt.Errorf("expected time.Time destination, got %s", field.Type())
		}
		field.Set(reflect.ValueOf(v))
	default:
		return fmt.Errorf("unsupported literal type %T", value)
	}
	return nil
}

func assignNumber(field reflect.Value, v float64) error {
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		field.SetFloat(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if math.Trunc(v) != v {
			return fmt.Errorf("cannot assign non-integer value %v to integer field", v)
		}
		if math.Abs(v) > math.MaxInt64 || field.OverflowInt(int64(v)) {
			return fmt.Errorf("value %v overflows integer field", v)
		}
		field.SetInt(int64(v))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if math.Trunc(v) != v || v < 0 {
			return fmt.Errorf("cannot assign %v to unsigned integer field", v)
		}
		if v > math.MaxUint64 || field.OverflowUint(uint64(v)) {
			return fmt.Errorf("value %v overflows unsigned integer field", v)
		}
		field.SetUint(uint64(v))
	default:
		return fmt.Errorf("numeric assignment requires integer or float field, got %s", field.Kind())
	}
	return nil
}
