package filterexpr

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// MaxOrderKeys is the number of keys an order_by clause may name.
const MaxOrderKeys = 2

type orderKey struct {
	Key  string
	Desc bool
}

type order struct {
	Primary   orderKey
	Secondary orderKey
}

func (s OrderSchema) validate() error {
	if s.DefaultPrimary == "" {
		return errors.New("order schema default primary key required")
	}
	if s.FallbackKey == "" {
		return errors.New("order schema fallback key required")
	}
	if _, ok := s.Fields[s.DefaultPrimary]; !ok {
		return fmt.Errorf("order key %q missing from schema fields", s.DefaultPrimary)
	}
	if _, ok := s.Fields[s.FallbackKey]; !ok {
		return fmt.Errorf("fallback order key %q missing from schema fields", s.FallbackKey)
	}
	return nil
}

// parseOrderBy reads "key [asc|desc], key [asc|desc]". Missing keys come from the schema defaults.
func parseOrderBy(raw string, schema OrderSchema) (order, error) {
	if err := schema.validate(); err != nil {
		return order{}, err
	}

	var keys []orderKey
	for _, seg := range strings.Split(raw, ",") {
		parts := strings.Fields(seg)
		if len(parts) == 0 {
			continue
		}
		if len(parts) > 2 {
			return order{}, fmt.Errorf("invalid order segment %q", strings.TrimSpace(seg))
		}
		k := orderKey{Key: parts[0]}
		if _, ok := schema.Fields[k.Key]; !ok {
			return order{}, fmt.Errorf("field %q cannot be used for ordering", k.Key)
		}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				k.Desc = true
			default:
				return order{}, fmt.Errorf("invalid direction %q for field %q", parts[1], k.Key)
			}
		}
		for _, prev := range keys {
			if prev.Key == k.Key {
				return order{}, fmt.Errorf("duplicate order key %q", k.Key)
			}
		}
		keys = append(keys, k)
		if len(keys) > MaxOrderKeys {
			return order{}, fmt.Errorf("order_by supports at most %d keys", MaxOrderKeys)
		}
	}

	ord := order{
		Primary:   orderKey{Key: schema.DefaultPrimary, Desc: schema.DefaultPrimaryDesc},
		Secondary: orderKey{Key: schema.FallbackKey, Desc: schema.FallbackDesc},
	}
	if len(keys) > 0 {
		ord.Primary = keys[0]
	}
	if len(keys) > 1 {
		ord.Secondary = keys[1]
	}
	if ord.Secondary.Key == ord.Primary.Key {
		alt, ok := alternateKey(schema, ord.Primary.Key)
		if !ok {
			return order{}, errors.New("order schema requires at least two distinct keys for stable ordering")
		}
		ord.Secondary = orderKey{Key: alt}
	}
	return ord, nil
}

func alternateKey(schema OrderSchema, taken string) (string, bool) {
	if schema.DefaultPrimary != taken {
		return schema.DefaultPrimary, true
	}
	keys := make([]string, 0, len(schema.Fields))
	for k := range schema.Fields {
		if k != taken {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return keys[0], true
}

func (o order) writeTo(dest reflect.Value) error {
	values := []struct {
		name  string
		value any
	}{
		{"PrimaryKey", o.Primary.Key},
		{"PrimaryDesc", o.Primary.Desc},
		{"SecondaryKey", o.Secondary.Key},
		{"SecondaryDesc", o.Secondary.Desc},
	}
	for _, v := range values {
		field := dest.FieldByName(v.name)
		if !field.IsValid() {
			return fmt.Errorf("params struct %s has no field named %q", dest.Type(), v.name)
		}
		if !field.CanSet() {
			return fmt.Errorf("cannot set field %q on params struct", v.name)
		}
		rv := reflect.ValueOf(v.value)
		if !rv.Type().ConvertibleTo(field.Type()) {
			return fmt.Errorf("field %q must be %s-compatible, got %s", v.name, rv.Type(), field.Type())
		}
		field.Set(rv.Convert(field.Type()))
	}
	return nil
}
