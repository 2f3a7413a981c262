package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON stores V as a JSON document in a TEXT column.
type JSON[T any] struct {
	V T
}

// NewJSON wraps v for storage.
func NewJSON[T any](v T) JSON[T] {
	return JSON[T]{V: v}
}

// Scan implements sql.Scanner
func (j *JSON[T]) Scan(src any) error {
	var zero T
	switch data := src.(type) {
	case nil:
		j.V = zero
		return nil
	case []byte:
		if len(data) == 0 {
			j.V = zero
			return nil
		}
		return json.Unmarshal(data, &j.V)
	case string:
		if data == "" {
			j.V = zero
			return nil
		}
		return json.Unmarshal([]byte(data), &j.V)
	default:
		return fmt.Errorf("JSON: unsupported src type %T", src)
	}
}

// Value implements driver.Valuer. Documents are written as strings so TEXT
// columns compare equal across drivers.
func (j JSON[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
