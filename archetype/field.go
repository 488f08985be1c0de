package archetype

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrFieldNotSet is returned when an object has no value for a field.
	ErrFieldNotSet = errors.New("field not set")
	// ErrFieldType is returned when a field value cannot be converted.
	ErrFieldType = errors.New("field has unexpected type")
)

// Field is a typed accessor for a named field.
type Field[T any] struct {
	name    string
	convert func(any) (T, error)
}

// NewField returns an accessor for name. The conversion used for T is chosen
// here, once, so reads do no reflection.
func NewField[T any](name string) Field[T] {
	return Field[T]{name: name, convert: converterFor[T]()}
}

// Name returns the field name.
func (f Field[T]) Name() string {
	return f.name
}

// Get reads and converts the field.
func (f Field[T]) Get(obj FieldAccessor) (T, error) {
	var zero T
	if obj == nil {
		return zero, fmt.Errorf("%s: %w", f.name, ErrFieldNotSet)
	}
	raw, ok := obj.Field(f.name)
	if !ok || raw == nil {
		return zero, fmt.Errorf("%s: %w", f.name, ErrFieldNotSet)
	}
	v, err := f.convert(raw)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", f.name, err)
	}
	return v, nil
}

// Lookup is Get without the error detail.
func (f Field[T]) Lookup(obj FieldAccessor) (T, bool) {
	v, err := f.Get(obj)
	return v, err == nil
}

// Set writes the field.
func (f Field[T]) Set(obj FieldSetter, v T) error {
	return obj.SetField(f.name, v)
}

func converterFor[T any]() func(any) (T, error) {
	var zero T
	var conv func(any) (any, error)
	switch any(zero).(type) {
	case string:
		conv = toString
	case int:
		conv = func(v any) (any, error) {
			n, err := toInt64(v)
			return int(n), err
		}
	case int64:
		conv = func(v any) (any, error) { return toInt64(v) }
	case float64:
		conv = func(v any) (any, error) { return toFloat64(v) }
	case bool:
		conv = toBool
	case time.Time:
		conv = func(v any) (any, error) { return toTime(v) }
	case Reference:
		conv = toReference
	default:
		return func(v any) (T, error) {
			t, ok := v.(T)
			if !ok {
				return zero, fmt.Errorf("%w: %T", ErrFieldType, v)
			}
			return t, nil
		}
	}
	return func(v any) (T, error) {
		if t, ok := v.(T); ok {
			return t, nil
		}
		out, err := conv(v)
		if err != nil {
			return zero, err
		}
		return out.(T), nil
	}
}

func toString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return "", fmt.Errorf("%w: %T", ErrFieldType, v)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not integral", ErrFieldType, n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("%w: %T", ErrFieldType, v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("%w: %T", ErrFieldType, v)
}

func toBool(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("%w: %T", ErrFieldType, v)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrFieldType, err)
		}
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("%w: %T", ErrFieldType, v)
}

func toReference(v any) (any, error) {
	switch r := v.(type) {
	case Reference:
		return r, nil
	case string:
		return ParseReference(r)
	case map[string]any:
		kind, _ := r["kind"].(string)
		linkID, _ := r["link_id"].(string)
		if kind == "" || linkID == "" {
			return Reference{}, fmt.Errorf("%w: incomplete reference", ErrFieldType)
		}
		return Reference{Kind: kind, LinkID: linkID}, nil
	}
	return Reference{}, fmt.Errorf("%w: %T", ErrFieldType, v)
}
